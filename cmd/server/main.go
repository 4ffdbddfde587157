package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scopecfg/internal/config"
	"scopecfg/internal/domain"
	"scopecfg/internal/handler"
	"scopecfg/internal/hub"
	"scopecfg/internal/loader"
	"scopecfg/internal/plot"
	"scopecfg/internal/repository"
	"scopecfg/internal/repository/sqlite"
	"scopecfg/internal/service"
	"scopecfg/internal/units"
	"scopecfg/internal/watcher"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "config file path (overrides search)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	check := flag.Bool("check", false, "validate the configured documents and exit")
	initCfg := flag.Bool("init", false, "write a default config file and exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *initCfg {
		path := *configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		log.Printf("Wrote default config to %s", path)
		return
	}

	var cfg *config.Config
	var cfgFile string
	var err error
	if *configPath != "" {
		cfg, cfgFile, err = config.LoadFromPath(*configPath)
	} else {
		cfg, cfgFile, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfgFile != "" {
		log.Printf("Config loaded from %s", cfgFile)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	reg, err := cfg.Registry()
	if err != nil {
		log.Fatalf("Failed to build unit vocabulary: %v", err)
	}

	if *check {
		os.Exit(runCheck(cfg, reg))
	}

	log.Println("Starting scopecfg server...")

	// Revision store
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event bus and SSE fan-out
	eventBus := service.NewEventBus()
	sseHub := hub.New()
	go sseHub.Run(ctx)

	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for {
			select {
			case event := <-eventChan:
				sseHub.Broadcast(string(event.Type), event.Payload)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Configuration service
	svc := service.NewConfigService(repo, reg, eventBus)
	if err := svc.SetRegime(cfg.DefaultRegime()); err != nil {
		log.Fatalf("Failed to set startup regime: %v", err)
	}

	docs := cfg.Documents
	if err := svc.LoadActive(ctx, docs.SetupName, docs.MeasurementsName); err != nil {
		log.Fatalf("Failed to restore active documents: %v", err)
	}
	seedFromFiles(ctx, svc, docs)

	// HTTP handlers
	renderer := plot.NewRenderer(cfg.Charts.Dir)
	configHandler := handler.NewConfigHandler(svc)
	previewHandler := handler.NewPreviewHandler(configHandler, renderer)

	mux := http.NewServeMux()

	// Setup endpoints
	mux.HandleFunc("GET /api/setup", configHandler.GetSetup)
	mux.HandleFunc("POST /api/setup", configHandler.ImportSetup)
	mux.HandleFunc("GET /api/setup/export", configHandler.ExportSetup)
	mux.HandleFunc("GET /api/setup/instruments", configHandler.ListInstruments)
	mux.HandleFunc("GET /api/setup/instruments/{name...}", configHandler.GetInstrument)

	// Measurement endpoints
	mux.HandleFunc("GET /api/measurements", configHandler.GetMeasurements)
	mux.HandleFunc("POST /api/measurements", configHandler.ImportMeasurements)
	mux.HandleFunc("GET /api/measurements/export", configHandler.ExportMeasurements)
	mux.HandleFunc("GET /api/experiments", configHandler.ListExperiments)
	mux.HandleFunc("GET /api/experiments/{name}", configHandler.GetExperiment)
	mux.HandleFunc("GET /api/experiments/{name}/prefactors", configHandler.GetPrefactors)
	mux.HandleFunc("GET /api/experiments/{name}/rate", configHandler.GetAcquisitionRate)

	// Regime and derived state
	mux.HandleFunc("GET /api/regime", configHandler.GetRegime)
	mux.HandleFunc("PUT /api/regime", configHandler.SetRegime)
	mux.HandleFunc("GET /api/limits", configHandler.GetLimits)
	mux.HandleFunc("GET /api/validation", configHandler.GetValidation)

	// Revision history
	mux.HandleFunc("GET /api/documents", configHandler.ListDocuments)
	mux.HandleFunc("GET /api/revisions", configHandler.ListRevisions)
	mux.HandleFunc("POST /api/revisions/{id}/activate", configHandler.ActivateRevision)

	// Acquisition previews
	mux.HandleFunc("POST /api/experiments/{name}/preview/scan", previewHandler.PreviewScan)
	mux.HandleFunc("POST /api/experiments/{name}/preview/touchdown", previewHandler.PreviewTouchdown)
	mux.HandleFunc("POST /api/preview/ramp", previewHandler.PreviewRamp)
	mux.HandleFunc("POST /api/preview/retract", previewHandler.PreviewRetract)
	mux.Handle("GET /charts/", handler.ServeCharts(cfg.Charts.Dir))

	// SSE events endpoint
	mux.Handle("GET /api/events", sseHub)

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// File watcher re-imports edited documents
	if cfg.Watch {
		var targets []watcher.Target
		if docs.SetupFile != "" {
			targets = append(targets, watcher.Target{
				Path: docs.SetupFile,
				Kind: repository.KindSetup,
				Name: docs.SetupName,
			})
		}
		if docs.MeasurementsFile != "" {
			targets = append(targets, watcher.Target{
				Path: docs.MeasurementsFile,
				Kind: repository.KindMeasurements,
				Name: docs.MeasurementsName,
			})
		}
		if len(targets) > 0 {
			reloader := watcher.New(svc, targets...)
			go func() {
				if err := reloader.Watch(ctx); err != nil && err != context.Canceled {
					log.Printf("Watcher stopped: %v", err)
				}
			}()
		}
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// seedFromFiles imports the configured document files when the store
// has no active revision for them, so a fresh database comes up with
// the station's configuration instead of empty.
func seedFromFiles(ctx context.Context, svc *service.ConfigService, docs config.DocumentsConfig) {
	if docs.SetupFile != "" {
		if _, err := svc.Setup(); err != nil {
			importFile(ctx, svc, repository.KindSetup, docs.SetupName, docs.SetupFile)
		}
	}
	if docs.MeasurementsFile != "" {
		if _, err := svc.Measurements(); err != nil {
			importFile(ctx, svc, repository.KindMeasurements, docs.MeasurementsName, docs.MeasurementsFile)
		}
	}
}

func importFile(ctx context.Context, svc *service.ConfigService, kind repository.Kind, name, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Cannot read %s file %s: %v", kind, path, err)
		return
	}
	format := formatFromPath(path)

	switch kind {
	case repository.KindSetup:
		_, _, err = svc.ImportSetup(ctx, name, format, data)
	case repository.KindMeasurements:
		_, _, err = svc.ImportMeasurements(ctx, name, format, data)
	}
	if err != nil {
		log.Printf("Failed to import %s from %s: %v", kind, path, err)
		return
	}
	log.Printf("Imported %s %q from %s", kind, name, path)
}

func formatFromPath(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return "json"
}

// runCheck validates the configured document files without touching the
// database and reports every finding, like a linter. Lenient loading is
// used so all problems print in one run.
func runCheck(cfg *config.Config, reg *units.Registry) int {
	docs := cfg.Documents
	if docs.SetupFile == "" && docs.MeasurementsFile == "" {
		log.Println("No document files configured, nothing to check")
		return 0
	}

	ldr := loader.New(reg, false)
	dirty := false

	var setup *domain.Setup
	if docs.SetupFile != "" {
		doc, report, err := ldr.LoadSetup(docs.SetupFile)
		if err != nil {
			log.Printf("setup %s: %v", docs.SetupFile, err)
			return 1
		}
		for _, p := range report.Problems {
			log.Printf("setup %s: %s: %s", docs.SetupFile, p.Path, p.Message)
			dirty = true
		}
		setup = doc
	}

	if docs.MeasurementsFile != "" {
		_, report, err := ldr.LoadMeasurements(docs.MeasurementsFile, setup)
		if err != nil {
			log.Printf("measurements %s: %v", docs.MeasurementsFile, err)
			return 1
		}
		for _, p := range report.Problems {
			log.Printf("measurements %s: %s: %s", docs.MeasurementsFile, p.Path, p.Message)
			dirty = true
		}
	}

	if dirty {
		return 1
	}
	log.Println("Documents are valid")
	return 0
}
