package config

import (
	"os"
	"path/filepath"
	"testing"

	"scopecfg/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != ":3000" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Database.Path != "./scopecfg.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.DefaultRegime() != domain.RegimeRT {
		t.Errorf("regime = %q", cfg.DefaultRegime())
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
listen_addr: ":9000"
regime: LT
database:
  path: /var/lib/scopecfg/scopecfg.db
documents:
  setup_file: /lab/config/microscope_setup.json
  measurements_file: /lab/config/measurements.json
  measurements_name: presets
watch: true
units:
  - symbol: Phi0_alias
    value: "1 Phi0"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, loadedPath, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loadedPath != path {
		t.Errorf("path = %q", loadedPath)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.DefaultRegime() != domain.RegimeLT {
		t.Errorf("regime = %q", cfg.Regime)
	}
	if !cfg.Watch {
		t.Error("watch not set")
	}

	// Setup name falls back to the file base name; measurements name is explicit
	if cfg.Documents.SetupName != "microscope_setup" {
		t.Errorf("setup name = %q", cfg.Documents.SetupName)
	}
	if cfg.Documents.MeasurementsName != "presets" {
		t.Errorf("measurements name = %q", cfg.Documents.MeasurementsName)
	}

	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if !reg.Knows("Phi0_alias") {
		t.Error("station unit definition was not applied")
	}
}

func TestLoadRejectsBadRegime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("regime: cryo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadFromPath(path); err == nil {
		t.Error("expected error for unknown regime")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.ListenAddr = ":4000"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.ListenAddr != ":4000" {
		t.Errorf("listen addr = %q", loaded.ListenAddr)
	}
}

func TestFindConfigPathEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvConfigPath, path)
	if got := FindConfigPath(); got != path {
		t.Errorf("FindConfigPath = %q, want %q", got, path)
	}

	t.Setenv(EnvConfigPath, filepath.Join(dir, "missing.yaml"))
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	if got := FindConfigPath(); got != "" {
		t.Errorf("FindConfigPath = %q, want empty", got)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	want := filepath.Join(dir, ConfigDirName, "config.yaml")
	if got := DefaultConfigPath(); got != want {
		t.Errorf("DefaultConfigPath = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", dir)
	want = filepath.Join(dir, ".config", ConfigDirName, "config.yaml")
	if got := DefaultConfigPath(); got != want {
		t.Errorf("DefaultConfigPath = %q, want %q", got, want)
	}
}
