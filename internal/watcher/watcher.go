package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"scopecfg/internal/domain"
	"scopecfg/internal/repository"
	"scopecfg/internal/service"
)

// Target binds a configuration file on disk to the stored document it
// feeds. When the file changes the reloader re-imports it under the
// same kind and name.
type Target struct {
	Path string
	Kind repository.Kind
	Name string
}

// Reloader watches configuration files and re-imports them on change,
// so edits made with a text editor show up as new revisions without
// touching the API.
type Reloader struct {
	svc      *service.ConfigService
	targets  []Target
	debounce time.Duration
}

// New creates a reloader over the given targets
func New(svc *service.ConfigService, targets ...Target) *Reloader {
	return &Reloader{
		svc:      svc,
		targets:  targets,
		debounce: 500 * time.Millisecond,
	}
}

// WithDebounce sets the debounce duration
func (r *Reloader) WithDebounce(d time.Duration) *Reloader {
	r.debounce = d
	return r
}

// Watch blocks until the context is cancelled, re-importing a target
// whenever its file is written. Editors that replace the file instead
// of writing in place are handled by watching the parent directory.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	byPath := make(map[string]Target)

	for _, t := range r.targets {
		absPath, err := filepath.Abs(t.Path)
		if err != nil {
			continue
		}

		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("Failed to watch directory %s: %v", dir, err)
				continue
			}
			watchedDirs[dir] = true
		}

		byPath[absPath] = t
		log.Printf("Watching %s for changes", absPath)
	}

	debounceTimers := make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			target, ok := byPath[absPath]
			if !ok {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if timer, exists := debounceTimers[absPath]; exists {
					timer.Stop()
				}

				debounceTimers[absPath] = time.AfterFunc(r.debounce, func() {
					if err := r.reload(ctx, target, absPath); err != nil {
						log.Printf("Reload of %s failed: %v", absPath, err)
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)

		case <-ctx.Done():
			for _, timer := range debounceTimers {
				timer.Stop()
			}
			return ctx.Err()
		}
	}
}

func (r *Reloader) reload(ctx context.Context, t Target, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")

	switch t.Kind {
	case repository.KindSetup:
		_, report, err := r.svc.ImportSetup(ctx, t.Name, format, data)
		if err != nil {
			return reloadError(report, err)
		}
	case repository.KindMeasurements:
		_, report, err := r.svc.ImportMeasurements(ctx, t.Name, format, data)
		if err != nil {
			return reloadError(report, err)
		}
	default:
		return fmt.Errorf("unknown document kind %q", t.Kind)
	}

	log.Printf("File changed: %s, reloaded %s/%s", path, t.Kind, t.Name)
	return nil
}

// reloadError keeps the current revision in place and surfaces the
// validation findings, so a half-saved file never clobbers good state.
func reloadError(report *domain.Report, err error) error {
	if report != nil && !report.OK() {
		return fmt.Errorf("document rejected: %w", err)
	}
	return err
}
