package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"ukiyo/internal/logging"
)

// DefaultWatchDebounce is how long a config file must stay quiet before reload.
const DefaultWatchDebounce = 300 * time.Millisecond

// Watch reloads the config file at path whenever it changes and hands the
// freshly loaded config to onChange. Invalid files are logged and skipped.
// It blocks until ctx is cancelled, so it fits inside an errgroup.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return watch(ctx, path, DefaultWatchDebounce, onChange)
}

func watch(ctx context.Context, path string, debounce time.Duration, onChange func(*Config)) error {
	log := logging.Get(logging.CategoryConfig)

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file via rename.
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Info("watching config file: %s", abs)

	ticker := time.NewTicker(debounce / 3)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			log.Debug("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("config event %s for %s", event.Op, event.Name)
			pending = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher error: %v", err)

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < debounce {
				continue
			}
			pending = time.Time{}

			cfg, err := Load(abs)
			if err != nil {
				log.Warn("config reload failed: %v", err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				log.Warn("reloaded config is invalid, keeping previous: %v", err)
				continue
			}
			log.Info("config reloaded from %s", abs)
			onChange(cfg)
		}
	}
}
