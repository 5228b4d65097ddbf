package internal

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/sowilo/internal/inventoryservice"
	pkgconfig "github.com/starford/sowilo/pkg/config"
)

const reloadDebounce = 200 * time.Millisecond

// WatchConfig reloads the config file at path whenever it changes and
// re-applies source URLs and the refresh interval that differ from the
// previous load. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself, since editors
// commonly replace a file instead of writing it in place.
func WatchConfig(ctx context.Context, path string, current *Config, svc *inventoryservice.Service, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("config: watching", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	prev := current

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("config: watcher stopped")
			return nil

		case <-fire:
			fire = nil
			next := NewDefaultConfig()
			if err := pkgconfig.Load(abs, next); err != nil {
				logger.Warn("config: reload failed", slog.String("error", err.Error()))
				continue
			}
			applyReload(ctx, svc, prev, next, logger)
			prev = next

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// applyReload pushes changed source settings through the service, which
// persists them like any other update.
func applyReload(ctx context.Context, svc *inventoryservice.Service, prev, next *Config, logger *slog.Logger) {
	if next.Source.RefreshInterval != prev.Source.RefreshInterval {
		if err := svc.SetAutoRefreshInterval(ctx, next.Source.RefreshInterval); err != nil {
			logger.Warn("config: apply refresh interval", slog.String("error", err.Error()))
		} else {
			logger.Info("config: refresh interval reloaded", slog.Int("seconds", next.Source.RefreshInterval))
		}
	}
	if next.Source.URL != prev.Source.URL {
		if err := svc.SetSourceURL(ctx, next.Source.URL); err != nil {
			logger.Warn("config: apply source url", slog.String("error", err.Error()))
		} else {
			logger.Info("config: source url reloaded")
		}
	}
	if next.Source.AccountURL != prev.Source.AccountURL {
		if err := svc.SetAccountSourceURL(ctx, next.Source.AccountURL); err != nil {
			logger.Warn("config: apply account url", slog.String("error", err.Error()))
		} else {
			logger.Info("config: account url reloaded")
		}
	}
}
