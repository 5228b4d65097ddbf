package internal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/sowilo/internal/inventory"
	"github.com/starford/sowilo/internal/inventoryservice"
	"github.com/starford/sowilo/internal/notify"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/refresh"
	"github.com/starford/sowilo/internal/settings"
)

// Stack is the wired inventory pipeline shared by the server and the CLI.
type Stack struct {
	Service   *inventoryservice.Service
	Scheduler *refresh.Scheduler
	Prefs     *settings.DB

	closers []func()
}

// Build opens the settings database and wires both source controllers, the
// change feed and the scheduler. Values persisted in settings override the
// configured source URLs and refresh interval. Extra notifiers receive every
// refresh signal alongside the configured NATS publisher.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger, extra ...notify.Notifier) (*Stack, error) {
	prefs, err := settings.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init settings: %w", err)
	}
	st := &Stack{Prefs: prefs}
	st.closers = append(st.closers, func() { _ = prefs.Close() })

	sourceURL, err := persisted(ctx, prefs, settings.KeySourceURL, cfg.Source.URL)
	if err != nil {
		st.Close()
		return nil, err
	}
	accountURL, err := persisted(ctx, prefs, settings.KeyAccountSourceURL, cfg.Source.AccountURL)
	if err != nil {
		st.Close()
		return nil, err
	}
	interval := cfg.Source.RefreshInterval
	if n, ok, err := prefs.Int(ctx, settings.KeyRefreshInterval); err != nil {
		st.Close()
		return nil, fmt.Errorf("read refresh interval: %w", err)
	} else if ok {
		interval = n
	}

	notifiers := notify.Multi(extra)
	if cfg.Notify.NATS.Enabled() {
		pub, conn, err := notify.DialNATS(cfg.Notify.NATS.URL, cfg.Notify.NATS.Subject, logger)
		if err != nil {
			// Notifications are optional; the inventory keeps working without them.
			logger.Warn("notify: nats unavailable", slog.String("error", err.Error()))
		} else {
			notifiers = append(notifiers, pub)
			st.closers = append(st.closers, func() { _ = conn.Drain() })
		}
	}

	feed := inventory.NewFeed(cfg.Changes.Limit)
	extractor := parser.New()
	fetcher := refresh.NewHTTPFetcher(cfg.Source.FetchTimeout(), cfg.Source.MaxBodyBytes)

	inv := refresh.NewController(refresh.Config{
		Name:        "inventory",
		SettingsKey: settings.KeySourceURL,
		URL:         sourceURL,
		Fetcher:     fetcher,
		Extractor:   extractor,
		Store:       inventory.NewStore(),
		Persister:   prefs,
		Notifier:    notifiers,
		OnInstall:   inventoryservice.ReconcileHook(feed, notifiers, time.Now),
		Logger:      logger,
	})
	acc := refresh.NewController(refresh.Config{
		Name:        "accounts",
		SettingsKey: settings.KeyAccountSourceURL,
		URL:         accountURL,
		Fetcher:     fetcher,
		Extractor:   extractor,
		Store:       inventory.NewStore(),
		Persister:   prefs,
		Notifier:    notifiers,
		Logger:      logger,
	})

	st.Scheduler = refresh.NewScheduler(time.Duration(interval)*time.Second, func(ctx context.Context) {
		if err := st.Service.RefreshAll(ctx); err != nil {
			logger.Debug("scheduler: tick finished with error", slog.String("error", err.Error()))
		}
	}, logger)
	st.Service = inventoryservice.New(inventoryservice.Deps{
		Inventory: inv,
		Accounts:  acc,
		Feed:      feed,
		Prefs:     prefs,
		Scheduler: st.Scheduler,
		Logger:    logger,
	})
	return st, nil
}

// Close releases the settings database and any notifier connections.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func persisted(ctx context.Context, prefs settings.Store, key, fallback string) (string, error) {
	v, ok, err := prefs.String(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	if ok {
		return v, nil
	}
	return fallback, nil
}
