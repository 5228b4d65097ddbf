package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/inventory"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/notify"
)

// Extractor turns a fetched document into a snapshot.
type Extractor interface {
	Extract(data []byte) (*models.InventorySnapshot, error)
}

// Persister stores the source URL so it survives restarts.
type Persister interface {
	SetString(ctx context.Context, key, value string) error
}

// Outcome is the result of the most recent completed attempt.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

const (
	stateIdle int32 = iota
	stateFetching
)

// Config wires a Controller. Name identifies the source in logs and signals.
// SettingsKey is the persisted key for the source URL. OnInstall, if set, runs
// after each successful install with the snapshots that were just rotated.
type Config struct {
	Name        string
	SettingsKey string
	URL         string
	Fetcher     Fetcher
	Extractor   Extractor
	Store       *inventory.Store
	Persister   Persister
	Notifier    notify.Notifier
	OnInstall   func(previous, current *models.InventorySnapshot)
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Controller owns one source URL and its Store. At most one attempt runs at a
// time; the Store is only written by the goroutine that won the Idle→Fetching
// transition.
type Controller struct {
	name      string
	key       string
	fetcher   Fetcher
	extractor Extractor
	store     *inventory.Store
	persister Persister
	notifier  notify.Notifier
	onInstall func(previous, current *models.InventorySnapshot)
	logger    *slog.Logger
	now       func() time.Time

	state atomic.Int32
	stale atomic.Bool

	// signal orders installs and clears with the notifications they emit.
	signal sync.Mutex

	mu          sync.RWMutex
	url         string
	lastErr     error
	outcome     Outcome
	lastAttempt time.Time
	lastSuccess time.Time
}

// NewController builds a Controller from cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{
		name:      cfg.Name,
		key:       cfg.SettingsKey,
		fetcher:   cfg.Fetcher,
		extractor: cfg.Extractor,
		store:     cfg.Store,
		persister: cfg.Persister,
		notifier:  cfg.Notifier,
		onInstall: cfg.OnInstall,
		logger:    cfg.Logger,
		now:       cfg.Clock,
		url:       strings.TrimSpace(cfg.URL),
	}
	if c.store == nil {
		c.store = inventory.NewStore()
	}
	if c.notifier == nil {
		c.notifier = notify.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Name returns the source name.
func (c *Controller) Name() string { return c.name }

// Store returns the snapshot store this controller installs into.
func (c *Controller) Store() *inventory.Store { return c.store }

// URL returns the configured source URL; empty means unset.
func (c *Controller) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

// Err returns the error of the last attempt, or nil.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Fetching reports whether an attempt is running.
func (c *Controller) Fetching() bool {
	return c.state.Load() == stateFetching
}

// SetSourceURL validates and persists a new source URL, then forces a
// refresh. An empty URL clears the Store without error. Data of the previous
// source stays visible until the new source has been fetched successfully.
func (c *Controller) SetSourceURL(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if err := ValidateURL(raw); err != nil {
			return err
		}
	}

	if c.persister != nil && c.key != "" {
		if err := c.persister.SetString(ctx, c.key, raw); err != nil {
			return fmt.Errorf("refresh: persist %s: %w", c.name, err)
		}
	}

	if raw == "" {
		c.signal.Lock()
		c.mu.Lock()
		c.url = ""
		c.lastErr = nil
		c.outcome = OutcomeNone
		c.store.Clear()
		c.mu.Unlock()
		c.notifier.InventoryCleared(c.name)
		c.signal.Unlock()
		c.logger.Info("refresh: source cleared", slog.String("source", c.name))
		return nil
	}

	c.mu.Lock()
	changed := c.url != raw
	c.url = raw
	c.mu.Unlock()

	if !changed {
		return nil
	}

	c.logger.Info("refresh: source changed", slog.String("source", c.name), slog.String("url", raw))
	c.stale.Store(true)
	err := c.Refresh(ctx, true)
	if errors.Is(err, apperr.ErrRefreshInProgress) {
		// The running attempt sees the stale flag and fetches the new URL.
		return nil
	}
	return err
}

// Refresh fetches, extracts and installs a new snapshot. It is a no-op when
// no URL is set and returns apperr.ErrRefreshInProgress, without touching the
// current error, when another attempt is running. On failure the last good
// snapshot is kept and the error is recorded until the next attempt starts.
func (c *Controller) Refresh(ctx context.Context, force bool) error {
	if c.URL() == "" {
		return nil
	}
	if !c.state.CompareAndSwap(stateIdle, stateFetching) {
		return apperr.ErrRefreshInProgress
	}
	c.stale.Store(false)
	err := c.attempt(ctx, force)
	c.state.Store(stateIdle)

	if c.stale.Swap(false) && ctx.Err() == nil {
		if rerr := c.Refresh(ctx, true); !errors.Is(rerr, apperr.ErrRefreshInProgress) {
			return rerr
		}
	}
	return err
}

func (c *Controller) attempt(ctx context.Context, force bool) error {
	url := c.URL()
	if url == "" {
		return nil
	}
	start := c.now()

	c.mu.Lock()
	c.lastErr = nil
	c.lastAttempt = start
	c.mu.Unlock()

	data, err := c.fetcher.Fetch(ctx, url, force)
	if err != nil {
		return c.fail(ctx, url, err)
	}
	snap, err := c.extractor.Extract(data)
	if err != nil {
		return c.fail(ctx, url, err)
	}

	c.signal.Lock()
	defer c.signal.Unlock()

	c.mu.Lock()
	// The source was changed or cleared while fetching; the result belongs
	// to a URL that is no longer wanted.
	if c.url != url {
		c.mu.Unlock()
		c.logger.Debug("refresh: discarded superseded result", slog.String("source", c.name))
		return nil
	}
	previous := c.store.Replace(snap)
	c.outcome = OutcomeSucceeded
	c.lastSuccess = c.now()
	c.mu.Unlock()

	c.logger.Info("refresh: installed",
		slog.String("source", c.name),
		slog.Int("sheets", len(snap.Sheets)),
		slog.Int("records", snap.RecordCount()),
		slog.String("checksum", checksum.Short(snap.Checksum)),
		slog.Duration("took", c.now().Sub(start)))

	if c.onInstall != nil {
		c.onInstall(previous, snap)
	}
	c.notifier.InventoryUpdated(c.name, snap)
	return nil
}

// fail records err as the current error. Attempts abandoned because ctx was
// cancelled, or superseded by a source change, leave no trace.
func (c *Controller) fail(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		c.logger.Debug("refresh: attempt abandoned",
			slog.String("source", c.name),
			slog.String("error", err.Error()))
		return err
	}
	if c.URL() != url {
		return nil
	}
	c.mu.Lock()
	c.lastErr = err
	c.outcome = OutcomeFailed
	c.mu.Unlock()

	c.logger.Warn("refresh: failed",
		slog.String("source", c.name),
		slog.String("error", err.Error()))
	c.notifier.RefreshFailed(c.name, err)
	return err
}

// Status is a point-in-time view of a controller.
type Status struct {
	Source       string     `json:"source"`
	URL          string     `json:"url"`
	Fetching     bool       `json:"fetching"`
	Outcome      Outcome    `json:"outcome,omitempty"`
	Error        string     `json:"error,omitempty"`
	LastAttempt  *time.Time `json:"last_attempt,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	Sheets       int        `json:"sheets"`
	Records      int        `json:"records"`
	Checksum     string     `json:"checksum,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Status reports the controller's state and the current snapshot summary.
func (c *Controller) Status() Status {
	c.mu.RLock()
	st := Status{
		Source:   c.name,
		URL:      c.url,
		Outcome:  c.outcome,
		Fetching: c.Fetching(),
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	if !c.lastAttempt.IsZero() {
		t := c.lastAttempt
		st.LastAttempt = &t
	}
	if !c.lastSuccess.IsZero() {
		t := c.lastSuccess
		st.LastSuccess = &t
	}
	c.mu.RUnlock()

	if cur := c.store.Current(); cur != nil {
		st.Sheets = len(cur.Sheets)
		st.Records = cur.RecordCount()
		st.Checksum = checksum.Short(cur.Checksum)
		st.LastModified = cur.LastModified()
	}
	return st
}
