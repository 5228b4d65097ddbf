package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/apperr"
)

// Scheduler calls tick every interval until stopped. Changing the interval
// cancels the pending tick and starts a new cycle; an interval of zero
// disables automatic refresh. A tick already running is not interrupted by a
// new cycle: ticks run on the context passed to Run, and at most one runs at
// a time.
type Scheduler struct {
	tick   func(ctx context.Context)
	logger *slog.Logger

	ticking atomic.Bool
	ticks   sync.WaitGroup

	mu       sync.Mutex
	parent   context.Context
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler returns a stopped scheduler with the given initial interval.
func NewScheduler(interval time.Duration, tick func(ctx context.Context), logger *slog.Logger) *Scheduler {
	if interval < 0 {
		interval = 0
	}
	return &Scheduler{tick: tick, interval: interval, logger: logger}
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.parent = ctx
	s.restartLocked()
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.stopLocked()
	s.parent = nil
	s.mu.Unlock()
	s.ticks.Wait()
	s.logger.Info("scheduler: stopped")
	return nil
}

// Interval returns the current interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval replaces the interval. Negative values are rejected.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d < 0 {
		return &apperr.ValidationError{Field: "interval", Reason: "must not be negative"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == s.interval {
		return nil
	}
	s.interval = d
	s.restartLocked()
	s.logger.Info("scheduler: interval changed", slog.Duration("interval", d))
	return nil
}

func (s *Scheduler) restartLocked() {
	s.stopLocked()
	if s.parent == nil || s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go s.loop(ctx, s.parent, s.interval, done)
}

// stopLocked cancels the running loop and waits for it so that no tick from
// the old cycle starts after it returns. A tick in progress keeps running.
func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}

func (s *Scheduler) loop(ctx, parent context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !s.ticking.CompareAndSwap(false, true) {
				s.logger.Debug("scheduler: previous tick still running")
				continue
			}
			s.ticks.Add(1)
			go func() {
				defer s.ticks.Done()
				defer s.ticking.Store(false)
				s.tick(parent)
			}()
		}
	}
}

// RefreshAll refreshes every controller concurrently with force unset. A
// controller that is already fetching is skipped. The first other error is
// returned after all attempts finish.
func RefreshAll(ctx context.Context, controllers ...*Controller) error {
	var g errgroup.Group
	for _, c := range controllers {
		g.Go(func() error {
			err := c.Refresh(ctx, false)
			if errors.Is(err, apperr.ErrRefreshInProgress) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
