// Package servicetest wires a complete inventory service against an
// in-process upstream for API and tool tests.
package servicetest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/sowilo/internal/inventory"
	"github.com/starford/sowilo/internal/inventoryservice"
	"github.com/starford/sowilo/internal/notify"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/refresh"
	"github.com/starford/sowilo/internal/settings"
	"github.com/starford/sowilo/internal/testutil"
)

// Upstream is a published-spreadsheet server whose response can be swapped.
type Upstream struct {
	srv      *httptest.Server
	mu       sync.Mutex
	body     []byte
	status   int
	gate     chan struct{}
	entered  chan struct{}
	requests atomic.Int32
}

func newUpstream(t *testing.T) *Upstream {
	t.Helper()
	u := &Upstream{status: http.StatusOK}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.requests.Add(1)
		u.mu.Lock()
		gate, entered := u.gate, u.entered
		u.mu.Unlock()
		if gate != nil {
			entered <- struct{}{}
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		u.mu.Lock()
		body, status := u.body, u.status
		u.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

// URL returns the upstream address.
func (u *Upstream) URL() string { return u.srv.URL + "/pubhtml" }

// Serve makes the upstream answer 200 with body.
func (u *Upstream) Serve(body []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.body, u.status = body, http.StatusOK
}

// Fail makes the upstream answer with status and an empty body.
func (u *Upstream) Fail(status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.body, u.status = nil, status
}

// Hold makes the following requests wait until release is called. entered
// receives once per held request.
func (u *Upstream) Hold() (entered <-chan struct{}, release func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	gate := make(chan struct{})
	u.gate, u.entered = gate, make(chan struct{}, 8)
	var once sync.Once
	return u.entered, func() {
		once.Do(func() {
			u.mu.Lock()
			u.gate = nil
			u.mu.Unlock()
			close(gate)
		})
	}
}

// Requests returns the number of requests served.
func (u *Upstream) Requests() int { return int(u.requests.Load()) }

// Harness holds a wired Service and its collaborators.
type Harness struct {
	Service   *inventoryservice.Service
	Inventory *Upstream
	Accounts  *Upstream
	Prefs     *settings.DB
	Feed      *inventory.Feed
	Scheduler *refresh.Scheduler
	Clock     *testutil.StubClock
}

// New builds a Harness whose inventory source points at its Inventory
// upstream and whose account source is left unset. n may be nil.
func New(t *testing.T, n notify.Notifier) *Harness {
	t.Helper()
	if n == nil {
		n = notify.Nop{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.FixedClock()
	prefs := testutil.TestDB(t)
	feed := inventory.NewFeed(0)
	extractor := parser.New(parser.WithClock(clock.Now))
	fetcher := refresh.NewHTTPFetcher(5*time.Second, 0)

	h := &Harness{
		Inventory: newUpstream(t),
		Accounts:  newUpstream(t),
		Prefs:     prefs,
		Feed:      feed,
		Clock:     clock,
	}

	inv := refresh.NewController(refresh.Config{
		Name:        "inventory",
		SettingsKey: settings.KeySourceURL,
		URL:         h.Inventory.URL(),
		Fetcher:     fetcher,
		Extractor:   extractor,
		Store:       inventory.NewStore(),
		Persister:   prefs,
		Notifier:    n,
		OnInstall:   inventoryservice.ReconcileHook(feed, n, clock.Now),
		Logger:      logger,
		Clock:       clock.Now,
	})
	acc := refresh.NewController(refresh.Config{
		Name:        "accounts",
		SettingsKey: settings.KeyAccountSourceURL,
		Fetcher:     fetcher,
		Extractor:   extractor,
		Store:       inventory.NewStore(),
		Persister:   prefs,
		Notifier:    n,
		Logger:      logger,
		Clock:       clock.Now,
	})

	h.Scheduler = refresh.NewScheduler(0, func(ctx context.Context) {
		_ = h.Service.RefreshAll(ctx)
	}, logger)
	h.Service = inventoryservice.New(inventoryservice.Deps{
		Inventory: inv,
		Accounts:  acc,
		Feed:      feed,
		Prefs:     prefs,
		Scheduler: h.Scheduler,
		Logger:    logger,
	})
	return h
}

// InventoryHTML builds a two-sheet document: "Movies" with the given record
// names and "Music" with one fixed record.
func InventoryHTML(movies ...string) []byte {
	mv := testutil.Sheet{Tab: "Movies", Rows: [][]string{testutil.Header}}
	for _, m := range movies {
		mv.Rows = append(mv.Rows, testutil.Row("/media/movies/"+m, m, "600", "", ""))
	}
	mu := testutil.Sheet{Tab: "Music", Rows: [][]string{
		testutil.Header,
		testutil.Row("/media/music/xtal", "Xtal", "500", "", "ambient"),
	}}
	return testutil.PublishedHTML(nil, mv, mu)
}
