// Package inventoryservice is the command and query surface over the refresh
// controllers, the change feed and the user's sheet preferences. The HTTP
// API, the MCP server and the CLI all go through it.
package inventoryservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/export"
	"github.com/starford/sowilo/internal/inventory"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/notify"
	"github.com/starford/sowilo/internal/reconcile"
	"github.com/starford/sowilo/internal/refresh"
	"github.com/starford/sowilo/internal/search"
	"github.com/starford/sowilo/internal/settings"
)

const maxDisplayNameLen = 100

// Service implements every inbound inventory command.
type Service struct {
	inventory *refresh.Controller
	accounts  *refresh.Controller
	feed      *inventory.Feed
	prefs     settings.Store
	scheduler *refresh.Scheduler
	logger    *slog.Logger
}

// Deps groups the collaborators of a Service. Prefs and Scheduler may be nil
// for one-shot use; preference commands then fail and the interval is fixed.
type Deps struct {
	Inventory *refresh.Controller
	Accounts  *refresh.Controller
	Feed      *inventory.Feed
	Prefs     settings.Store
	Scheduler *refresh.Scheduler
	Logger    *slog.Logger
}

// New returns a Service over deps.
func New(deps Deps) *Service {
	s := &Service{
		inventory: deps.Inventory,
		accounts:  deps.Accounts,
		feed:      deps.Feed,
		prefs:     deps.Prefs,
		scheduler: deps.Scheduler,
		logger:    deps.Logger,
	}
	if s.feed == nil {
		s.feed = inventory.NewFeed(0)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ReconcileHook returns the install hook for the inventory controller: it
// diffs the rotated snapshots, replaces the feed with the result and signals
// the change list.
func ReconcileHook(feed *inventory.Feed, n notify.Notifier, now func() time.Time) func(previous, current *models.InventorySnapshot) {
	if now == nil {
		now = time.Now
	}
	return func(previous, current *models.InventorySnapshot) {
		events := reconcile.Diff(previous, current, now(), feed.Limit())
		feed.Replace(events)
		if n != nil {
			n.ChangesDetected(events)
		}
	}
}

// Inventory returns the inventory controller.
func (s *Service) Inventory() *refresh.Controller { return s.inventory }

// AccountsController returns the account controller, which may be nil.
func (s *Service) AccountsController() *refresh.Controller { return s.accounts }

// SetSourceURL changes the inventory source. See refresh.Controller.SetSourceURL.
func (s *Service) SetSourceURL(ctx context.Context, url string) error {
	return s.inventory.SetSourceURL(ctx, url)
}

// SetAccountSourceURL changes the account source.
func (s *Service) SetAccountSourceURL(ctx context.Context, url string) error {
	if s.accounts == nil {
		return &apperr.ValidationError{Field: "accounts", Reason: "account source not configured"}
	}
	return s.accounts.SetSourceURL(ctx, url)
}

// Refresh refreshes the inventory source.
func (s *Service) Refresh(ctx context.Context, force bool) error {
	return s.inventory.Refresh(ctx, force)
}

// RefreshAccounts refreshes the account source.
func (s *Service) RefreshAccounts(ctx context.Context, force bool) error {
	if s.accounts == nil {
		return nil
	}
	return s.accounts.Refresh(ctx, force)
}

// RefreshAll refreshes both sources concurrently, as a scheduler tick does.
func (s *Service) RefreshAll(ctx context.Context) error {
	cs := []*refresh.Controller{s.inventory}
	if s.accounts != nil {
		cs = append(cs, s.accounts)
	}
	return refresh.RefreshAll(ctx, cs...)
}

// SetAutoRefreshInterval persists and applies the refresh interval. Zero
// disables automatic refresh.
func (s *Service) SetAutoRefreshInterval(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return &apperr.ValidationError{Field: "interval", Reason: "must not be negative"}
	}
	if s.prefs != nil {
		if err := s.prefs.SetInt(ctx, settings.KeyRefreshInterval, seconds); err != nil {
			return err
		}
	}
	if s.scheduler != nil {
		return s.scheduler.SetInterval(time.Duration(seconds) * time.Second)
	}
	return nil
}

// RefreshInterval returns the active interval in seconds.
func (s *Service) RefreshInterval() int {
	if s.scheduler == nil {
		return 0
	}
	return int(s.scheduler.Interval() / time.Second)
}

// SheetView is a sheet of the current inventory with preferences applied.
type SheetView struct {
	SheetName    string     `json:"sheet_name"`
	DisplayName  string     `json:"display_name"`
	Position     int        `json:"position"`
	Records      int        `json:"records"`
	Size         float64    `json:"size"`
	SizeUnit     string     `json:"size_unit"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// SheetDetail is a SheetView with its records.
type SheetDetail struct {
	SheetView
	Items []models.FileRecord `json:"items"`
}

// Sheets lists the current sheets in display order.
func (s *Service) Sheets(ctx context.Context) ([]SheetView, error) {
	cur := s.inventory.Store().Current()
	if cur == nil {
		return []SheetView{}, nil
	}
	overlays, err := s.overlays(ctx)
	if err != nil {
		return nil, err
	}
	return arrange(cur.Sheets, overlays), nil
}

// Sheet returns one sheet by its source name.
func (s *Service) Sheet(ctx context.Context, name string) (*SheetDetail, error) {
	sh, ok := s.inventory.Store().SheetByName(name)
	if !ok {
		return nil, fmt.Errorf("sheet %q: %w", name, apperr.ErrNotFound)
	}
	views, err := s.Sheets(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		if v.SheetName == name {
			return &SheetDetail{SheetView: v, Items: sh.Records}, nil
		}
	}
	return nil, fmt.Errorf("sheet %q: %w", name, apperr.ErrNotFound)
}

// SearchResult is the matches of one sheet.
type SearchResult struct {
	SheetName   string              `json:"sheet_name"`
	DisplayName string              `json:"display_name"`
	Records     []models.FileRecord `json:"records"`
}

// Filter searches the current inventory. sortField is optional; order is
// "asc" (default) or "desc". Results follow the display order of sheets.
func (s *Service) Filter(ctx context.Context, query, sortField, order string) ([]SearchResult, error) {
	matches := search.Filter(s.inventory.Store().Current(), query)
	if sortField != "" {
		cmp, err := search.ByField(sortField, strings.EqualFold(order, "desc"))
		if err != nil {
			return nil, &apperr.ValidationError{Field: "sort", Reason: err.Error()}
		}
		search.SortMatches(matches, cmp)
	}

	views, err := s.Sheets(ctx)
	if err != nil {
		return nil, err
	}
	rank := make(map[string]SheetView, len(views))
	for _, v := range views {
		rank[v.SheetName] = v
	}

	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, SearchResult{
			SheetName:   m.SheetName,
			DisplayName: rank[m.SheetName].DisplayName,
			Records:     m.Records,
		})
	}
	slices.SortStableFunc(out, func(a, b SearchResult) int {
		return rank[a.SheetName].Position - rank[b.SheetName].Position
	})
	return out, nil
}

// Totals summarises the current inventory.
type Totals struct {
	Sheets   int                    `json:"sheets"`
	Records  int                    `json:"records"`
	Size     float64                `json:"size"`
	SizeUnit string                 `json:"size_unit"`
	PerSheet []inventory.SheetCount `json:"per_sheet"`
	Accounts int                    `json:"accounts"`
}

// Totals returns record counts and the size total.
func (s *Service) Totals() Totals {
	store := s.inventory.Store()
	size, unit := store.CurrentTotalSize()
	t := Totals{
		Records:  store.TotalRecords(),
		Size:     size,
		SizeUnit: unit,
		PerSheet: store.SheetCounts(),
	}
	if cur := store.Current(); cur != nil {
		t.Sheets = len(cur.Sheets)
	}
	if s.accounts != nil {
		t.Accounts = s.accounts.Store().TotalRecords()
	}
	return t
}

// Changes returns the change feed, most recent first.
func (s *Service) Changes() []models.ChangeEvent {
	return s.feed.List()
}

// DismissChange removes one event from the feed.
func (s *Service) DismissChange(id string) error {
	if !s.feed.Dismiss(id) {
		return fmt.Errorf("change %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// ClearChanges empties the feed.
func (s *Service) ClearChanges() {
	s.feed.Clear()
}

// RenameSheet sets the display name of a current sheet. An empty name
// reverts to the source name.
func (s *Service) RenameSheet(ctx context.Context, sheet, displayName string) error {
	if s.prefs == nil {
		return &apperr.ValidationError{Field: "display_name", Reason: "preferences unavailable"}
	}
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > maxDisplayNameLen {
		return &apperr.ValidationError{Field: "display_name", Reason: fmt.Sprintf("longer than %d characters", maxDisplayNameLen)}
	}
	if _, ok := s.inventory.Store().SheetByName(sheet); !ok {
		return fmt.Errorf("sheet %q: %w", sheet, apperr.ErrNotFound)
	}
	return s.prefs.SetDisplayName(ctx, sheet, displayName)
}

// ReorderSheets stores a new display order. Every name must be a current
// sheet and appear once; unlisted sheets follow in source order.
func (s *Service) ReorderSheets(ctx context.Context, sheets []string) error {
	if s.prefs == nil {
		return &apperr.ValidationError{Field: "sheets", Reason: "preferences unavailable"}
	}
	seen := make(map[string]struct{}, len(sheets))
	for _, name := range sheets {
		if _, dup := seen[name]; dup {
			return &apperr.ValidationError{Field: "sheets", Reason: fmt.Sprintf("%q listed twice", name)}
		}
		seen[name] = struct{}{}
		if _, ok := s.inventory.Store().SheetByName(name); !ok {
			return fmt.Errorf("sheet %q: %w", name, apperr.ErrNotFound)
		}
	}
	return s.prefs.SetOrder(ctx, sheets)
}

// Accounts returns the sheets of the account source.
func (s *Service) Accounts() []models.SheetSnapshot {
	if s.accounts == nil {
		return []models.SheetSnapshot{}
	}
	cur := s.accounts.Store().Current()
	if cur == nil {
		return []models.SheetSnapshot{}
	}
	return cur.Sheets
}

// Status is the combined state of both sources.
type Status struct {
	Inventory              refresh.Status  `json:"inventory"`
	Accounts               *refresh.Status `json:"accounts,omitempty"`
	RefreshIntervalSeconds int             `json:"refresh_interval_seconds"`
	Changes                int             `json:"changes"`
}

// Status reports both controllers, the interval and the feed size.
func (s *Service) Status() Status {
	st := Status{
		Inventory:              s.inventory.Status(),
		RefreshIntervalSeconds: s.RefreshInterval(),
		Changes:                s.feed.Len(),
	}
	if s.accounts != nil {
		a := s.accounts.Status()
		st.Accounts = &a
	}
	return st
}

// ExportXLSX writes the current inventory, in display order and under
// display names, as a workbook.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer) error {
	views, err := s.Sheets(ctx)
	if err != nil {
		return err
	}
	store := s.inventory.Store()
	sheets := make([]export.Sheet, 0, len(views))
	for _, v := range views {
		sh, ok := store.SheetByName(v.SheetName)
		if !ok {
			continue
		}
		sheets = append(sheets, export.Sheet{Title: v.DisplayName, Records: sh.Records})
	}
	return export.WriteXLSX(w, sheets)
}

func (s *Service) overlays(ctx context.Context) ([]settings.Overlay, error) {
	if s.prefs == nil {
		return nil, nil
	}
	return s.prefs.Overlays(ctx)
}
