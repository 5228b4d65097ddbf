// Package inventory holds the current and previous inventory snapshots and
// the aggregates derived from them.
package inventory

import (
	"sync/atomic"

	"github.com/starford/sowilo/internal/models"
)

type generation struct {
	current  *models.InventorySnapshot
	previous *models.InventorySnapshot
}

// Store keeps exactly one current and one previous snapshot. Both are swapped
// as a single pointer so readers never see a half-installed state. Snapshots
// handed to or returned by the Store must be treated as read-only.
type Store struct {
	gen atomic.Pointer[generation]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	s := &Store{}
	s.gen.Store(&generation{})
	return s
}

// Replace installs snap as current and moves the old current to previous.
// It returns the snapshot that became previous (nil on the first install).
func (s *Store) Replace(snap *models.InventorySnapshot) *models.InventorySnapshot {
	for {
		old := s.gen.Load()
		next := &generation{current: snap, previous: old.current}
		if s.gen.CompareAndSwap(old, next) {
			return old.current
		}
	}
}

// Clear drops both snapshots. Used when the source is explicitly unset.
func (s *Store) Clear() {
	s.gen.Store(&generation{})
}

// Current returns the last installed snapshot, or nil.
func (s *Store) Current() *models.InventorySnapshot {
	return s.gen.Load().current
}

// Previous returns the snapshot installed before Current, or nil.
func (s *Store) Previous() *models.InventorySnapshot {
	return s.gen.Load().previous
}

// Pair returns previous and current from the same generation.
func (s *Store) Pair() (previous, current *models.InventorySnapshot) {
	g := s.gen.Load()
	return g.previous, g.current
}

// SheetByName returns the named sheet of the current snapshot.
func (s *Store) SheetByName(name string) (*models.SheetSnapshot, bool) {
	cur := s.Current()
	if cur == nil {
		return nil, false
	}
	for i := range cur.Sheets {
		if cur.Sheets[i].SheetName == name {
			return &cur.Sheets[i], true
		}
	}
	return nil, false
}

// SheetCount is the number of records on one sheet.
type SheetCount struct {
	SheetName string `json:"sheet_name"`
	Records   int    `json:"records"`
}

// SheetCounts returns per-sheet record counts in sheet order.
func (s *Store) SheetCounts() []SheetCount {
	cur := s.Current()
	if cur == nil {
		return nil
	}
	out := make([]SheetCount, len(cur.Sheets))
	for i, sh := range cur.Sheets {
		out[i] = SheetCount{SheetName: sh.SheetName, Records: len(sh.Records)}
	}
	return out
}

// TotalRecords returns the record count of the current snapshot.
func (s *Store) TotalRecords() int {
	return s.Current().RecordCount()
}

// CurrentTotalSize sums the size contribution of every current record.
func (s *Store) CurrentTotalSize() (float64, string) {
	cur := s.Current()
	if cur == nil {
		return FormatSize(0)
	}
	var gb float64
	for _, sh := range cur.Sheets {
		gb += sheetGB(sh)
	}
	return FormatSize(gb)
}
