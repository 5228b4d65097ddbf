// Package reconcile compares consecutive inventory snapshots.
//
// Records are matched by location only, across all sheets. A record that moves
// to another sheet keeps its identity, and records sharing a location on
// different sheets are treated as one entity; both follow from location being
// the only field that is stable between fetches.
package reconcile

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/models"
)

// DefaultLimit caps the events returned by one pass.
const DefaultLimit = 500

type located struct {
	sheet  string
	record models.FileRecord
}

// Diff returns the change events that turn previous into current. A nil
// previous is treated as an empty snapshot, so a first fetch reports every
// record as added. Diff has no side effects.
//
// Records sharing a location within one snapshot are paired by occurrence
// order; an occurrence without a partner is reported as added or removed.
func Diff(previous, current *models.InventorySnapshot, now time.Time, limit int) []models.ChangeEvent {
	if limit <= 0 {
		limit = DefaultLimit
	}

	prevOrder, prevByLoc := group(previous)
	curOrder, curByLoc := group(current)

	var events []models.ChangeEvent
	emit := func(kind models.ChangeKind, key, sheet, details string) {
		events = append(events, models.ChangeEvent{
			ID:        uuid.New().String(),
			Key:       key,
			Kind:      kind,
			SheetName: sheet,
			Timestamp: now,
			Details:   details,
		})
	}

	for _, loc := range curOrder {
		olds := prevByLoc[loc]
		for i, cur := range curByLoc[loc] {
			if i >= len(olds) {
				emit(models.ChangeAdded, loc, cur.sheet, describe(cur.record))
				continue
			}
			if lines := changedFields(olds[i].record, cur.record); len(lines) > 0 {
				emit(models.ChangeModified, loc, cur.sheet, strings.Join(lines, "\n"))
			}
		}
	}

	for _, loc := range prevOrder {
		curs := curByLoc[loc]
		for i, old := range prevByLoc[loc] {
			if i < len(curs) {
				continue
			}
			emit(models.ChangeRemoved, loc, old.sheet, describe(old.record))
		}
	}

	slices.SortStableFunc(events, func(a, b models.ChangeEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events
}

// group flattens every sheet and indexes records by location, keeping the
// order in which locations first appear.
func group(s *models.InventorySnapshot) ([]string, map[string][]located) {
	byLoc := make(map[string][]located)
	var order []string
	if s == nil {
		return order, byLoc
	}
	for _, sh := range s.Sheets {
		for _, r := range sh.Records {
			if _, ok := byLoc[r.Location]; !ok {
				order = append(order, r.Location)
			}
			byLoc[r.Location] = append(byLoc[r.Location], located{sheet: sh.SheetName, record: r})
		}
	}
	return order, byLoc
}

// changedFields returns one "Field: old → new" line per differing tracked field.
func changedFields(old, cur models.FileRecord) []string {
	var lines []string
	if old.CreatedLabel != cur.CreatedLabel {
		lines = append(lines, fmt.Sprintf("Created: %s → %s", display(old.CreatedLabel), display(cur.CreatedLabel)))
	}
	if old.Name != cur.Name {
		lines = append(lines, fmt.Sprintf("Name: %s → %s", display(old.Name), display(cur.Name)))
	}
	if old.SizeLabel != cur.SizeLabel {
		lines = append(lines, fmt.Sprintf("Size: %s → %s", display(old.SizeLabel), display(cur.SizeLabel)))
	}
	return lines
}

// describe formats a record for added and removed events.
func describe(r models.FileRecord) string {
	lines := []string{
		"Name: " + r.Name,
		"Folder: " + r.Location,
	}
	if r.CreatedLabel != "" {
		lines = append(lines, "Created: "+r.CreatedLabel)
	}
	if r.SizeLabel != "" {
		lines = append(lines, "Size: "+r.SizeLabel)
	}
	if r.Description != "" {
		lines = append(lines, "Description: "+r.Description)
	}
	return strings.Join(lines, "\n")
}

func display(v string) string {
	if v == "" {
		return "(empty)"
	}
	return v
}
