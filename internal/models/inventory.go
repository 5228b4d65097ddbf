// Package models defines the domain types for Sowilo.
package models

import "time"

// FileRecord is one inventory row. Records are immutable once parsed; a
// change between fetches is detected, never applied in place.
type FileRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	CreatedLabel string `json:"created,omitempty"`
	SizeLabel    string `json:"size,omitempty"`
	Description  string `json:"description,omitempty"`
}

// SheetSnapshot is one parsed spreadsheet tab.
type SheetSnapshot struct {
	SheetName    string       `json:"sheet_name"`
	Records      []FileRecord `json:"records"`
	LastModified *time.Time   `json:"last_modified,omitempty"`
}

// InventorySnapshot is the complete result of one fetch.
type InventorySnapshot struct {
	Sheets    []SheetSnapshot `json:"sheets"`
	FetchedAt time.Time       `json:"fetched_at"`
	Checksum  string          `json:"checksum"`
}

// RecordCount returns the number of records across all sheets.
func (s *InventorySnapshot) RecordCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, sh := range s.Sheets {
		n += len(sh.Records)
	}
	return n
}

// LastModified returns the document-level modification time, if any sheet carries one.
func (s *InventorySnapshot) LastModified() *time.Time {
	if s == nil {
		return nil
	}
	for _, sh := range s.Sheets {
		if sh.LastModified != nil {
			return sh.LastModified
		}
	}
	return nil
}

// ChangeKind classifies a reconciliation event.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// ChangeEvent is a single difference between two consecutive snapshots.
// Key is the record location, the only identity that survives across fetches.
type ChangeEvent struct {
	ID        string     `json:"id"`
	Key       string     `json:"key"`
	Kind      ChangeKind `json:"kind"`
	SheetName string     `json:"sheet_name"`
	Timestamp time.Time  `json:"timestamp"`
	Details   string     `json:"details"`
}
