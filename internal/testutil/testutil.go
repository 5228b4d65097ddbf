// Package testutil provides shared test helpers: published-spreadsheet
// fixtures, a settings database and deterministic clocks.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/sowilo/internal/settings"
)

// TestDB creates a temporary settings database that is automatically cleaned up.
func TestDB(t *testing.T) *settings.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sowilo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := settings.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
