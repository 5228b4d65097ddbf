// Package settings persists user configuration in SQLite: source URLs, the
// refresh interval, and per-sheet display overlays.
package settings

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

// Persisted keys.
const (
	KeySourceURL        = "source_url"
	KeyAccountSourceURL = "account_source_url"
	KeyRefreshInterval  = "refresh_interval_seconds"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is the settings collaborator. Consumers depend on this interface
// rather than *DB.
type Store interface {
	String(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error
	Int(ctx context.Context, key string) (int, bool, error)
	SetInt(ctx context.Context, key string, value int) error
	Overlays(ctx context.Context) ([]Overlay, error)
	SetDisplayName(ctx context.Context, sheet, displayName string) error
	SetOrder(ctx context.Context, sheets []string) error
	Close() error
}

var _ Store = (*DB)(nil)

// DB is the SQLite-backed Store.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the settings database and migrates it to the
// latest schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("settings: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("settings: ping: %w", err)
	}
	if err := migrateUp(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// migrateUp applies pending migrations. The migrate instance is not closed
// because that would close conn, which the DB owns.
func migrateUp(conn *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("settings: migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return fmt.Errorf("settings: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return fmt.Errorf("settings: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("settings: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// String returns the stored value for key and whether it was set.
func (db *DB) String(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: get %s: %w", key, err)
	}
	return v, true, nil
}

// SetString stores value under key.
func (db *DB) SetString(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

// Int returns an integer setting. A stored value that is not an integer is
// reported as an error.
func (db *DB) Int(ctx context.Context, key string) (int, bool, error) {
	s, ok, err := db.String(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("settings: %s is not an integer: %w", key, err)
	}
	return n, true, nil
}

// SetInt stores an integer setting.
func (db *DB) SetInt(ctx context.Context, key string, value int) error {
	return db.SetString(ctx, key, strconv.Itoa(value))
}
