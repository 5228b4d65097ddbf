package settings

import (
	"context"
	"database/sql"
	"fmt"
)

// Overlay is the user's presentation preference for one sheet. Position is
// nil when the sheet has never been ordered explicitly.
type Overlay struct {
	SheetName   string
	DisplayName string
	Position    *int
}

// Overlays returns every stored sheet overlay.
func (db *DB) Overlays(ctx context.Context) ([]Overlay, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT sheet_name, display_name, position
		FROM sheet_overlays
		ORDER BY sheet_name
	`)
	if err != nil {
		return nil, fmt.Errorf("settings: overlays: %w", err)
	}
	defer rows.Close()

	var out []Overlay
	for rows.Next() {
		var o Overlay
		var pos sql.NullInt64
		if err := rows.Scan(&o.SheetName, &o.DisplayName, &pos); err != nil {
			return nil, err
		}
		if pos.Valid {
			p := int(pos.Int64)
			o.Position = &p
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetDisplayName sets the name shown for sheet. An empty displayName reverts
// to the sheet's own name.
func (db *DB) SetDisplayName(ctx context.Context, sheet, displayName string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sheet_overlays (sheet_name, display_name)
		VALUES (?, ?)
		ON CONFLICT(sheet_name) DO UPDATE SET display_name = excluded.display_name
	`, sheet, displayName)
	if err != nil {
		return fmt.Errorf("settings: set display name: %w", err)
	}
	return nil
}

// SetOrder stores the position of each named sheet. Sheets not listed lose
// their explicit position.
func (db *DB) SetOrder(ctx context.Context, sheets []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settings: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE sheet_overlays SET position = NULL`); err != nil {
		return fmt.Errorf("settings: reset order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sheet_overlays (sheet_name, position)
		VALUES (?, ?)
		ON CONFLICT(sheet_name) DO UPDATE SET position = excluded.position
	`)
	if err != nil {
		return fmt.Errorf("settings: prepare order: %w", err)
	}
	defer stmt.Close()

	for i, name := range sheets {
		if _, err := stmt.ExecContext(ctx, name, i); err != nil {
			return fmt.Errorf("settings: set order: %w", err)
		}
	}
	return tx.Commit()
}
