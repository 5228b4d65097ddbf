// Package export writes inventory snapshots as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/starford/sowilo/internal/models"
)

const maxSheetNameLen = 31

// Header is the first row of every exported worksheet.
var Header = []any{"Folder", "Name", "Created", "Size", "Description"}

// Sheet is one worksheet to export. Title is the name shown to the user.
type Sheet struct {
	Title   string
	Records []models.FileRecord
}

// WriteXLSX writes one worksheet per sheet, in order, to w. Titles are
// sanitized to valid, unique worksheet names. An empty sheet list produces a
// workbook with a single header-only worksheet.
func WriteXLSX(w io.Writer, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if len(sheets) == 0 {
		sheets = []Sheet{{Title: "Inventory"}}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	names := SheetNames(sheets)
	defaultSheet := f.GetSheetName(0)
	for i, sh := range sheets {
		name := names[i]
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("export: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export: new sheet %q: %w", name, err)
		}
		if err := writeRows(f, name, sh.Records, bold); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, name string, records []models.FileRecord, headerStyle int) error {
	if err := f.SetSheetRow(name, "A1", &Header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	if err := f.SetCellStyle(name, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.Location, r.Name, r.CreatedLabel, r.SizeLabel, r.Description}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(name, "A", "B", 40); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}
	return nil
}

// SheetNames returns a valid, case-insensitively unique worksheet name for
// every sheet.
func SheetNames(sheets []Sheet) []string {
	out := make([]string, len(sheets))
	seen := make(map[string]struct{}, len(sheets))
	for i, sh := range sheets {
		base := sanitize(sh.Title)
		name := base
		for n := 2; ; n++ {
			if _, dup := seen[strings.ToLower(name)]; !dup {
				break
			}
			suffix := fmt.Sprintf(" (%d)", n)
			name = truncate(base, maxSheetNameLen-len(suffix)) + suffix
		}
		seen[strings.ToLower(name)] = struct{}{}
		out[i] = name
	}
	return out
}

var invalidSheetChars = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_",
)

func sanitize(title string) string {
	name := strings.Trim(invalidSheetChars.Replace(strings.TrimSpace(title)), "'")
	name = truncate(name, maxSheetNameLen)
	if name == "" {
		return "Sheet"
	}
	return name
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
