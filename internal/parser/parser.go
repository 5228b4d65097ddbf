// Package parser extracts sheets of file records from published-spreadsheet HTML.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Header sentinels and prefixes that mark spreadsheet furniture, not data.
var (
	headerSentinels = map[string]struct{}{
		"Name":        {},
		"Folder Name": {},
	}
	summaryPrefix = "All files"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// IDGenerator mints record identifiers.
type IDGenerator interface {
	New() string
}

type uuidGenerator struct{}

func (uuidGenerator) New() string { return uuid.New().String() }

// Extractor turns raw HTML into an InventorySnapshot.
type Extractor struct {
	layout Layout
	ids    IDGenerator
	now    func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLayout overrides the default markup layout.
func WithLayout(l Layout) Option {
	return func(e *Extractor) { e.layout = l }
}

// WithIDGenerator sets the record id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Extractor) { e.ids = g }
}

// WithClock sets the clock used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New returns an Extractor using DefaultLayout unless overridden.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		layout: DefaultLayout,
		ids:    uuidGenerator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses data with the default extractor.
func Extract(data []byte) (*models.InventorySnapshot, error) {
	return New().Extract(data)
}

// Extract parses a published-spreadsheet document. Malformed rows are dropped
// silently; only document-level problems are reported as *apperr.ParseError.
func (e *Extractor) Extract(data []byte) (*models.InventorySnapshot, error) {
	body := bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(body) {
		return nil, &apperr.ParseError{Kind: apperr.ParseEncoding, Err: errors.New("body is not valid UTF-8")}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &apperr.ParseError{Kind: apperr.ParseEncoding, Err: fmt.Errorf("read html: %w", err)}
	}

	modified := e.lastModified(doc)
	tabs := e.tabNames(doc)

	grids := doc.Find(e.layout.GridSelector)
	if grids.Length() == 0 {
		return nil, &apperr.ParseError{Kind: apperr.ParseNoGridFound}
	}

	var sheets []models.SheetSnapshot
	grids.Each(func(i int, grid *goquery.Selection) {
		table := grid.Find("table").First()
		if table.Length() == 0 {
			return
		}
		name := fmt.Sprintf("Sheet %d", i+1)
		if i < len(tabs) {
			name = tabs[i]
		}
		sheet := models.SheetSnapshot{
			SheetName:    name,
			Records:      e.extractRecords(table),
			LastModified: modified,
		}
		if len(sheet.Records) == 0 && IsFallbackName(sheet.SheetName) {
			return
		}
		sheets = append(sheets, sheet)
	})

	if len(sheets) == 0 {
		return nil, &apperr.ParseError{Kind: apperr.ParseNoData}
	}

	return &models.InventorySnapshot{
		Sheets:    sheets,
		FetchedAt: e.now(),
		Checksum:  checksum.Sum(data),
	}, nil
}

// extractRecords reads data rows by position. Row 0 is always a header.
func (e *Extractor) extractRecords(table *goquery.Selection) []models.FileRecord {
	cols := e.layout.Columns
	records := []models.FileRecord{}
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.ChildrenFiltered("td")
		if cells.Length() < e.layout.MinCells {
			return
		}
		cell := func(idx int) string {
			return strings.TrimSpace(cells.Eq(idx).Text())
		}
		rec := models.FileRecord{
			Location:     cell(cols.Location),
			Name:         cell(cols.Name),
			CreatedLabel: cell(cols.Created),
			SizeLabel:    cell(cols.Size),
			Description:  cell(cols.Description),
		}
		if !IsValid(rec) {
			return
		}
		rec.ID = e.ids.New()
		records = append(records, rec)
	})
	return records
}

// tabNames returns trimmed, non-empty tab labels in document order.
func (e *Extractor) tabNames(doc *goquery.Document) []string {
	var out []string
	doc.Find(e.layout.TabSelector).Each(func(_ int, a *goquery.Selection) {
		name := strings.TrimSpace(a.Text())
		if name != "" {
			out = append(out, name)
		}
	})
	return out
}

// lastModified returns the time from the highest-priority meta tag present.
// A present but unparseable tag yields nil rather than falling through.
func (e *Extractor) lastModified(doc *goquery.Document) *time.Time {
	contents := make(map[string]string)
	doc.Find("meta").Each(func(_ int, m *goquery.Selection) {
		content, ok := m.Attr("content")
		if !ok {
			return
		}
		for _, attr := range []string{"property", "name", "http-equiv"} {
			key, ok := m.Attr(attr)
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			if _, seen := contents[key]; !seen {
				contents[key] = strings.TrimSpace(content)
			}
		}
	})

	for _, candidate := range e.layout.MetaCandidates {
		if content, ok := contents[candidate]; ok {
			return parseTimestamp(content)
		}
	}
	return nil
}

func parseTimestamp(s string) *time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// IsValid reports whether a record carries both required fields and is not
// a header or summary row.
func IsValid(r models.FileRecord) bool {
	for _, v := range []string{r.Name, r.Location} {
		if v == "" {
			return false
		}
		if _, ok := headerSentinels[v]; ok {
			return false
		}
		if strings.HasPrefix(v, summaryPrefix) {
			return false
		}
	}
	return true
}
