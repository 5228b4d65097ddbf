package parser

import "regexp"

// Columns maps record fields to positional cell indexes in a table row.
type Columns struct {
	Location    int
	Name        int
	Created     int
	Size        int
	Description int
}

// Layout captures every assumption about the published-spreadsheet markup.
// Swapping the layout is enough to follow a different renderer.
type Layout struct {
	// GridSelector matches one container per sheet.
	GridSelector string
	// TabSelector matches the anchors carrying sheet tab labels, in tab order.
	TabSelector string
	// MetaCandidates are meta tag keys checked, in priority order, for the
	// document modification time.
	MetaCandidates []string
	Columns        Columns
	// MinCells is the cell count below which a row is skipped outright.
	MinCells int
}

// DefaultLayout matches the HTML produced by "Publish to the web" spreadsheets.
var DefaultLayout = Layout{
	GridSelector:   "div.ritz.grid-container",
	TabSelector:    `li[id^="sheet-button-"] a`,
	MetaCandidates: []string{"og:updated_time", "revised", "last-modified"},
	Columns: Columns{
		Location:    0,
		Name:        1,
		Created:     2,
		Size:        3,
		Description: 4,
	},
	MinCells: 5,
}

var fallbackNameRe = regexp.MustCompile(`^Sheet \d+$`)

// IsFallbackName reports whether name is a positional placeholder such as "Sheet 3".
func IsFallbackName(name string) bool {
	return fallbackNameRe.MatchString(name)
}
