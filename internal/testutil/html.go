package testutil

import (
	"fmt"
	"html"
	"strings"
)

// Sheet describes one grid container in a generated published-spreadsheet page.
type Sheet struct {
	// Tab is the label rendered in the sheet menu; empty means no tab entry.
	Tab string
	// Rows are data rows, each rendered as <td> cells after the column-letter row.
	Rows [][]string
	// NoTable renders the container without an embedded table.
	NoTable bool
}

// Header is the conventional first data row of an inventory sheet.
var Header = []string{"Folder Name", "Name", "Created", "Size", "Description"}

// PublishedHTML renders a page shaped like a "Publish to the web" spreadsheet.
// meta entries are emitted as <meta property=key content=value>.
func PublishedHTML(meta map[string]string, sheets ...Sheet) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Inventory</title>")
	for k, v := range meta {
		fmt.Fprintf(&b, `<meta property="%s" content="%s">`, html.EscapeString(k), html.EscapeString(v))
	}
	b.WriteString(`</head><body><div id="top-bar"></div><ul id="sheet-menu">`)
	for i, s := range sheets {
		if s.Tab == "" {
			continue
		}
		fmt.Fprintf(&b, `<li id="sheet-button-%d"><a href="#">%s</a></li>`, i, html.EscapeString(s.Tab))
	}
	b.WriteString(`</ul><div id="sheets-viewport">`)
	for i, s := range sheets {
		fmt.Fprintf(&b, `<div id="%d" style="display:none;position:relative;" dir="ltr">`, i)
		b.WriteString(`<div class="ritz grid-container" dir="ltr">`)
		if !s.NoTable {
			b.WriteString(`<table class="waffle" cellspacing="0" cellpadding="0"><thead><tr><th class="row-header freezebar-origin-ltr"></th>`)
			for c := 0; c < 5; c++ {
				fmt.Fprintf(&b, `<th class="column-headers-background">%c</th>`, 'A'+c)
			}
			b.WriteString(`</tr></thead><tbody>`)
			for r, row := range s.Rows {
				fmt.Fprintf(&b, `<tr style="height: 20px"><th class="row-headers-background"><div class="row-header-wrapper">%d</div></th>`, r+1)
				for _, cell := range row {
					fmt.Fprintf(&b, `<td class="s0" dir="ltr">%s</td>`, html.EscapeString(cell))
				}
				b.WriteString(`</tr>`)
			}
			b.WriteString(`</tbody></table>`)
		}
		b.WriteString(`</div></div>`)
	}
	b.WriteString(`</div></body></html>`)
	return []byte(b.String())
}

// Row builds a five-cell inventory row.
func Row(location, name, created, size, description string) []string {
	return []string{location, name, created, size, description}
}
