// Package search filters and orders inventory records.
package search

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/sowilo/internal/models"
)

// SheetMatches holds the matching records of one sheet, in sheet order.
type SheetMatches struct {
	SheetName string              `json:"sheet_name"`
	Records   []models.FileRecord `json:"records"`
}

// Terms splits a query on whitespace into lowercase terms.
func Terms(query string) []string {
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// Filter returns, per sheet, the records in which every query term occurs in
// the name or the location (case-insensitive). Sheets without matches are
// omitted. An empty query is not a search and yields nil.
func Filter(snap *models.InventorySnapshot, query string) []SheetMatches {
	terms := Terms(query)
	if len(terms) == 0 || snap == nil {
		return nil
	}

	var out []SheetMatches
	for _, sh := range snap.Sheets {
		var hits []models.FileRecord
		for _, r := range sh.Records {
			if Matches(r, terms) {
				hits = append(hits, r)
			}
		}
		if len(hits) > 0 {
			out = append(out, SheetMatches{SheetName: sh.SheetName, Records: hits})
		}
	}
	return out
}

// Matches reports whether every term is found in r's name or location.
// Terms must already be lowercase.
func Matches(r models.FileRecord, terms []string) bool {
	name := strings.ToLower(r.Name)
	loc := strings.ToLower(r.Location)
	for _, t := range terms {
		if !strings.Contains(name, t) && !strings.Contains(loc, t) {
			return false
		}
	}
	return true
}

// Sort fields.
const (
	FieldName        = "name"
	FieldLocation    = "location"
	FieldCreated     = "created"
	FieldSize        = "size"
	FieldDescription = "description"
)

// Compare orders two records; negative means a sorts first.
type Compare func(a, b models.FileRecord) int

// ByField returns a comparator for a record field. Values that both parse as
// numbers compare numerically, everything else case-insensitively.
func ByField(field string, desc bool) (Compare, error) {
	var get func(models.FileRecord) string
	switch field {
	case FieldName:
		get = func(r models.FileRecord) string { return r.Name }
	case FieldLocation:
		get = func(r models.FileRecord) string { return r.Location }
	case FieldCreated:
		get = func(r models.FileRecord) string { return r.CreatedLabel }
	case FieldSize:
		get = func(r models.FileRecord) string { return r.SizeLabel }
	case FieldDescription:
		get = func(r models.FileRecord) string { return r.Description }
	default:
		return nil, fmt.Errorf("search: unknown sort field %q", field)
	}

	return func(a, b models.FileRecord) int {
		c := compareValues(get(a), get(b))
		if desc {
			return -c
		}
		return c
	}, nil
}

// Sort orders records in place, keeping the input order of equal records.
func Sort(records []models.FileRecord, compare Compare) {
	slices.SortStableFunc(records, compare)
}

// SortMatches applies compare inside every sheet of a filter result.
func SortMatches(matches []SheetMatches, compare Compare) {
	for i := range matches {
		Sort(matches[i].Records, compare)
	}
}

func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		return cmp.Compare(fa, fb)
	}
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}
