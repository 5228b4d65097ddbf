package parser

import (
	"testing"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/testutil"
)

func TestExtract_TabNamesAndRecords(t *testing.T) {
	doc := testutil.PublishedHTML(nil,
		testutil.Sheet{Tab: "Movies", Rows: [][]string{
			testutil.Header,
			testutil.Row("/media/movies/a", "Alien", "12", "4 GB", "director's cut"),
			testutil.Row("/media/movies/b", "Brazil", "8", "", ""),
		}},
		testutil.Sheet{Tab: "Music", Rows: [][]string{
			testutil.Header,
			testutil.Row("/media/music/x", "Xtal", "1", "", ""),
		}},
	)

	snap, err := New(WithIDGenerator(&testutil.SeqIDs{})).Extract(doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(snap.Sheets) != 2 {
		t.Fatalf("len(sheets) = %d, want 2", len(snap.Sheets))
	}
	if snap.Sheets[0].SheetName != "Movies" || snap.Sheets[1].SheetName != "Music" {
		t.Errorf("sheet names = %q, %q", snap.Sheets[0].SheetName, snap.Sheets[1].SheetName)
	}
	recs := snap.Sheets[0].Records
	if len(recs) != 2 {
		t.Fatalf("movies records = %d, want 2", len(recs))
	}
	want := models.FileRecord{
		ID:           "id-1",
		Location:     "/media/movies/a",
		Name:         "Alien",
		CreatedLabel: "12",
		SizeLabel:    "4 GB",
		Description:  "director's cut",
	}
	if recs[0] != want {
		t.Errorf("record = %+v, want %+v", recs[0], want)
	}
	if snap.Checksum == "" {
		t.Error("expected checksum")
	}
}

func TestExtract_RecordCountMatchesValidRows(t *testing.T) {
	rows := [][]string{
		testutil.Header,
		testutil.Row("a", "one", "", "", ""),
		testutil.Row("", "no location", "", "", ""),
		testutil.Row("b", "", "", "", ""),
		testutil.Row("All files total", "x", "", "", ""),
		testutil.Row("c", "All files", "", "", ""),
		testutil.Row("Folder Name", "Name", "", "", ""),
		testutil.Row("d", "two", "", "", ""),
		{"e", "four cells", "1", "2"},
		testutil.Row("  f  ", "  three  ", " 3 ", "", ""),
	}
	snap, err := Extract(testutil.PublishedHTML(nil, testutil.Sheet{Tab: "Files", Rows: rows}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := snap.RecordCount(); got != 3 {
		t.Fatalf("record count = %d, want 3", got)
	}
	last := snap.Sheets[0].Records[2]
	if last.Location != "f" || last.Name != "three" || last.CreatedLabel != "3" {
		t.Errorf("values not trimmed: %+v", last)
	}
}

func TestExtract_HeaderSentinelNeverEmitted(t *testing.T) {
	rows := [][]string{
		testutil.Row("x", "first", "", "", ""),
		testutil.Header,
		testutil.Row("y", "second", "", "", ""),
		testutil.Header,
	}
	snap, err := Extract(testutil.PublishedHTML(nil, testutil.Sheet{Tab: "S", Rows: rows}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, r := range snap.Sheets[0].Records {
		if r.Location == "Folder Name" || r.Name == "Name" {
			t.Errorf("header row leaked: %+v", r)
		}
	}
	if snap.RecordCount() != 2 {
		t.Errorf("record count = %d, want 2", snap.RecordCount())
	}
}

func TestExtract_FourCellRowDropped(t *testing.T) {
	rows := [][]string{
		testutil.Header,
		{"/valid/location", "valid name", "1", "2"},
		testutil.Row("/kept", "kept", "", "", ""),
	}
	snap, err := Extract(testutil.PublishedHTML(nil, testutil.Sheet{Tab: "S", Rows: rows}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if snap.RecordCount() != 1 || snap.Sheets[0].Records[0].Location != "/kept" {
		t.Errorf("records = %+v", snap.Sheets[0].Records)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	doc := testutil.PublishedHTML(nil, testutil.Sheet{Tab: "S", Rows: [][]string{
		testutil.Header,
		testutil.Row("a", "1", "x", "y", "z"),
		testutil.Row("a", "1", "x", "y", "z"),
		testutil.Row("b", "2", "", "", ""),
	}})

	type tuple struct{ sheet, loc, name, created, size, desc string }
	flatten := func(s *models.InventorySnapshot) []tuple {
		var out []tuple
		for _, sh := range s.Sheets {
			for _, r := range sh.Records {
				out = append(out, tuple{sh.SheetName, r.Location, r.Name, r.CreatedLabel, r.SizeLabel, r.Description})
			}
		}
		return out
	}

	first, err := Extract(doc)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Extract(doc)
	if err != nil {
		t.Fatal(err)
	}
	a, b := flatten(first), flatten(second)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("tuple %d: %+v vs %+v", i, a[i], b[i])
		}
	}
	// Identical rows are still distinct entities.
	if first.Sheets[0].Records[0].ID == first.Sheets[0].Records[1].ID {
		t.Error("duplicate rows share an id")
	}
}

func TestExtract_FallbackNamesAndRetention(t *testing.T) {
	doc := testutil.PublishedHTML(nil,
		testutil.Sheet{Tab: "Named", Rows: [][]string{testutil.Header}},
		testutil.Sheet{Rows: [][]string{testutil.Header}},
		testutil.Sheet{Rows: [][]string{testutil.Header, testutil.Row("a", "b", "", "", "")}},
	)
	snap, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// Named empty sheet kept, anonymous empty dropped, anonymous non-empty kept.
	if len(snap.Sheets) != 2 {
		t.Fatalf("len(sheets) = %d, want 2: %+v", len(snap.Sheets), snap.Sheets)
	}
	if snap.Sheets[0].SheetName != "Named" || len(snap.Sheets[0].Records) != 0 {
		t.Errorf("sheet 0 = %+v", snap.Sheets[0])
	}
	if snap.Sheets[1].SheetName != "Sheet 3" {
		t.Errorf("sheet 1 name = %q, want Sheet 3", snap.Sheets[1].SheetName)
	}
}

func TestExtract_ContainerWithoutTableSkipped(t *testing.T) {
	doc := testutil.PublishedHTML(nil,
		testutil.Sheet{Tab: "Chart", NoTable: true},
		testutil.Sheet{Tab: "Data", Rows: [][]string{testutil.Header, testutil.Row("a", "b", "", "", "")}},
	)
	snap, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(snap.Sheets) != 1 || snap.Sheets[0].SheetName != "Data" {
		t.Errorf("sheets = %+v", snap.Sheets)
	}
}

func TestExtract_LastModifiedPriority(t *testing.T) {
	meta := map[string]string{
		"revised":         "2023-01-01T00:00:00Z",
		"og:updated_time": "2024-03-05T10:20:30Z",
	}
	doc := testutil.PublishedHTML(meta, testutil.Sheet{Tab: "A", Rows: [][]string{testutil.Header, testutil.Row("a", "b", "", "", "")}})
	snap, err := Extract(doc)
	if err != nil {
		t.Fatal(err)
	}
	lm := snap.Sheets[0].LastModified
	if lm == nil {
		t.Fatal("expected last modified")
	}
	if want := time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC); !lm.Equal(want) {
		t.Errorf("last modified = %v, want %v", lm, want)
	}
}

func TestExtract_LastModifiedUnparseable(t *testing.T) {
	meta := map[string]string{"og:updated_time": "yesterday"}
	doc := testutil.PublishedHTML(meta, testutil.Sheet{Tab: "A", Rows: [][]string{testutil.Header, testutil.Row("a", "b", "", "", "")}})
	snap, err := Extract(doc)
	if err != nil {
		t.Fatalf("bad timestamp must not fail extraction: %v", err)
	}
	if snap.Sheets[0].LastModified != nil {
		t.Errorf("last modified = %v, want nil", snap.Sheets[0].LastModified)
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind apperr.ParseErrorKind
	}{
		{"invalid utf8", []byte{0xff, 0xfe, 0xfd}, apperr.ParseEncoding},
		{"no grid", []byte("<html><body><table><tr><td>x</td></tr></table></body></html>"), apperr.ParseNoGridFound},
		{"only empty anonymous sheets", testutil.PublishedHTML(nil, testutil.Sheet{Rows: [][]string{testutil.Header}}), apperr.ParseNoData},
		{"only tableless containers", testutil.PublishedHTML(nil, testutil.Sheet{Tab: "X", NoTable: true}), apperr.ParseNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.data)
			if !apperr.IsParseKind(err, tt.kind) {
				t.Errorf("err = %v, want parse kind %s", err, tt.kind)
			}
		})
	}
}

func TestExtract_TruncatedMarkup(t *testing.T) {
	doc := testutil.PublishedHTML(nil, testutil.Sheet{Tab: "A", Rows: [][]string{
		testutil.Header,
		testutil.Row("a", "b", "", "", ""),
		testutil.Row("c", "d", "", "", ""),
	}})
	// Cut the document inside the last row's closing tags.
	cut := doc[:len(doc)-len("</td></tr></tbody></table></div></div></div></body></html>")]
	snap, err := Extract(cut)
	if err != nil {
		t.Fatalf("truncated markup should still parse: %v", err)
	}
	if snap.RecordCount() != 2 {
		t.Errorf("record count = %d, want 2", snap.RecordCount())
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		rec  models.FileRecord
		want bool
	}{
		{models.FileRecord{Name: "n", Location: "l"}, true},
		{models.FileRecord{Name: "", Location: "l"}, false},
		{models.FileRecord{Name: "Name", Location: "l"}, false},
		{models.FileRecord{Name: "n", Location: "Folder Name"}, false},
		{models.FileRecord{Name: "n", Location: "All files (12)"}, false},
		{models.FileRecord{Name: "Named", Location: "l"}, true},
	}
	for _, c := range cases {
		if got := IsValid(c.rec); got != c.want {
			t.Errorf("IsValid(%+v) = %v, want %v", c.rec, got, c.want)
		}
	}
}
