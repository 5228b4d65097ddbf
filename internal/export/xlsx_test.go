package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/starford/sowilo/internal/models"
)

func TestWriteXLSX_RoundTrip(t *testing.T) {
	sheets := []Sheet{
		{Title: "Movies", Records: []models.FileRecord{
			{Location: "/media/a", Name: "Alien", CreatedLabel: "12", SizeLabel: "4 GB"},
			{Location: "/media/b", Name: "Brazil"},
		}},
		{Title: "Music", Records: []models.FileRecord{
			{Location: "/music/x", Name: "Xtal", Description: "ambient"},
		}},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sheets); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	list := f.GetSheetList()
	if len(list) != 2 || list[0] != "Movies" || list[1] != "Music" {
		t.Fatalf("sheets = %q", list)
	}

	rows, err := f.GetRows("Movies")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Folder" || rows[1][1] != "Alien" || rows[1][3] != "4 GB" {
		t.Errorf("rows = %q", rows)
	}

	rows, _ = f.GetRows("Music")
	if len(rows) != 2 || rows[1][4] != "ambient" {
		t.Errorf("music rows = %q", rows)
	}
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, nil); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if list := f.GetSheetList(); len(list) != 1 || list[0] != "Inventory" {
		t.Errorf("sheets = %q", list)
	}
}

func TestSheetNames(t *testing.T) {
	long := strings.Repeat("x", 40)
	got := SheetNames([]Sheet{
		{Title: "a/b:c"},
		{Title: ""},
		{Title: "Movies"},
		{Title: "movies"},
		{Title: long},
		{Title: long},
		{Title: "'quoted'"},
	})
	want := []string{"a_b_c", "Sheet", "Movies", "movies (2)", strings.Repeat("x", 31), strings.Repeat("x", 27) + " (2)", "quoted"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name %d = %q, want %q", i, got[i], want[i])
		}
	}
}
