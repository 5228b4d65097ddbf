package inventoryservice

import (
	"slices"

	"github.com/starford/sowilo/internal/inventory"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/settings"
)

// arrange applies display names and order to sheets. Sheets with an explicit
// position come first by position; the rest keep source order. Overlays for
// sheets that no longer exist are ignored.
func arrange(sheets []models.SheetSnapshot, overlays []settings.Overlay) []SheetView {
	byName := make(map[string]settings.Overlay, len(overlays))
	for _, o := range overlays {
		byName[o.SheetName] = o
	}

	type ranked struct {
		view     SheetView
		explicit bool
		pos      int
		source   int
	}
	rs := make([]ranked, len(sheets))
	for i, sh := range sheets {
		size, unit := inventory.SheetTotalSize(sh)
		v := SheetView{
			SheetName:    sh.SheetName,
			DisplayName:  sh.SheetName,
			Records:      len(sh.Records),
			Size:         size,
			SizeUnit:     unit,
			LastModified: sh.LastModified,
		}
		r := ranked{view: v, source: i}
		if o, ok := byName[sh.SheetName]; ok {
			if o.DisplayName != "" {
				r.view.DisplayName = o.DisplayName
			}
			if o.Position != nil {
				r.explicit, r.pos = true, *o.Position
			}
		}
		rs[i] = r
	}

	slices.SortStableFunc(rs, func(a, b ranked) int {
		switch {
		case a.explicit && b.explicit:
			if a.pos != b.pos {
				return a.pos - b.pos
			}
			return a.source - b.source
		case a.explicit:
			return -1
		case b.explicit:
			return 1
		default:
			return a.source - b.source
		}
	})

	out := make([]SheetView, len(rs))
	for i, r := range rs {
		r.view.Position = i
		out[i] = r.view
	}
	return out
}
