package inventory

import (
	"strconv"
	"strings"

	"github.com/starford/sowilo/internal/models"
)

const (
	UnitGB = "GB"
	UnitTB = "TB"
)

// SizeGB returns the numeric size carried by a created label such as "12" or
// "12 GB". Anything else contributes zero.
func SizeGB(label string) float64 {
	label = strings.TrimSpace(label)
	label = strings.TrimSuffix(label, " "+UnitGB)
	v, err := strconv.ParseFloat(label, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatSize expresses a GB total in the unit used for display: totals of
// 1000 GB and above are shown in TB.
func FormatSize(gb float64) (float64, string) {
	if gb >= 1000 {
		return gb / 1000, UnitTB
	}
	return gb, UnitGB
}

// SheetTotalSize returns the display size of one sheet.
func SheetTotalSize(sh models.SheetSnapshot) (float64, string) {
	return FormatSize(sheetGB(sh))
}

func sheetGB(sh models.SheetSnapshot) float64 {
	var gb float64
	for _, r := range sh.Records {
		gb += SizeGB(r.CreatedLabel)
	}
	return gb
}
