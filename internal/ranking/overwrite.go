package ranking

import (
	"strings"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// ForceOverwriteRule rewrites every figure of a row that may still hold a
// stale copy of a recomputed value. Cells carrying a label marker are left
// alone; every other cell is rewritten when its column starts with
// KeyPrefix, it parses to a positive number, or its digits start with
// StalePrefix.
type ForceOverwriteRule struct {
	LabelMarkers []string
	KeyPrefix    string
	StalePrefix  string
}

// WorkingCapitalOverwrite is the rule applied to the VD59 net working
// capital row.
var WorkingCapitalOverwrite = ForceOverwriteRule{
	LabelMarkers: []string{"TOTAL MODAL", "BARIS 18"},
	KeyPrefix:    "YO_",
	StalePrefix:  "1442",
}

// Apply writes value into every qualifying cell of row and returns the
// rewritten columns other than official, in sorted order.
func (f ForceOverwriteRule) Apply(row dataprocessing.Row, value float64, official ...string) []string {
	var rewritten []string
	for _, k := range rowKeys(row, nil) {
		cell := row[k]
		text := strings.ToUpper(dataprocessing.FormatCell(cell))
		if f.isLabel(text) {
			continue
		}
		if !f.qualifies(k, cell, text) {
			continue
		}
		row[k] = value
		if !contains(official, k) {
			rewritten = append(rewritten, k)
		}
	}
	return rewritten
}

func (f ForceOverwriteRule) isLabel(text string) bool {
	for _, m := range f.LabelMarkers {
		if strings.Contains(text, strings.ToUpper(m)) {
			return true
		}
	}
	return false
}

func (f ForceOverwriteRule) qualifies(key string, cell any, text string) bool {
	if f.KeyPrefix != "" && strings.HasPrefix(key, f.KeyPrefix) {
		return true
	}
	if dataprocessing.ParseNumber(cell) > 0 {
		return true
	}
	return f.StalePrefix != "" && strings.HasPrefix(digitsOf(text), f.StalePrefix)
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
