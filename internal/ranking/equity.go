package ranking

import (
	"sort"
	"strings"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// EquityMarker labels the equity total row of VD52.
const EquityMarker = "TOTAL EKUITAS"

// currentAssetsColumn picks the amount column of the current assets row.
var currentAssetsColumn = dataprocessing.ColumnSpec{
	Field: "current_assets_amount",
	Matchers: []dataprocessing.ColumnMatcher{
		dataprocessing.MatchFunc(func(h string) bool {
			l := strings.ToLower(h)
			return l == "jumlah" || strings.Contains(l, "_jumlah") || l == "total"
		}),
	},
}

// ExtractMaxFromMarkerRow returns the largest number in the first row whose
// text contains any marker, case-insensitively. It returns false when no
// row carries a marker.
func ExtractMaxFromMarkerRow(rows []dataprocessing.Row, headers []string, markers ...string) (float64, bool) {
	idx := findRow(rows, headers, AnyPhrase(phrases(markers)), false)
	if idx < 0 {
		return 0, false
	}
	return maxNumber(rows[idx], headers, nil), true
}

// ExtractEquity returns the VD52 equity total. The second result is false
// when the marker row is missing; a found row without a positive amount
// returns 0 and true.
func ExtractEquity(rows []dataprocessing.Row, headers []string) (float64, bool) {
	v, ok := ExtractMaxFromMarkerRow(rows, headers, EquityMarker)
	if !ok {
		return 0, false
	}
	if v < 0 {
		v = 0
	}
	return v, true
}

// ExtractCurrentAssets reads the current assets total of VD59 from its
// amount column, or returns 0.
func ExtractCurrentAssets(rows []dataprocessing.Row, headers []string) float64 {
	col, ok := currentAssetsColumn.Resolve(headers)
	if !ok {
		return 0
	}
	idx := findRow(rows, headers, AnyPhrase{
		{All: []string{"total aset lancar"}},
		{All: []string{"total aktiva lancar"}},
	}, false)
	if idx < 0 {
		return 0
	}
	return dataprocessing.ParseNumber(rows[idx][col])
}

func phrases(markers []string) []Phrase {
	out := make([]Phrase, len(markers))
	for i, m := range markers {
		out[i] = Phrase{All: []string{m}}
	}
	return out
}

// maxNumber returns the largest numeric cell in row accepted by keep, or 0.
func maxNumber(row dataprocessing.Row, headers []string, keep func(float64) bool) float64 {
	var best float64
	found := false
	for _, k := range rowKeys(row, headers) {
		v, ok := numericCell(row[k])
		if !ok || (keep != nil && !keep(v)) {
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	return best
}

// numericCell parses a cell that holds a number; empty cells and text
// without digits are not numbers.
func numericCell(v any) (float64, bool) {
	if dataprocessing.IsEmptyCell(v) {
		return 0, false
	}
	if s, ok := v.(string); ok && !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}
	return dataprocessing.ParseNumber(v), true
}

// rowKeys lists row keys in header order followed by any others sorted.
func rowKeys(row dataprocessing.Row, headers []string) []string {
	keys := make([]string, 0, len(row))
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		seen[h] = true
		if _, ok := row[h]; ok {
			keys = append(keys, h)
		}
	}
	var extra []string
	for k := range row {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
