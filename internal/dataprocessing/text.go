package dataprocessing

import (
	"sort"
	"strings"
)

// RowText joins every cell of row with single spaces, in header order
// followed by any keys outside headers in sorted order. Nil cells render
// empty.
func RowText(row Row, headers []string) string {
	parts := make([]string, 0, len(row))
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		seen[h] = struct{}{}
		if v, ok := row[h]; ok {
			parts = append(parts, FormatCell(v))
		}
	}

	var extra []string
	for k := range row {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, FormatCell(row[k]))
	}
	return strings.Join(parts, " ")
}

// UpperRowText is RowText in upper case, the form marker phrases are
// matched against.
func UpperRowText(row Row, headers []string) string {
	return strings.ToUpper(RowText(row, headers))
}

// stringCellText joins only the string-typed cells of row, lower-cased.
func stringCellText(row Row, headers []string) string {
	var parts []string
	for _, h := range headers {
		if s, ok := row[h].(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// gridRowText joins the non-nil cells of a raw grid row.
func gridRowText(row []any) string {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if c == nil {
			continue
		}
		parts = append(parts, FormatCell(c))
	}
	return strings.Join(parts, " ")
}
