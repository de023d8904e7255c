package exporter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// Format selects the output file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv, xlsx or json in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// cellString renders a cell for text output. Null cells are empty and
// numbers use the shortest exact form.
func cellString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	}
	return dataprocessing.FormatCell(v)
}

// sheetRecords renders rows in header order.
func sheetRecords(headers []string, rows []dataprocessing.Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		rec := make([]string, len(headers))
		for j, h := range headers {
			rec[j] = cellString(r[h])
		}
		out[i] = rec
	}
	return out
}
