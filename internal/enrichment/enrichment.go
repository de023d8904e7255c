// Package enrichment joins extracted rows to the issuer reference dataset
// and projects per-group market value totals back onto every row.
package enrichment

import (
	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
)

// Columns appended by Process, in order.
const (
	ColumnGroup      = "GRUP_EMITEN"
	ColumnIssuerName = "NAMA_EMITEN_MASTER"
	ColumnCategory   = "KATEGORI_EMITEN"
	ColumnValueClean = "NILAI_PASAR_WAJAR_CLEAN"
	ColumnGroupValue = "GRUP_NILAI_PASAR_WAJAR"
)

// OutputColumns lists every column Process appends.
var OutputColumns = []string{ColumnGroup, ColumnIssuerName, ColumnCategory, ColumnValueClean, ColumnGroupValue}

// CodeColumn resolves the issuer-code column. The first header holding any
// alias wins.
var CodeColumn = dataprocessing.Aliases("issuer_code",
	"Kode Efek", "KODE EFEK", "Kode_Efek", "kode_efek",
	"Kode Saham", "KODE SAHAM", "Kode", "KODE", "Symbol", "Ticker",
)

// ValueColumn resolves the market-value column.
var ValueColumn = dataprocessing.Aliases("market_value",
	"Nilai Pasar Wajar", "NILAI PASAR WAJAR", "Nilai_Pasar_Wajar", "nilai_pasar_wajar",
	"Nilai Pasar", "NILAI PASAR", "Market Value", "Fair Value", "Nilai Wajar", "NPW",
)

// Lookup is the part of the reference registry enrichment reads.
type Lookup interface {
	IsLoaded() bool
	Lookup(code string) (masterdata.Entry, bool)
}

// Result is the outcome of Process.
type Result struct {
	Rows        []dataprocessing.Row
	Headers     []string
	Stats       dataprocessing.EnrichmentStats
	GroupTotals map[string]float64
}

// Enrich attaches group, issuer name and category to every row. Without
// loaded reference data or a code column the rows come back untouched and
// every row counts as unmatched.
func Enrich(rows []dataprocessing.Row, headers []string, lookup Lookup) ([]dataprocessing.Row, string, int, int) {
	if lookup == nil || !lookup.IsLoaded() {
		return rows, "", 0, len(rows)
	}
	codeCol, ok := CodeColumn.Resolve(sourceHeaders(headers))
	if !ok {
		return rows, "", 0, len(rows)
	}

	matched, unmatched := 0, 0
	out := make([]dataprocessing.Row, len(rows))
	for i, r := range rows {
		row := r.Clone()
		code := masterdata.NormalizeCode(dataprocessing.FormatCell(r[codeCol]))
		if e, hit := lookup.Lookup(code); hit && code != "" {
			matched++
			row[ColumnGroup] = e.PrimaryGroup
			row[ColumnIssuerName] = e.Name
			row[ColumnCategory] = e.Category
		} else {
			unmatched++
			row[ColumnGroup] = masterdata.NonGroup
			row[ColumnIssuerName] = ""
			row[ColumnCategory] = ""
		}
		out[i] = row
	}
	return out, codeCol, matched, unmatched
}

// Aggregate sums the market value per group and writes each row's own
// value and group total. Non-Grup rows keep their own value as the group
// total. Without a value column the rows come back untouched.
func Aggregate(rows []dataprocessing.Row, headers []string) ([]dataprocessing.Row, string, map[string]float64) {
	totals := make(map[string]float64)

	searched := append(sourceHeaders(headers), ColumnGroup, ColumnIssuerName, ColumnCategory)
	valueCol, ok := ValueColumn.Resolve(searched)
	if !ok {
		return rows, "", totals
	}

	for _, r := range rows {
		totals[groupOf(r)] += dataprocessing.ParseNumber(r[valueCol])
	}

	out := make([]dataprocessing.Row, len(rows))
	for i, r := range rows {
		row := r.Clone()
		own := dataprocessing.ParseNumber(r[valueCol])
		group := groupOf(r)

		groupValue := own
		if group != masterdata.NonGroup {
			if t := totals[group]; t != 0 {
				groupValue = t
			}
		}
		row[ColumnValueClean] = own
		row[ColumnGroupValue] = groupValue
		out[i] = row
	}
	return out, valueCol, totals
}

// Process runs Enrich then Aggregate and completes the header set. Running
// it again on its own output gives the same group totals.
func Process(rows []dataprocessing.Row, headers []string, lookup Lookup) Result {
	enriched, codeCol, matched, unmatched := Enrich(rows, headers, lookup)
	aggregated, valueCol, totals := Aggregate(enriched, headers)

	newHeaders := appendMissing(headers, OutputColumns...)
	final := make([]dataprocessing.Row, len(aggregated))
	for i, r := range aggregated {
		row, cloned := r, false
		for _, h := range newHeaders {
			if _, ok := row[h]; ok {
				continue
			}
			if !cloned {
				row, cloned = r.Clone(), true
			}
			row[h] = nil
		}
		final[i] = row
	}

	var total float64
	for _, v := range totals {
		total += v
	}

	return Result{
		Rows:    final,
		Headers: newHeaders,
		Stats: dataprocessing.EnrichmentStats{
			CodeColumn:      codeCol,
			ValueColumn:     valueCol,
			MatchedCount:    matched,
			UnmatchedCount:  unmatched,
			GroupCount:      len(totals),
			TotalGroupValue: total,
		},
		GroupTotals: totals,
	}
}

func groupOf(r dataprocessing.Row) string {
	g := dataprocessing.FormatCell(r[ColumnGroup])
	if g == "" {
		return masterdata.NonGroup
	}
	return g
}

// sourceHeaders drops columns written by a previous run so they are never
// mistaken for source columns.
func sourceHeaders(headers []string) []string {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if !isOutputColumn(h) {
			out = append(out, h)
		}
	}
	return out
}

func isOutputColumn(h string) bool {
	for _, c := range OutputColumns {
		if h == c {
			return true
		}
	}
	return false
}

func appendMissing(headers []string, extra ...string) []string {
	out := append([]string(nil), headers...)
	for _, e := range extra {
		found := false
		for _, h := range out {
			if h == e {
				found = true
				break
			}
		}
		if !found {
			out = append(out, e)
		}
	}
	return out
}
