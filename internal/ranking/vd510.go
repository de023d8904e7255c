package ranking

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/enrichment"
)

// DefaultRankingColumn is written when a concentration table has no
// ranking column of its own.
const DefaultRankingColumn = "Nilai Rangking Liabilities"

// PortfolioCaption replaces the description of portfolio total rows.
const PortfolioCaption = "TOTAL PORTOFOLIO MILIK (Nilai Rangking Liabilities)"

var (
	// EquityDeductionRate is the share of equity deducted from each group
	// exposure.
	EquityDeductionRate = decimal.RequireFromString("0.2")
	// ConcentrationThreshold is the minimum share of the portfolio, as a
	// fraction, for an exposure to be charged.
	ConcentrationThreshold = 0.2
)

// RankingColumn resolves the liabilities ranking column: a header naming a
// value or ranking that also mentions ranking or liabilities.
var RankingColumn = dataprocessing.ColumnSpec{
	Field: "ranking_value",
	Matchers: []dataprocessing.ColumnMatcher{
		dataprocessing.MatchFunc(IsRankingHeader),
	},
}

// percentColumn resolves the share-of-portfolio column.
var percentColumn = dataprocessing.ColumnSpec{
	Field:    "portfolio_share",
	Matchers: []dataprocessing.ColumnMatcher{dataprocessing.ContainsAny{"persen", "%"}},
}

// descriptionColumn resolves where the portfolio caption goes.
var descriptionColumn = dataprocessing.ColumnSpec{
	Field:    "description",
	Matchers: []dataprocessing.ColumnMatcher{dataprocessing.ContainsAny{"uraian", "nama"}},
}

// IsRankingHeader reports whether h names the ranking column.
func IsRankingHeader(h string) bool {
	l := strings.ToLower(h)
	return (strings.Contains(l, "nilai") || strings.Contains(l, "ranking")) &&
		(strings.Contains(l, "rangking") || strings.Contains(l, "ranking") || strings.Contains(l, "liabilities"))
}

// VD510Result is the outcome of CalculateVD510.
type VD510Result struct {
	Rows          []dataprocessing.Row
	Headers       []string
	RankingColumn string
	GrandTotal    float64
	Warnings      []string
}

type groupPick struct {
	pct float64
	idx int
}

// CalculateVD510 charges every concentrated group exposure:
//
//	max(0, group value - 0.2 × equity)
//
// for rows whose share of the portfolio is at least 20%. Each group is
// charged once, on its row with the highest share; the first row wins a
// tie. Subtotal rows are left alone and portfolio total rows receive the
// grand total.
func (c *Calculator) CalculateVD510(rows []dataprocessing.Row, headers []string, equity float64) VD510Result {
	w := c.warnings("vd510")
	out := dataprocessing.CloneRows(rows)
	hdrs := append([]string(nil), headers...)

	rankingCol, ok := RankingColumn.Resolve(hdrs)
	if !ok {
		rankingCol = DefaultRankingColumn
		hdrs = append(hdrs, rankingCol)
		w.add("Kolom ranking tidak ditemukan, menggunakan %q", rankingCol)
	}
	pctCol, hasPct := percentColumn.Resolve(hdrs)
	if !hasPct {
		w.add("Kolom persentase tidak ditemukan di VD510")
	}
	if equity <= 0 {
		w.add("Total ekuitas VD52 tidak tersedia, pengurang dihitung 0")
	}

	deduction := decimal.NewFromFloat(equity).Mul(EquityDeductionRate)

	tags := make([]RowTag, len(out))
	groups := make([]float64, len(out))
	pcts := make([]float64, len(out))
	for i, r := range out {
		tags[i] = PortfolioClassifier.Classify(r, hdrs)
		groups[i] = groupValue(r)
		if hasPct {
			pcts[i] = dataprocessing.ParseNumber(r[pctCol])
		}
	}

	// highest share per group value
	picks := make(map[float64]groupPick)
	for i := range out {
		if tags[i] != TagTarget || groups[i] == 0 {
			continue
		}
		if p, seen := picks[groups[i]]; !seen || pcts[i] > p.pct {
			picks[groups[i]] = groupPick{pct: pcts[i], idx: i}
		}
	}

	sum := decimal.Zero
	var totals []int
	for i, r := range out {
		switch tags[i] {
		case TagTotal:
			totals = append(totals, i)
			continue
		case TagSubtotal:
			continue
		}

		gv := groups[i]
		value := decimal.Zero
		switch {
		case gv > 0 && picks[gv].idx != i:
			// charged on the group's selected row
		case pcts[i] < ConcentrationThreshold:
		case gv > 0:
			value = decimal.Max(decimal.Zero, decimal.NewFromFloat(gv).Sub(deduction))
		}
		r[rankingCol] = value.InexactFloat64()
		sum = sum.Add(value)
	}

	grand := sum.InexactFloat64()
	if len(totals) == 0 {
		w.add("Baris total portofolio tidak ditemukan di VD510")
	}
	descCol, hasDesc := descriptionColumn.Resolve(hdrs)
	if !hasDesc && len(hdrs) > 1 {
		descCol, hasDesc = hdrs[1], true
	}
	for _, i := range totals {
		out[i][rankingCol] = grand
		if hasDesc {
			out[i][descCol] = PortfolioCaption
		}
	}

	c.logger.Info("vd510 ranking calculated",
		"rows", len(out),
		"groups", len(picks),
		"grand_total", grand)

	return VD510Result{
		Rows:          out,
		Headers:       hdrs,
		RankingColumn: rankingCol,
		GrandTotal:    grand,
		Warnings:      w.list,
	}
}

// groupValue reads the group market value of a row: the enrichment column
// when present, otherwise the first key naming both a group and a value.
func groupValue(r dataprocessing.Row) float64 {
	if v, ok := r[enrichment.ColumnGroupValue]; ok {
		return dataprocessing.ParseNumber(v)
	}
	for _, k := range rowKeys(r, nil) {
		u := strings.ToUpper(k)
		if strings.Contains(u, "GRUP") && strings.Contains(u, "NILAI") {
			return dataprocessing.ParseNumber(r[k])
		}
	}
	return 0
}

// FormatAmount renders v with thousands separators and at most two
// decimals, e.g. 740,000.
func FormatAmount(v float64) string {
	return message.NewPrinter(language.English).Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// Summary renders the VD510 line reported by a run.
func (r VD510Result) Summary() string {
	return fmt.Sprintf("VD510 Calc Done. Result: %s", FormatAmount(r.GrandTotal))
}
