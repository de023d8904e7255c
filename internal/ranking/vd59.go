package ranking

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// Figures of the VD59 working capital chain.
const (
	FigureCurrentAssets  = "current_assets"
	FigureNetCurrent     = "net_current_assets"
	FigureWorkingCapital = "working_capital"
	FigureRiskDeductions = "risk_deductions"
	FigureNetWorking     = "net_working_capital"
	FigureAdjusted       = "adjusted_net_working_capital"
	FigureRequiredMKBD   = "required_mkbd"
	FigureExcessMKBD     = "excess_mkbd"
)

// Row windows of the VD59 layout.
const (
	// rows above this index hold the section header of the adjusted figure
	vd59HeaderRows = 50
	vd59RiskFirst  = 29
	vd59RiskLast   = 89
	// riskFloor excludes row numbers from the row scan
	riskFloor = 1000
)

// AssetSignature is the digit prefix of the current assets amount used to
// find the amount column when no header names it.
var AssetSignature = "1919"

// reportYears are never taken for amounts when scanning a row.
var reportYears = map[float64]bool{2024: true, 2025: true, 2026: true}

var vd59BaseChain = Chain{
	Minus(FigureNetCurrent, FigureCurrentAssets, FigureLiabilities),
	Minus(FigureWorkingCapital, FigureNetCurrent, FigureGrandTotal),
}

var vd59AdjustedChain = Chain{
	Plus(FigureNetWorking, FigureWorkingCapital, FigureSubordinated),
	Minus(FigureAdjusted, FigureNetWorking, FigureRiskDeductions),
}

var vd59ExcessChain = Chain{
	Minus(FigureExcessMKBD, FigureAdjusted, FigureRequiredMKBD),
}

var (
	vd59AmountColumn = dataprocessing.ColumnSpec{
		Field:    "vd59_amount",
		Matchers: []dataprocessing.ColumnMatcher{dataprocessing.Exact("JUMLAH"), dataprocessing.Contains("JUMLAH")},
	}
	vd59TotalColumn = dataprocessing.ColumnSpec{
		Field:    "vd59_total",
		Matchers: []dataprocessing.ColumnMatcher{dataprocessing.Exact("TOTAL"), dataprocessing.Contains("TOTAL")},
	}
)

var (
	phraseCurrentAssets = Phrase{All: []string{"TOTAL ASET LANCAR"}}
	phraseLiabilities   = Phrase{All: []string{"TOTAL LIABILITAS"}, None: []string{"RANKING"}}
	phraseNetWorking18  = Phrase{All: []string{"TOTAL MODAL KERJA BERSIH", "18"}, None: []string{"15"}}
	phraseAdjusted      = Phrase{All: []string{"MODAL KERJA BERSIH DISESUAIKAN"}}
	phraseRequired      = Phrase{All: []string{"MKBD YANG DIWAJIBKAN"}}
	phraseExcess        = AnyPhrase{{All: []string{"LEBIH (KURANG) MKBD"}}, {All: []string{"LEBIH", "KURANG"}}}
	phraseSubordinated  = Phrase{Any: []string{"UTANG SUB-ORDINASI", "UTANG SUBORDINASI"}}
	phraseRankingTotal  = Phrase{All: []string{"TOTAL RANKING LIABILITIES"}}
	phraseWorkingTotal  = AnyPhrase{
		{All: []string{"TOTAL MODAL KERJA"}, Any: []string{"DIKURANGI", "BARIS 9"}},
		{All: []string{"TOTAL MODAL KERJA", "BARIS 13"}},
	}
	phraseNetWorking17 = Phrase{All: []string{"TOTAL MODAL KERJA BERSIH", "15", "17"}}
)

type vd59Layout struct {
	amount, total    string
	netWorking       int
	adjusted, header int
	required, excess int
}

// UpdateVD59 recomputes the VD59 working capital figures with the ranking
// grand total. Without an amount column the rows come back unchanged.
func (c *Calculator) UpdateVD59(rows []dataprocessing.Row, headers []string, grandTotal float64) UpdateResult {
	w := c.warnings("vd59")
	out := dataprocessing.CloneRows(rows)

	amountCol, ok := vd59AmountColumn.Resolve(headers)
	if !ok {
		amountCol, ok = signatureColumn(out, headers)
	}
	if !ok {
		w.add("Kolom jumlah tidak ditemukan di VD59")
		return UpdateResult{Rows: out, Warnings: w.list}
	}
	totalCol, ok := vd59TotalColumn.Resolve(headers)
	if !ok {
		totalCol = amountCol
		if len(headers) > 0 {
			totalCol = headers[len(headers)-1]
		}
	}
	lay := vd59Layout{amount: amountCol, total: totalCol, netWorking: -1, adjusted: -1, header: -1, required: -1, excess: -1}

	v := Values{
		FigureGrandTotal:    decimal.NewFromFloat(grandTotal),
		FigureCurrentAssets: decimal.Zero,
		FigureLiabilities:   decimal.Zero,
		FigureSubordinated:  decimal.Zero,
	}
	if i := findRow(out, headers, phraseCurrentAssets, true); i >= 0 {
		v[FigureCurrentAssets] = dataprocessing.ParseDecimal(out[i][amountCol])
	} else {
		w.add("Baris dengan %q tidak ditemukan di VD59", "TOTAL ASET LANCAR")
	}
	if i := findRow(out, headers, phraseLiabilities, true); i >= 0 {
		v[FigureLiabilities] = dataprocessing.ParseDecimal(out[i][amountCol])
	} else {
		w.add("Baris dengan %q tidak ditemukan di VD59", "TOTAL LIABILITAS")
	}
	if err := vd59BaseChain.Run(v); err != nil {
		w.add("Perhitungan VD59 gagal: %v", err)
		return UpdateResult{Rows: out, Column: amountCol, Warnings: w.list}
	}
	base := v.Float(FigureWorkingCapital)

	locateVD59(out, headers, &lay)
	if lay.netWorking < 0 {
		w.add("Baris total modal kerja bersih (baris 18) tidak ditemukan di VD59")
	}
	if lay.adjusted < 0 {
		w.add("Baris MKBD disesuaikan tidak ditemukan di VD59")
	}

	v[FigureRiskDeductions] = riskDeductions(out, headers, lay, base)

	if i := findRow(out, headers, phraseSubordinated, false); i >= 0 {
		sub := dataprocessing.ParseDecimal(out[i][amountCol])
		if sub.IsZero() {
			sub = dataprocessing.ParseDecimal(out[i][totalCol])
		}
		v[FigureSubordinated] = sub
	}
	if v[FigureSubordinated].IsZero() {
		w.add("Baris dengan %q tidak ditemukan di VD59", "UTANG SUB-ORDINASI")
	}
	if err := vd59AdjustedChain.Run(v); err != nil {
		w.add("Perhitungan VD59 gagal: %v", err)
		return UpdateResult{Rows: out, Column: amountCol, Warnings: w.list}
	}
	adjusted := v.Float(FigureAdjusted)

	for i, r := range out {
		text := dataprocessing.RowText(r, headers)

		if phraseRankingTotal.Match(text) {
			r[amountCol] = grandTotal
		}
		if phraseWorkingTotal.Match(text) {
			r[amountCol] = base
		}
		if phraseNetWorking17.Match(text) {
			r[amountCol] = base
			if totalCol != amountCol {
				r[totalCol] = nil
			}
		}
		if i == lay.netWorking {
			r[totalCol] = base
			r[amountCol] = base
			if extra := WorkingCapitalOverwrite.Apply(r, base, amountCol, totalCol); len(extra) > 0 {
				w.add("Baris %d: kolom %s ditimpa paksa dengan modal kerja", i+1, strings.Join(extra, ", "))
			}
		}
		if i == lay.adjusted {
			r[totalCol] = adjusted
			r[amountCol] = adjusted
		}
		if i == lay.header {
			r[amountCol] = nil
			r[totalCol] = nil
		}
	}

	if lay.excess >= 0 && lay.required >= 0 {
		v[FigureRequiredMKBD] = requiredMKBD(out[lay.required], headers, lay)
		if err := vd59ExcessChain.Run(v); err == nil {
			excess := v.Float(FigureExcessMKBD)
			out[lay.excess][totalCol] = excess
			out[lay.excess][amountCol] = excess
		}
	} else {
		w.add("Baris MKBD diwajibkan atau lebih (kurang) MKBD tidak ditemukan di VD59")
	}

	c.logger.Info("vd59 updated",
		"column", amountCol,
		"working_capital", base,
		"risk_deductions", v.Float(FigureRiskDeductions),
		"adjusted", adjusted)

	return UpdateResult{Rows: out, Updated: true, Column: amountCol, Values: v.Floats(), Warnings: w.list}
}

// signatureColumn finds the amount column by the known current assets
// figure when no header names it.
func signatureColumn(rows []dataprocessing.Row, headers []string) (string, bool) {
	for _, r := range rows {
		keys := rowKeys(r, headers)
		hit := false
		for _, k := range keys {
			s := dataprocessing.FormatCell(r[k])
			if strings.Contains(s, AssetSignature[:1]+"."+AssetSignature[1:]) ||
				strings.Contains(s, AssetSignature[:1]+","+AssetSignature[1:]) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		for _, k := range keys {
			if strings.HasPrefix(digitsOf(dataprocessing.FormatCell(r[k])), AssetSignature) {
				return k, true
			}
		}
		return "", false
	}
	return "", false
}

func locateVD59(rows []dataprocessing.Row, headers []string, lay *vd59Layout) {
	for i, r := range rows {
		text := dataprocessing.RowText(r, headers)
		if phraseNetWorking18.Match(text) {
			lay.netWorking = i
		}
		if phraseAdjusted.Match(text) {
			if i < vd59HeaderRows {
				lay.header = i
			} else {
				lay.adjusted = i
			}
		}
		if phraseRequired.Match(text) {
			lay.required = i
		}
		if phraseExcess.Match(text) {
			lay.excess = i
		}
	}
	if lay.adjusted >= 0 {
		return
	}
	fallback := AnyPhrase{phraseAdjusted, {All: []string{"MKBD"}}}
	for i := len(rows) - 1; i > vd59HeaderRows; i-- {
		if fallback.Match(dataprocessing.RowText(rows[i], headers)) {
			lay.adjusted = i
			return
		}
	}
}

// riskDeductions sums the risk charge rows. Each row contributes its total
// column, else its amount column, else its largest plausible amount.
func riskDeductions(rows []dataprocessing.Row, headers []string, lay vd59Layout, base float64) decimal.Decimal {
	sum := decimal.Zero
	last := min(vd59RiskLast, len(rows)-1)
	for i := vd59RiskFirst; i <= last; i++ {
		r := rows[i]
		text := dataprocessing.RowText(r, headers)
		if strings.TrimSpace(text) == "" || phraseAdjusted.Match(text) {
			continue
		}
		val := dataprocessing.ParseNumber(r[lay.total])
		if val == 0 {
			val = dataprocessing.ParseNumber(r[lay.amount])
		}
		if val == 0 {
			val = maxNumber(r, headers, func(n float64) bool {
				return n > riskFloor && n < base && !reportYears[n]
			})
		}
		if val > 0 {
			sum = sum.Add(decimal.NewFromFloat(val))
		}
	}
	return sum
}

// requiredMKBD reads the required figure from its (already updated) row.
func requiredMKBD(r dataprocessing.Row, headers []string, lay vd59Layout) decimal.Decimal {
	if d := dataprocessing.ParseDecimal(r[lay.total]); !d.IsZero() {
		return d
	}
	if d := dataprocessing.ParseDecimal(r[lay.amount]); !d.IsZero() {
		return d
	}
	req := 0.0
	for _, k := range rowKeys(r, headers) {
		if n := dataprocessing.ParseNumber(r[k]); n > riskFloor {
			req = n
		}
	}
	return decimal.NewFromFloat(req)
}
