package ranking

import (
	"github.com/shopspring/decimal"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// Figures of the VD58 requirement chain.
const (
	FigureGrandTotal       = "ranking_liabilities"
	FigureLiabilities      = "total_liabilities"
	FigureSubordinated     = "subordinated_debt"
	FigureMinimumRisk      = "minimum_mkbd"
	FigureManagedFunds     = "managed_funds"
	FigureMinimumManager   = "minimum_mkbd_manager"
	FigureCombined         = "liabilities_and_ranking"
	FigureNetLiabilities   = "liabilities_net_of_subordinated"
	FigureRiskCharge       = "risk_charge"
	FigureRequiredRisk     = "required_risk"
	FigureFundsCharge      = "managed_funds_charge"
	FigureRequiredManager  = "required_manager"
	FigureRequiredPE       = "required_pe"
	vd58DefaultTargetLabel = "NILAI"
)

// VD58Chain derives the required MKBD from the ranking grand total and the
// source lines of VD58.
var VD58Chain = Chain{
	Plus(FigureCombined, FigureLiabilities, FigureGrandTotal),
	Minus(FigureNetLiabilities, FigureCombined, FigureSubordinated),
	Rate(FigureRiskCharge, FigureNetLiabilities, decimal.RequireFromString("0.0625")),
	Greater(FigureRequiredRisk, FigureMinimumRisk, FigureRiskCharge),
	Rate(FigureFundsCharge, FigureManagedFunds, decimal.RequireFromString("0.001")),
	Plus(FigureRequiredManager, FigureMinimumManager, FigureFundsCharge),
	Plus(FigureRequiredPE, FigureRequiredRisk, FigureRequiredManager),
}

// vd58Sources locate the chain inputs. A row takes the first matching
// label; a later row with the same label replaces the earlier value.
var vd58Sources = []Label{
	{FigureLiabilities, Phrase{All: []string{"TOTAL LIABILITAS"}, None: []string{"DAN RANKING"}}},
	{FigureSubordinated, Phrase{All: []string{"DIKURANGI"}, Any: []string{"SUB-ORDINASI", "SUBORDINASI"}}},
	{FigureMinimumRisk, Phrase{All: []string{"PERSYARATAN MINIMAL", "MKBD"}, None: []string{"**"}}},
	{FigureManagedFunds, Phrase{All: []string{"DANA", "DIKELOLA", "MI"}}},
	{FigureMinimumManager, Phrase{All: []string{"PERSYARATAN MINIMAL", "**"}}},
}

// vd58Targets locate the rows that receive chain outputs; first match wins.
var vd58Targets = []Label{
	{FigureGrandTotal, Phrase{All: []string{"RANKING LIABILITIES", "TOTAL"}, None: []string{"DAN"}}},
	{FigureCombined, Phrase{All: []string{"TOTAL LIABILITAS DAN RANKING"}, None: []string{"TANPA UTANG"}}},
	{FigureNetLiabilities, Phrase{All: []string{"TOTAL LIABILITAS DAN RANKING", "TANPA UTANG SUBORDINASI"}}},
	{FigureRiskCharge, Phrase{All: []string{"BARIS 16"}, Any: []string{"6,25%", "6.25%"}}},
	{FigureRequiredRisk, Phrase{All: []string{"DIPERSYARATKAN", "LEBIH TINGGI"}, None: []string{"DITAMBAH"}}},
	{FigureFundsCharge, Phrase{All: []string{"BARIS 23"}, Any: []string{"0,1%", "0.1%"}}},
	{FigureRequiredManager, Phrase{All: []string{"DIPERSYARATKAN", "DITAMBAH"}}},
	{FigureRequiredPE, Phrase{All: []string{"DIWAJIBKAN", "PE", "IZIN"}}},
}

// vd58TargetColumn picks the amount column.
var vd58TargetColumn = dataprocessing.ColumnSpec{
	Field: "vd58_amount",
	Matchers: []dataprocessing.ColumnMatcher{
		dataprocessing.Exact(vd58DefaultTargetLabel),
		dataprocessing.Contains("NILAI"),
		dataprocessing.Exact("JUMLAH"),
		dataprocessing.Contains("JUMLAH"),
	},
}

// UpdateResult is the outcome of a VD58 or VD59 update.
type UpdateResult struct {
	Rows     []dataprocessing.Row
	Updated  bool
	Column   string
	Values   map[string]float64
	Warnings []string
}

// UpdateVD58 recomputes the VD58 requirement chain with the ranking grand
// total and writes every derived figure into its row. Without an amount
// column the rows come back unchanged.
func (c *Calculator) UpdateVD58(rows []dataprocessing.Row, headers []string, grandTotal float64) UpdateResult {
	w := c.warnings("vd58")
	out := dataprocessing.CloneRows(rows)

	col, ok := vd58TargetColumn.Resolve(headers)
	if !ok {
		w.add("Kolom nilai tidak ditemukan di VD58")
		return UpdateResult{Rows: out, Warnings: w.list}
	}

	v := Values{
		FigureGrandTotal:     decimal.NewFromFloat(grandTotal),
		FigureLiabilities:    decimal.Zero,
		FigureSubordinated:   decimal.Zero,
		FigureMinimumRisk:    decimal.Zero,
		FigureManagedFunds:   decimal.Zero,
		FigureMinimumManager: decimal.Zero,
	}
	found := make(map[string]bool)
	for _, r := range out {
		name, hit := FirstLabel(vd58Sources, dataprocessing.RowText(r, headers))
		if !hit {
			continue
		}
		v[name] = dataprocessing.ParseDecimal(r[col])
		found[name] = true
	}
	for _, l := range vd58Sources {
		if !found[l.Name] {
			w.add("Baris sumber %q tidak ditemukan di VD58, dihitung 0", l.Name)
		}
	}

	if err := VD58Chain.Run(v); err != nil {
		w.add("Perhitungan VD58 gagal: %v", err)
		return UpdateResult{Rows: out, Column: col, Warnings: w.list}
	}

	written := make(map[string]bool)
	for _, r := range out {
		name, hit := FirstLabel(vd58Targets, dataprocessing.RowText(r, headers))
		if !hit {
			continue
		}
		r[col] = v.Float(name)
		written[name] = true
	}
	for _, l := range vd58Targets {
		if !written[l.Name] {
			w.add("Baris %q tidak ditemukan di VD58", l.Name)
		}
	}

	c.logger.Info("vd58 updated",
		"column", col,
		"required_risk", v.Float(FigureRequiredRisk),
		"required_manager", v.Float(FigureRequiredManager),
		"required_pe", v.Float(FigureRequiredPE))

	return UpdateResult{Rows: out, Updated: true, Column: col, Values: v.Floats(), Warnings: w.list}
}
