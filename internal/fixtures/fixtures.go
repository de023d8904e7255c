// Package fixtures builds a reference MKBD workbook with known ranking
// figures. Tests, the CLI fixture command and manual checks share it.
package fixtures

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Expected lists the figures a correct run derives from the workbook.
type Expected struct {
	Equity         float64
	Ranking        []float64
	GrandTotal     float64
	WorkingCapital float64
	RiskDeductions float64
	Adjusted       float64
	Excess         float64
	RequiredPE     float64
}

// ExpectedRanking holds the figures of BuildWorkbook.
var ExpectedRanking = Expected{
	Equity:         150000,
	Ranking:        []float64{470000, 270000},
	GrandTotal:     740000,
	WorkingCapital: 2260000,
	RiskDeductions: 170000,
	Adjusted:       2590000,
	Excess:         2340000,
	RequiredPE:     312500,
}

// Sheet names of the reference workbook, in order.
const (
	SheetEquity        = "VD52"
	SheetConcentration = "VD510"
	SheetWorkingCap    = "VD59"
	SheetRequirement   = "VD58"
	SheetSummary       = "Ringkasan"
)

func letterhead(form string, columns ...any) [][]any {
	return [][]any{
		{"PT CONTOH SEKURITAS INDONESIA"},
		{"Formulir " + form},
		{"Posisi 31 Desember 2025"},
		{nil},
		columns,
	}
}

func equitySheet() [][]any {
	g := letterhead("VD52", "A", "B")
	return append(g,
		[]any{"Uraian", "Jumlah"},
		[]any{"Modal disetor", 100000},
		[]any{"Saldo laba", 50000},
		[]any{"TOTAL EKUITAS", 150000},
	)
}

func concentrationSheet() [][]any {
	return [][]any{
		{"PT CONTOH SEKURITAS INDONESIA"},
		{"Formulir VD510"},
		{"TABEL 10C KONSENTRASI PORTOFOLIO"},
		{"KODE", "NAMA_INSTRUMEN", "GRUP_NILAI_PASAR_WAJAR", "PERSENTASE_NILAI_PASAR_WAJAR", "NILAI_RANGKING_LIABILITIES"},
		{"001", "Instrumen 1", 500000, "33.33", 999},
		{"002", "Instrumen 2", 300000, "20.00", 888},
		{"PORT", "Total Portfolio", 0, "-", nil},
		{"TABEL 10D EFEK LAINNYA"},
		{"X", "Tidak ikut", 1, "1", 1},
	}
}

func workingCapitalSheet() [][]any {
	g := letterhead("VD59", "A", "B")
	g = append(g, []any{"Uraian", "Jumlah"})

	body := make([][]any, 93)
	for i := range body {
		body[i] = []any{"Pos lain-lain", nil}
	}
	body[0] = []any{"TOTAL ASET LANCAR", 5000000}
	body[1] = []any{"TOTAL LIABILITAS", 2000000}
	body[2] = []any{"TOTAL RANKING LIABILITIES", 0}
	body[3] = []any{"UTANG SUB-ORDINASI", 500000}
	body[4] = []any{"TOTAL MODAL KERJA DIKURANGI", 0}
	body[5] = []any{"TOTAL MODAL KERJA BERSIH (BARIS 15 DITAMBAH BARIS 17)", 0}
	body[6] = []any{"TOTAL MODAL KERJA BERSIH (BARIS 18)", 1442000}
	body[7] = []any{"MODAL KERJA BERSIH DISESUAIKAN", nil}
	body[29] = []any{"Risiko A", 100000}
	body[30] = []any{"Risiko B", 50000}
	body[31] = []any{"Risiko C", 20000}
	body[90] = []any{"MODAL KERJA BERSIH DISESUAIKAN", 0}
	body[91] = []any{"NILAI MKBD YANG DIWAJIBKAN", 250000}
	body[92] = []any{"LEBIH (KURANG) MKBD", 0}
	return append(g, body...)
}

func requirementSheet() [][]any {
	g := letterhead("VD58", "A", "B")
	return append(g,
		[]any{"Uraian", "Nilai"},
		[]any{"TOTAL LIABILITAS", 1000000},
		[]any{"TOTAL RANKING LIABILITIES", 0},
		[]any{"TOTAL LIABILITAS DAN RANKING LIABILITIES", 0},
		[]any{"DIKURANGI UTANG SUB-ORDINASI", 100000},
		[]any{"TOTAL LIABILITAS DAN RANKING LIABILITIES TANPA UTANG SUBORDINASI", 0},
		[]any{"6,25% DARI BARIS 16", 0},
		[]any{"PERSYARATAN MINIMAL MKBD *", 25000},
		[]any{"NILAI MKBD YANG DIPERSYARATKAN (YANG LEBIH TINGGI)", 0},
		[]any{"PERSYARATAN MINIMAL MKBD **", 200000},
		[]any{"DANA YANG DIKELOLA MI", 10000000},
		[]any{"0,1% DARI BARIS 23", 0},
		[]any{"MKBD DIPERSYARATKAN DITAMBAH", 0},
		[]any{"MKBD DIWAJIBKAN PE SESUAI IZIN", 0},
	)
}

func summarySheet() [][]any {
	return [][]any{
		{"Ringkasan"},
		{nil},
		{nil},
		{nil},
		{"A", "B"},
		{"Komponen", "Status"},
		{"VD52", "terisi"},
		{"VD510", "terisi"},
	}
}

// BuildWorkbook returns the reference workbook. The caller closes it.
func BuildWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()
	sheets := []struct {
		name string
		grid [][]any
	}{
		{SheetEquity, equitySheet()},
		{SheetConcentration, concentrationSheet()},
		{SheetWorkingCap, workingCapitalSheet()},
		{SheetRequirement, requirementSheet()},
		{SheetSummary, summarySheet()},
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeGrid(f, s.name, s.grid); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
	}
	return f, nil
}

// WorkbookBytes renders the reference workbook as .xlsx bytes.
func WorkbookBytes() ([]byte, error) {
	f, err := BuildWorkbook()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWorkbook saves the reference workbook to path.
func WriteWorkbook(path string) error {
	f, err := BuildWorkbook()
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// MasterWorkbook returns a small issuer reference workbook covering the
// instrument codes of the concentration table.
func MasterWorkbook() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	grid := [][]any{
		{"Kode", "Nama Emiten", "Afiliasi Utama", "Sub-Afiliasi", "UBO / Tokoh Kunci", "Kategori"},
		{"BBCA", "Bank Central Asia", "Djarum", "", "Hartono", "Perbankan"},
		{"TOWR", "Sarana Menara Nusantara", "Djarum", "", "Hartono", "Infrastruktur"},
		{"ASII", "Astra International", "Jardine", "", "", "Otomotif"},
	}
	if err := writeGrid(f, "Sheet1", grid); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeGrid(f *excelize.File, sheet string, grid [][]any) error {
	for i, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}
	return nil
}
