package formula

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

func TestEvaluate(t *testing.T) {
	row := dataprocessing.Row{"Nilai": 500000.0, "Ekuitas": "150000", "Kosong": nil, "Teks": "abc"}
	ctx := map[string]dataprocessing.Row{"VD52": {"Total": 1000.0}}

	tests := []struct {
		name    string
		formula string
		want    float64
		errLike string
	}{
		{name: "arithmetic", formula: "[Nilai] - [Ekuitas] * 2", want: 200000},
		{name: "parentheses", formula: "([Nilai] - [Ekuitas]) / 10", want: 35000},
		{name: "repeated reference", formula: "[Nilai] + [Nilai]", want: 1000000},
		{name: "context sheet", formula: "[VD52.Total] * 3", want: 3000},
		{name: "percent suffix", formula: "[Nilai] * 20%", want: 100000},
		{name: "percent inside expression", formula: "[Ekuitas] * 10% + 1", want: 15001},
		{name: "no references", formula: "1 + 2", errLike: "tidak mengandung referensi kolom"},
		{name: "missing column", formula: "[Nope] + 1", errLike: `Kolom "Nope" tidak ditemukan atau nilai null`},
		{name: "null value", formula: "[Kosong] + 1", errLike: `Kolom "Kosong"`},
		{name: "not a number", formula: "[Teks] + 1", errLike: `bukan angka: abc`},
		{name: "unknown sheet", formula: "[VD99.Total] + 1", errLike: `Sheet "VD99" atau kolom "Total" tidak ditemukan`},
		{name: "injection", formula: "[Nilai] + SUM(1)", errLike: "karakter berbahaya"},
		{name: "division by zero", formula: "[Nilai] / 0", errLike: "invalid formula"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.formula, row, ctx)
			if tt.errLike != "" {
				assert.False(t, res.Success)
				assert.Contains(t, res.Error, tt.errLike)
				return
			}
			require.True(t, res.Success, res.Error)
			assert.InDelta(t, tt.want, res.Value, 1e-9)
		})
	}
}

// % follows spreadsheet semantics, so "[Nilai] % 7" is never 500000 mod 7.
func TestEvaluate_PercentIsNotModulo(t *testing.T) {
	row := dataprocessing.Row{"Nilai": 500000.0}
	res := Evaluate("[Nilai] % 7", row, nil)
	if res.Success {
		assert.NotEqual(t, 5.0, res.Value)
	}

	res = Evaluate("[Nilai] * 7%", row, nil)
	require.True(t, res.Success, res.Error)
	assert.InDelta(t, 35000.0, res.Value, 1e-9)
}

func TestEvaluateRows_RankingThreshold(t *testing.T) {
	rows := []dataprocessing.Row{
		{"Grup_Nilai": 500000.0, "Persentase_Nilai_Pasar": "33.33", "Nilai_Rangking_Liabilities": nil},
		{"Grup_Nilai": 300000.0, "Persentase_Nilai_Pasar": 0.1, "Nilai_Rangking_Liabilities": nil},
		{"Grup_Nilai": nil, "Persentase_Nilai_Pasar": "-", "Nilai_Rangking_Liabilities": nil},
	}
	res := EvaluateRows("[Grup_Nilai] - 30000", rows, "Nilai_Rangking_Liabilities")

	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].RowIndex)

	assert.Equal(t, 470000.0, res.Rows[0]["Nilai_Rangking_Liabilities"])
	assert.Equal(t, 0.0, res.Rows[1]["Nilai_Rangking_Liabilities"])
	assert.Nil(t, res.Rows[2]["Nilai_Rangking_Liabilities"])
	// input untouched
	assert.Nil(t, rows[0]["Nilai_Rangking_Liabilities"])
}

func TestEvaluateRows_PlainTarget(t *testing.T) {
	rows := []dataprocessing.Row{{"A": 1.0, "Persen_Modal": 0.0}, {"A": 2.0, "Persen_Modal": 0.0}}
	res := EvaluateRows("[A] * 10", rows, "Hasil")
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 20.0, res.Rows[1]["Hasil"])
	assert.Empty(t, res.Errors)
}

func TestTest(t *testing.T) {
	res := Test("[A] + [B] * 2", dataprocessing.Row{"A": 1.0, "B": "2.5"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "1 + 2.5 * 2", res.Expression)
	assert.Equal(t, 6.0, res.Result)

	res = Test("[A] + [C]", dataprocessing.Row{"A": 1.0})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `Kolom "C" tidak ada pada data sample`)

	res = Test("[A] + x", dataprocessing.Row{"A": 1.0})
	assert.Equal(t, "Formula tidak valid", res.Error)
}

func TestReferences(t *testing.T) {
	assert.Equal(t, []string{"A", "VD52.Total"}, References("[A] + [VD52.Total] - [A]"))
	assert.Empty(t, References("1 + 1"))
}

func TestIsRankingTarget(t *testing.T) {
	assert.True(t, IsRankingTarget("NILAI_RANGKING_LIABILITIES"))
	assert.False(t, IsRankingTarget("Nilai_Ranking_Liabilities"))
}

func TestEvaluator_Concurrent(t *testing.T) {
	e := NewEvaluator()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := e.Evaluate("[X] * 2", dataprocessing.Row{"X": float64(i)}, nil)
			assert.True(t, res.Success)
			assert.Equal(t, float64(2*i), res.Value)
		}(i)
	}
	wg.Wait()
}
