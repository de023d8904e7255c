package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

func TestExtractEquity(t *testing.T) {
	headers := []string{"Uraian", "Kolom_2", "Kolom_3"}
	rows := []dataprocessing.Row{
		{"Uraian": "Modal Disetor", "Kolom_2": 100.0, "Kolom_3": 900000.0},
		{"Uraian": "TOTAL EKUITAS", "Kolom_2": 12.0, "Kolom_3": 2500000.0},
	}
	v, ok := ExtractEquity(rows, headers)
	assert.True(t, ok)
	assert.Equal(t, 2500000.0, v)

	_, ok = ExtractEquity(rows[:1], headers)
	assert.False(t, ok)
}

func TestExtractMaxFromMarkerRow_FirstRowWins(t *testing.T) {
	headers := []string{"A", "B"}
	rows := []dataprocessing.Row{
		{"A": "Total Ekuitas", "B": "5,000"},
		{"A": "TOTAL EKUITAS", "B": 9000.0},
	}
	v, ok := ExtractMaxFromMarkerRow(rows, headers, "total ekuitas")
	assert.True(t, ok)
	assert.Equal(t, 5000.0, v)
}

func TestExtractCurrentAssets(t *testing.T) {
	headers := []string{"Uraian", "Jumlah"}
	rows := []dataprocessing.Row{
		{"Uraian": "Kas", "Jumlah": 1000.0},
		{"Uraian": "TOTAL ASET LANCAR", "Jumlah": 150000.0},
	}
	assert.Equal(t, 150000.0, ExtractCurrentAssets(rows, headers))
	assert.Equal(t, 0.0, ExtractCurrentAssets(rows[:1], headers))
	assert.Equal(t, 0.0, ExtractCurrentAssets(rows, []string{"Uraian", "Nilai"}))
}
