package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/enrichment"
	"github.com/gunturawaludins/mkbd-new/internal/fixtures"
	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
	"github.com/gunturawaludins/mkbd-new/internal/shared/testutil"
)

func fixtureBytes(t *testing.T) []byte {
	t.Helper()
	data, err := fixtures.WorkbookBytes()
	require.NoError(t, err)
	return data
}

// reshapeFixture applies edit to a copy of the reference workbook.
func reshapeFixture(t *testing.T, edit func(f *excelize.File) error) []byte {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(fixtureBytes(t)))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, edit(f))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type recorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *recorder) Publish(e ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestRun_ReferenceWorkbook(t *testing.T) {
	rec := &recorder{}
	p := New(nil, WithEventSink(rec))

	res := p.ExtractBytes(context.Background(), "mkbd.xlsx", fixtureBytes(t))
	require.True(t, res.Success, res.Errors)
	assert.Empty(t, res.Errors)

	want := fixtures.ExpectedRanking
	assert.Equal(t, want.Equity, res.EquityTotal)
	assert.Equal(t, want.GrandTotal, res.GrandTotal)

	names := make([]string, len(res.Sheets))
	for i, s := range res.Sheets {
		names[i] = s.TableName
	}
	assert.Equal(t, []string{"vd52", "vd510_tabel_10c", "vd59", "vd58", "ringkasan"}, names)

	vd510, ok := res.Sheet("vd510_tabel_10c")
	require.True(t, ok)
	assert.Equal(t, "VD510_TABEL_10C", vd510.SheetName)
	require.Len(t, vd510.Rows, 3)
	assert.Equal(t, want.Ranking[0], vd510.Rows[0]["NILAI_RANGKING_LIABILITIES"])
	assert.Equal(t, want.Ranking[1], vd510.Rows[1]["NILAI_RANGKING_LIABILITIES"])
	assert.Equal(t, want.GrandTotal, vd510.Rows[2]["NILAI_RANGKING_LIABILITIES"])

	vd59, ok := res.Sheet("vd59")
	require.True(t, ok)
	assert.Equal(t, want.GrandTotal, vd59.Rows[2]["Jumlah"])
	assert.Equal(t, want.WorkingCapital, vd59.Rows[6]["Jumlah"])
	assert.Equal(t, want.Adjusted, vd59.Rows[90]["Jumlah"])
	assert.Equal(t, want.Excess, vd59.Rows[92]["Jumlah"])

	vd58, ok := res.Sheet("vd58")
	require.True(t, ok)
	assert.Equal(t, want.GrandTotal, vd58.Rows[1]["Nilai"])
	assert.Equal(t, want.RequiredPE, vd58.Rows[12]["Nilai"])

	assert.Contains(t, res.Warnings, "VD510 Calc Done. Result: 740,000")
	assert.Contains(t, res.Warnings, `VD59 "VD59" berhasil di-update paksa.`)
	assert.Contains(t, res.Warnings, `VD58 "VD58" berhasil di-update (Inject Nilai Ranking Liabilities).`)

	meta := vd59.Metadata
	assert.Equal(t, "mkbd.xlsx", meta.FileName)
	assert.Len(t, meta.Checksum, 64)
	assert.Equal(t, 93, meta.OriginalRowCount)
	assert.Equal(t, 93, meta.CleanedRowCount)
	assert.Nil(t, meta.EnrichmentStats)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.events)
	runID := rec.events[0].RunID
	assert.NotEmpty(t, runID)
	for _, e := range rec.events {
		assert.Equal(t, runID, e.RunID)
	}
}

func TestRun_WithMasterDataEnriches(t *testing.T) {
	master, err := fixtures.MasterWorkbook()
	require.NoError(t, err)
	reg := masterdata.NewRegistry("", nil)
	require.True(t, reg.LoadBytes("master.xlsx", master).Success)

	res := New(reg).ExtractBytes(context.Background(), "mkbd.xlsx", fixtureBytes(t))
	require.True(t, res.Success)

	vd52, ok := res.Sheet("vd52")
	require.True(t, ok)
	require.NotNil(t, vd52.Metadata.EnrichmentStats)
	assert.Contains(t, vd52.Headers, enrichment.ColumnGroup)
}

func TestRun_NoSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res := New(nil).ExtractBytes(context.Background(), "empty.xlsx", buf.Bytes())
	assert.False(t, res.Success)
	assert.Equal(t, []string{NoSheetsMessage}, res.Errors)
	assert.Equal(t, "no sheets processed", ErrNoSheetsProcessed.Error())
	assert.Contains(t, res.Warnings, "Gagal Update: Sheet VD59 tidak ditemukan di Pass 3")
}

func TestRun_UnreadableWorkbook(t *testing.T) {
	res := New(nil).ExtractBytes(context.Background(), "broken.xlsx", []byte("nope"))
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Extraction Failed:")
	assert.Empty(t, res.Sheets)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(nil).ExtractBytes(ctx, "mkbd.xlsx", fixtureBytes(t))
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], "context canceled")
}

func TestRun_MissingEquityWarns(t *testing.T) {
	wb := &dataprocessing.Workbook{FileName: "x.xlsx", Sheets: []dataprocessing.RawSheet{{
		Name: "VD52",
		Rows: [][]any{
			{"PT"}, {nil}, {nil}, {nil},
			{"A", "B"},
			{"Uraian", "Jumlah"},
			{"Modal", 10.0},
		},
	}}}
	res := New(nil).Run(context.Background(), wb)
	assert.True(t, res.Success)
	assert.Contains(t, res.Warnings, `Baris "TOTAL EKUITAS" tidak ditemukan di sheet "VD52"`)
	assert.Equal(t, 0.0, res.EquityTotal)
}

func TestRun_FormulirSheetNames(t *testing.T) {
	data := reshapeFixture(t, func(f *excelize.File) error {
		if err := f.SetSheetName(fixtures.SheetWorkingCap, "Formulir 9"); err != nil {
			return err
		}
		return f.SetSheetName(fixtures.SheetRequirement, "Formulir 8")
	})

	res := New(nil).ExtractBytes(context.Background(), "mkbd.xlsx", data)
	require.True(t, res.Success, res.Errors)
	want := fixtures.ExpectedRanking
	assert.Equal(t, want.GrandTotal, res.GrandTotal)
	assert.NotContains(t, res.Warnings, "Gagal Update: Sheet VD59 tidak ditemukan di Pass 3")

	vd59, ok := res.Sheet("formulir_9")
	require.True(t, ok)
	assert.Equal(t, dataprocessing.KindVD59, vd59.Kind)
	assert.Equal(t, want.GrandTotal, vd59.Rows[2]["Jumlah"])
	assert.Equal(t, want.WorkingCapital, vd59.Rows[6]["Jumlah"])

	vd58, ok := res.Sheet("formulir_8")
	require.True(t, ok)
	assert.Equal(t, dataprocessing.KindVD58, vd58.Kind)
	assert.Equal(t, want.GrandTotal, vd58.Rows[1]["Nilai"])
	assert.Equal(t, want.RequiredPE, vd58.Rows[12]["Nilai"])
}

func TestRun_WithoutEquitySkipsRanking(t *testing.T) {
	data := reshapeFixture(t, func(f *excelize.File) error {
		return f.DeleteSheet(fixtures.SheetEquity)
	})

	logger, logs := testutil.NewTestLogger(t)
	res := New(nil, WithLogger(logger)).ExtractBytes(context.Background(), "mkbd.xlsx", data)
	require.True(t, res.Success, res.Errors)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "equity total missing, ranking skipped")
	testutil.AssertLogAttr(t, logs, "sheet", "VD510_TABEL_10C")
	assert.Equal(t, 0.0, res.EquityTotal)
	assert.Equal(t, 0.0, res.GrandTotal)
	assert.Contains(t, res.Warnings, `Perhitungan VD510 "VD510_TABEL_10C" dilewati: Total Ekuitas VD52 tidak tersedia`)

	vd510, ok := res.Sheet("vd510_tabel_10c")
	require.True(t, ok)
	for _, r := range vd510.Rows {
		assert.Nil(t, r["NILAI_RANGKING_LIABILITIES"])
	}

	vd59, ok := res.Sheet("vd59")
	require.True(t, ok)
	assert.Equal(t, 0.0, vd59.Rows[2]["Jumlah"])
	assert.Equal(t, 3000000.0, vd59.Rows[6]["Jumlah"])

	vd58, ok := res.Sheet("vd58")
	require.True(t, ok)
	assert.Equal(t, 0.0, vd58.Rows[1]["Nilai"])
}

func TestRun_RegionWithoutHeaderIsSheetWarning(t *testing.T) {
	wb := &dataprocessing.Workbook{FileName: "x.xlsx", Sheets: []dataprocessing.RawSheet{
		{Name: "VD510", Rows: [][]any{{"x"}, {"TABEL 10C"}}},
		{Name: "Lain", Rows: [][]any{{"PT"}, {nil}, {nil}, {nil}, {"A"}, {"Kolom"}, {"isi"}}},
	}}
	res := New(nil).Run(context.Background(), wb)
	assert.True(t, res.Success)
	require.Len(t, res.Sheets, 1)
	found := false
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, `Gagal sheet "VD510"`) {
			found = true
		}
	}
	assert.True(t, found, res.Warnings)
}

func TestRun_ConcurrentRunsAreIsolated(t *testing.T) {
	p := New(nil)
	data := fixtureBytes(t)

	var wg sync.WaitGroup
	totals := make([]float64, 4)
	for i := range totals {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			totals[i] = p.ExtractBytes(context.Background(), "mkbd.xlsx", data).GrandTotal
		}(i)
	}
	wg.Wait()
	for _, v := range totals {
		assert.Equal(t, fixtures.ExpectedRanking.GrandTotal, v)
	}
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mkbd.xlsx")
	require.NoError(t, fixtures.WriteWorkbook(path))

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	res := New(nil, WithClock(func() time.Time { return fixed })).ExtractFile(context.Background(), path)
	require.True(t, res.Success)
	assert.Equal(t, fixed, res.Sheets[0].Metadata.UploadDate)
}

func TestProcessSheet_BlanksRankingColumn(t *testing.T) {
	sheet := dataprocessing.Sheet{
		Name:     "VD510",
		Headers:  []string{"Kode", "Nilai_Ranking_Liabilities"},
		Rows:     []dataprocessing.Row{{"Kode": "A", "Nilai_Ranking_Liabilities": 5.0}},
		RowCount: 1,
	}
	ps, _ := New(nil).ProcessSheet(sheet, Source{FileName: "f.xlsx"})
	assert.Nil(t, ps.Rows[0]["Nilai_Ranking_Liabilities"])
	assert.Equal(t, 5.0, sheet.Rows[0]["Nilai_Ranking_Liabilities"])
	assert.Equal(t, "vd510", ps.TableName)
	assert.Equal(t, dataprocessing.KindVD510, ps.Kind)
}
