package masterdata

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var referenceHeader = []any{ColumnCode, ColumnName, ColumnPrimaryGroup, ColumnSubGroup, ColumnKeyPerson, ColumnCategory}

func buildReference(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &referenceHeader))
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func sampleReference(t *testing.T) []byte {
	return buildReference(t,
		[]any{"bbca ", "Bank Central Asia", "Djarum", "Djarum Finance", "Hartono", "Perbankan"},
		[]any{"TOWR", "Sarana Menara", "Djarum", "", "Hartono", "Infrastruktur"},
		[]any{"", "No Code", "X", "", "", ""},
		[]any{"ASII", "Astra International", "Jardine", "", "", "Otomotif"},
		[]any{"MISC", "Tanpa Grup", "", "", "", "Perbankan"},
	)
}

func TestRegistry_LoadAndLookup(t *testing.T) {
	r := NewRegistry("", nil)
	assert.False(t, r.IsLoaded())

	res := r.LoadBytes("master.xlsx", sampleReference(t))
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 4, res.Count)
	assert.True(t, r.IsLoaded())

	e, ok := r.Lookup("  BbCa")
	require.True(t, ok)
	assert.Equal(t, "BBCA", e.Code)
	assert.Equal(t, "Djarum", e.PrimaryGroup)
	assert.Equal(t, "Hartono", e.KeyPerson)

	_, ok = r.Lookup("ZZZZ")
	assert.False(t, ok)

	assert.Equal(t, "Djarum", r.GroupName("towr"))
	assert.Equal(t, NonGroup, r.GroupName("MISC"))
	assert.Equal(t, NonGroup, r.GroupName("ZZZZ"))

	all := r.All()
	require.Len(t, all, 4)
	assert.Equal(t, "ASII", all[0].Code)
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry("", nil)
	r.LoadBytes("master.xlsx", sampleReference(t))

	st := r.Stats()
	assert.Equal(t, 4, st.TotalEntries)
	// Djarum, Jardine and the empty group
	assert.Equal(t, 3, st.UniqueGroups)
	assert.Equal(t, 2, st.Categories["Perbankan"])
	assert.NotNil(t, st.LoadedAt)
}

func TestRegistry_LoadReplacesWholesale(t *testing.T) {
	r := NewRegistry("", nil)
	r.LoadBytes("a.xlsx", sampleReference(t))

	res := r.LoadBytes("b.xlsx", buildReference(t, []any{"GOTO", "GoTo", "GoTo Group", "", "", "Teknologi"}))
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Count)

	_, ok := r.Lookup("BBCA")
	assert.False(t, ok, "previous generation must be gone")
	assert.Equal(t, "b.xlsx", r.Stats().Source)
}

func TestRegistry_FailedLoadKeepsGeneration(t *testing.T) {
	r := NewRegistry("", nil)
	r.LoadBytes("a.xlsx", sampleReference(t))

	res := r.LoadBytes("bad.xlsx", []byte("garbage"))
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Count)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Gagal memuat master data")

	_, ok := r.Lookup("BBCA")
	assert.True(t, ok)
}

func TestRegistry_Load_Reader(t *testing.T) {
	r := NewRegistry("", nil)
	res := r.Load("upload.xlsx", bytes.NewReader(sampleReference(t)))
	assert.True(t, res.Success)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry("", nil)
	r.LoadBytes("a.xlsx", sampleReference(t))
	r.Clear()

	assert.False(t, r.IsLoaded())
	assert.Equal(t, 0, r.Stats().TotalEntries)
	assert.Nil(t, r.Stats().LoadedAt)
}

func TestRegistry_LoadDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master-emiten.xlsx")
	require.NoError(t, os.WriteFile(path, sampleReference(t), 0o644))

	r := NewRegistry(path, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.LoadDefault(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 4, res.Count)
		}()
	}
	wg.Wait()
	assert.True(t, r.IsLoaded())
}

func TestRegistry_LoadDefaultMissing(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "missing.xlsx"), nil)
	res, err := r.LoadDefault(context.Background())
	assert.Error(t, err)
	assert.False(t, res.Success)
	assert.False(t, r.IsLoaded())
}

func TestParseEntries_NumericCodesAndLeadingBlankRows(t *testing.T) {
	grid := [][]any{
		{nil},
		{"Kode", "Nama Emiten", "Afiliasi Utama"},
		{float64(1001), "Numeric Code", "Grup A"},
		{},
	}
	entries := ParseEntries(grid)
	require.Len(t, entries, 1)
	assert.Equal(t, "Grup A", entries["1001"].PrimaryGroup)
	assert.Equal(t, "", entries["1001"].Category)
}

func TestScheduler(t *testing.T) {
	r := NewRegistry("", nil)

	_, err := NewScheduler(r, "not a spec", "", nil)
	assert.Error(t, err)

	_, err = NewScheduler(r, "0 6 * * *", "Mars/Olympus", nil)
	assert.Error(t, err)

	s, err := NewScheduler(r, "0 6 * * *", "Asia/Jakarta", nil, WithLoadTimeout(0))
	require.NoError(t, err)
	s.Start()
	assert.False(t, s.Next().IsZero())
	s.Stop(context.Background())
}

func TestScheduler_ReloadInvokesHook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.xlsx")
	require.NoError(t, os.WriteFile(path, sampleReference(t), 0o644))
	r := NewRegistry(path, nil)

	var got LoadResult
	s, err := NewScheduler(r, "@every 1h", "", nil, WithLoadHook(func(res LoadResult, err error) {
		assert.NoError(t, err)
		got = res
	}))
	require.NoError(t, err)

	s.reload()
	assert.Equal(t, 4, got.Count)
}
