package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunturawaludins/mkbd-new/internal/config"
	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// storeContract runs against every TableStore implementation.
func storeContract(t *testing.T, s TableStore) {
	ctx := context.Background()

	_, err := s.AppendRecords(ctx, "missing", []Record{{"a": 1.0}})
	assert.ErrorIs(t, err, ErrTableNotFound)

	data, err := s.TableData(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, s.CreateTableIfNotExists(ctx, "vd52", []string{"Uraian", "Jumlah"}))
	n, err := s.AppendRecords(ctx, "vd52", []Record{
		{"Uraian": "Modal", "Jumlah": 100.0, FieldID: 99.0, FieldFileName: "a.xlsx"},
		{"Uraian": "TOTAL EKUITAS", "Jumlah": 150.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err = s.TableData(ctx, "vd52")
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, "Modal", data[0]["Uraian"])
	assert.Equal(t, "a.xlsx", data[0][FieldFileName])
	assert.NotEqual(t, 99.0, data[0][FieldID])

	// re-creating keeps the records
	require.NoError(t, s.CreateTableIfNotExists(ctx, "vd52", []string{"Uraian", "Jumlah", "Catatan"}))
	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"Uraian", "Jumlah", "Catatan"}, tables[0].Headers)
	assert.Equal(t, 2, tables[0].RecordCount)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalTables: 1, TotalRecords: 2}, st)

	require.NoError(t, s.ClearTable(ctx, "vd52"))
	require.NoError(t, s.ClearTable(ctx, "missing"))
	data, err = s.TableData(ctx, "vd52")
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, s.DeleteTable(ctx, "vd52"))
	tables, err = s.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_IDsKeepIncreasingAfterClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateTableIfNotExists(ctx, "t", nil))
	_, err := s.AppendRecords(ctx, "t", []Record{{"a": 1.0}})
	require.NoError(t, err)
	require.NoError(t, s.ClearTable(ctx, "t"))
	_, err = s.AppendRecords(ctx, "t", []Record{{"a": 2.0}})
	require.NoError(t, err)

	data, _ := s.TableData(ctx, "t")
	assert.Equal(t, int64(2), data[0][FieldID])
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateTableIfNotExists(ctx, "t", []string{"a"}))
	rec := Record{"a": 1.0}
	_, err := s.AppendRecords(ctx, "t", []Record{rec})
	require.NoError(t, err)
	rec["a"] = 5.0

	data, _ := s.TableData(ctx, "t")
	data[0]["a"] = 7.0
	again, _ := s.TableData(ctx, "t")
	assert.Equal(t, 1.0, again[0]["a"])
}

func TestPersistResult(t *testing.T) {
	uploaded := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	res := &dataprocessing.Result{Success: true, Sheets: []dataprocessing.ProcessedSheet{
		{
			TableName: "vd52",
			Headers:   []string{"Uraian", "Jumlah"},
			Rows:      []dataprocessing.Row{{"Uraian": "TOTAL EKUITAS", "Jumlah": 150000.0}},
			Metadata:  dataprocessing.SheetMetadata{FileName: "mkbd.xlsx", UploadDate: uploaded},
		},
		{
			TableName: "vd58",
			Headers:   []string{"Uraian", "Nilai"},
			Rows: []dataprocessing.Row{
				{"Uraian": "TOTAL LIABILITAS", "Nilai": 1.0},
				{"Uraian": "TOTAL RANKING LIABILITIES", "Nilai": 2.0},
			},
			Metadata: dataprocessing.SheetMetadata{FileName: "mkbd.xlsx", UploadDate: uploaded},
		},
	}}

	s := NewMemoryStore()
	p, err := PersistResult(context.Background(), s, res)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Records)
	assert.Equal(t, map[string]int{"vd52": 1, "vd58": 2}, p.Tables)

	data, _ := s.TableData(context.Background(), "vd52")
	require.Len(t, data, 1)
	assert.Equal(t, "2026-03-01T08:00:00Z", data[0][FieldUploadDate])

	rows := Rows(data)
	assert.Equal(t, dataprocessing.Row{"Uraian": "TOTAL EKUITAS", "Jumlah": 150000.0}, rows[0])
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("MKBD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MKBD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, PostgresOptions{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DeleteTables(ctx, []string{"vd52", "missing"})
	require.NoError(t, err)
	storeContract(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Driver: config.StorageMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, s.Close())

	_, err = Open(context.Background(), config.StorageConfig{Driver: "mongo"}, nil)
	assert.ErrorContains(t, err, "unknown storage driver")
}
