// Package store persists processed sheets as named tables of records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// System fields carried by every stored record.
const (
	FieldID         = "_id"
	FieldFileName   = "_fileName"
	FieldUploadDate = "_uploadDate"
)

// ErrTableNotFound is returned when appending to a table that was never
// created.
var ErrTableNotFound = errors.New("table not found")

// Record is one stored row.
type Record map[string]any

// TableMeta describes a stored table.
type TableMeta struct {
	Name        string    `json:"tableName"`
	Headers     []string  `json:"headers"`
	RecordCount int       `json:"recordCount"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Stats summarises the store.
type Stats struct {
	TotalTables  int `json:"totalTables"`
	TotalRecords int `json:"totalRecords"`
}

// TableStore is the persistence boundary for extraction results.
type TableStore interface {
	// CreateTableIfNotExists creates name or replaces its headers, keeping
	// its records and creation time.
	CreateTableIfNotExists(ctx context.Context, name string, headers []string) error
	// AppendRecords stores records under fresh IDs; any _id they carry is
	// ignored.
	AppendRecords(ctx context.Context, name string, records []Record) (int, error)
	ListTables(ctx context.Context) ([]TableMeta, error)
	// TableData returns the records of name, empty for unknown tables.
	TableData(ctx context.Context, name string) ([]Record, error)
	ClearTable(ctx context.Context, name string) error
	DeleteTable(ctx context.Context, name string) error
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Persisted reports what PersistResult stored.
type Persisted struct {
	Tables  map[string]int `json:"tables"`
	Records int            `json:"records"`
}

// PersistResult saves every processed sheet of res under its table name.
func PersistResult(ctx context.Context, s TableStore, res *dataprocessing.Result) (Persisted, error) {
	out := Persisted{Tables: make(map[string]int, len(res.Sheets))}
	for _, sheet := range res.Sheets {
		if err := s.CreateTableIfNotExists(ctx, sheet.TableName, sheet.Headers); err != nil {
			return out, fmt.Errorf("create table %s: %w", sheet.TableName, err)
		}
		n, err := s.AppendRecords(ctx, sheet.TableName, SheetRecords(sheet))
		if err != nil {
			return out, fmt.Errorf("append to %s: %w", sheet.TableName, err)
		}
		out.Tables[sheet.TableName] = n
		out.Records += n
	}
	return out, nil
}

// SheetRecords converts the rows of a processed sheet into records stamped
// with its source file and upload date.
func SheetRecords(sheet dataprocessing.ProcessedSheet) []Record {
	uploaded := sheet.Metadata.UploadDate.UTC().Format(time.RFC3339)
	records := make([]Record, len(sheet.Rows))
	for i, row := range sheet.Rows {
		r := make(Record, len(row)+2)
		for k, v := range row {
			r[k] = v
		}
		r[FieldFileName] = sheet.Metadata.FileName
		r[FieldUploadDate] = uploaded
		records[i] = r
	}
	return records
}

// Rows strips the system fields from records.
func Rows(records []Record) []dataprocessing.Row {
	rows := make([]dataprocessing.Row, len(records))
	for i, r := range records {
		row := make(dataprocessing.Row, len(r))
		for k, v := range r {
			switch k {
			case FieldID, FieldFileName, FieldUploadDate:
				continue
			}
			row[k] = v
		}
		rows[i] = row
	}
	return rows
}

func clone(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
