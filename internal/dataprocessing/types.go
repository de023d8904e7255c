package dataprocessing

import "time"

// Row maps a sanitized header to a cell value (nil, float64 or string).
type Row map[string]any

// Clone returns a shallow copy so passes can rewrite cells without touching
// the previous snapshot.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRows copies every row of rows.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Sheet is the output of extraction, before cleaning.
type Sheet struct {
	Name            string
	Headers         []string
	OriginalHeaders []string
	Rows            []Row
	RowCount        int
}

// EnrichmentStats describes what the enrichment stage matched.
type EnrichmentStats struct {
	CodeColumn      string  `json:"kodeEfekColumn,omitempty"`
	ValueColumn     string  `json:"nilaiPasarColumn,omitempty"`
	MatchedCount    int     `json:"matchedCount"`
	UnmatchedCount  int     `json:"unmatchedCount"`
	GroupCount      int     `json:"groupCount"`
	TotalGroupValue float64 `json:"totalGroupValue"`
}

// SheetMetadata travels with every processed sheet.
type SheetMetadata struct {
	FileName         string           `json:"fileName"`
	UploadDate       time.Time        `json:"uploadDate"`
	Checksum         string           `json:"checksum,omitempty"`
	OriginalRowCount int              `json:"originalRowCount"`
	CleanedRowCount  int              `json:"cleanedRowCount"`
	EnrichmentStats  *EnrichmentStats `json:"enrichmentStats,omitempty"`
}

// ProcessedSheet is the final artifact of one sheet.
type ProcessedSheet struct {
	SheetName string        `json:"sheetName"`
	TableName string        `json:"tableName"`
	Headers   []string      `json:"headers"`
	Rows      []Row         `json:"data"`
	Metadata  SheetMetadata `json:"metadata"`

	// Kind is the report form read from the workbook's sheet name. Table
	// names are sanitized and no longer carry the form code reliably.
	Kind SheetKind `json:"-"`
}

// Result is the outcome of one workbook extraction run.
type Result struct {
	Success  bool             `json:"success"`
	Sheets   []ProcessedSheet `json:"sheets"`
	Errors   []string         `json:"errors"`
	Warnings []string         `json:"warnings"`

	EquityTotal float64 `json:"equityTotal"`
	GrandTotal  float64 `json:"grandTotalRankingLiabilities"`
}

// Sheet returns the first processed sheet whose table name equals name.
func (r *Result) Sheet(tableName string) (ProcessedSheet, bool) {
	for _, s := range r.Sheets {
		if s.TableName == tableName {
			return s, true
		}
	}
	return ProcessedSheet{}, false
}
