// Package dataprocessing turns MKBD report workbooks into clean, header-keyed
// tables. It owns the leaf stages of the extraction pipeline: workbook
// reading, numeric parsing, header and table-name sanitizing, row cleaning
// and sheet extraction.
//
// # Data Flow
//
//	Workbook bytes → ReadWorkbookBytes → RawSheet grids → ExtractSheet → Sheet → Clean → rows
//
// A grid cell is nil (empty), float64 (numeric cell) or string. Extracted
// rows are Row maps keyed by sanitized headers; every row carries every
// header of its sheet, with nil for missing cells.
//
// # Sheet Kinds
//
// Sheets are classified by name against the report-form codes:
//
//	VD52  equity statement, source of the TOTAL EKUITAS figure
//	VD510 concentration table, TABEL 10C region, ranking liabilities
//	VD59  net adjusted working capital (MKBD)
//	VD58  capital requirement form
//
// Everything else is extracted with the standard strategy and passed
// through untouched by the calculation passes.
//
// # Error Handling
//
// Numeric parsing never fails; unparsable input yields 0. Workbook reading
// wraps ErrWorkbookUnreadable so callers can report a file-level failure.
package dataprocessing
