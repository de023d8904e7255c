// Package exporter writes extraction results to disk.
//
// CSVWriter writes one file per processed sheet, optionally with a UTF-8
// BOM so spreadsheet applications detect the encoding. WriteXLSX renders a
// whole result as one workbook with a worksheet per sheet. Export picks the
// writer from a Format and lays the files out under one directory:
//
//	paths, err := exporter.Export(ctx, "out", "mkbd", exporter.FormatXLSX, res)
package exporter
