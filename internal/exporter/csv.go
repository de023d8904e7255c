package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes CSV files below a base directory.
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a writer. Relative paths resolve against baseDir.
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{baseDir: baseDir, logger: logger.With(slog.String("component", "exporter.csv"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool
}

// WriteCSV writes data to a CSV file, creating its directory. In append mode
// neither BOM nor headers are written.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("writing csv",
		slog.String("path", fullPath),
		slog.Int("records", len(options.Records)),
		slog.Bool("append", options.Append))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(fullPath, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if err := writeCSV(file, options); err != nil {
		return "", err
	}
	return fullPath, nil
}

// WriteSheetTo streams sheet as CSV with a BOM and header row.
func WriteSheetTo(out io.Writer, sheet dataprocessing.ProcessedSheet) error {
	return writeCSV(out, WriteOptions{
		Headers:   sheet.Headers,
		Records:   sheetRecords(sheet.Headers, sheet.Rows),
		BOMPrefix: true,
	})
}

func writeCSV(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix && !options.Append {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSheet writes one processed sheet with a BOM and header row.
func (w *CSVWriter) WriteSheet(filePath string, sheet dataprocessing.ProcessedSheet) (string, error) {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   sheet.Headers,
		Records:   sheetRecords(sheet.Headers, sheet.Rows),
		BOMPrefix: true,
	})
}

// AppendSheet appends the rows of sheet to an existing file.
func (w *CSVWriter) AppendSheet(filePath string, sheet dataprocessing.ProcessedSheet) (string, error) {
	return w.WriteCSV(filePath, WriteOptions{
		Records: sheetRecords(sheet.Headers, sheet.Rows),
		Append:  true,
	})
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}
