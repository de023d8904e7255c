package exporter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")

// SheetNames derives unique worksheet names: invalid characters become
// underscores, names are cut to 31 characters, and repeats get a numeric
// suffix.
func SheetNames(sheets []dataprocessing.ProcessedSheet) []string {
	names := make([]string, len(sheets))
	used := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		base := sheetNameReplacer.Replace(s.SheetName)
		if base == "" {
			base = s.TableName
		}
		base = truncate(base, maxSheetName)
		name := base
		for n := 1; used[strings.ToLower(name)]; n++ {
			suffix := "_" + strconv.Itoa(n)
			name = truncate(base, maxSheetName-len(suffix)) + suffix
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// WriteXLSX renders every processed sheet as a worksheet with a header row.
func WriteXLSX(w io.Writer, sheets []dataprocessing.ProcessedSheet) error {
	f := excelize.NewFile()
	defer f.Close()

	names := SheetNames(sheets)
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", names[i]); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(names[i]); err != nil {
			return err
		}
		if err := writeSheet(f, names[i], s); err != nil {
			return fmt.Errorf("sheet %s: %w", names[i], err)
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, name string, s dataprocessing.ProcessedSheet) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}

	header := make([]any, len(s.Headers))
	for i, h := range s.Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r, row := range s.Rows {
		cells := make([]any, len(s.Headers))
		for c, h := range s.Headers {
			cells[c] = row[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
