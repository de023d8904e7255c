package dataprocessing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/blake2b"
)

// ErrWorkbookUnreadable reports a file that is not a readable workbook.
var ErrWorkbookUnreadable = errors.New("workbook unreadable")

// Workbook formats.
const (
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
)

// ole2Magic opens every BIFF (.xls) compound document.
var ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var plainNumberRe = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?$`)

// RawSheet is one sheet as an ordered grid of typed cells.
type RawSheet struct {
	Name string
	Rows [][]any
}

// Workbook holds every sheet of a file in workbook order.
type Workbook struct {
	FileName string
	Format   string
	Checksum string
	Sheets   []RawSheet
}

// SheetNames lists the sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ReadWorkbook loads a workbook from disk.
func ReadWorkbook(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ReadWorkbookBytes(filepath.Base(path), data)
}

// ReadWorkbookBytes parses an uploaded workbook. Legacy .xls files are
// detected by extension or by their compound-document signature.
func ReadWorkbookBytes(name string, data []byte) (*Workbook, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrWorkbookUnreadable, name)
	}

	wb := &Workbook{FileName: name, Checksum: Checksum(data)}

	var err error
	if isLegacyXLS(name, data) {
		wb.Format = FormatXLS
		wb.Sheets, err = readXLS(data)
	} else {
		wb.Format = FormatXLSX
		wb.Sheets, err = readXLSX(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWorkbookUnreadable, name, err)
	}
	return wb, nil
}

func isLegacyXLS(name string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		return true
	}
	return bytes.HasPrefix(data, ole2Magic)
}

func readXLSX(data []byte) ([]RawSheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheets []RawSheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}

		grid := make([][]any, len(rows))
		for r, cols := range rows {
			cells := make([]any, len(cols))
			for c, v := range cols {
				cells[c] = typedXLSXCell(f, name, r, c, v)
			}
			grid[r] = cells
		}
		sheets = append(sheets, RawSheet{Name: name, Rows: grid})
	}
	return sheets, nil
}

func typedXLSXCell(f *excelize.File, sheet string, r, c int, v string) any {
	if v == "" {
		return nil
	}
	ref, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return v
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return v
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		s := strings.TrimSpace(v)
		if !plainNumberRe.MatchString(s) {
			return v
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	return v
}

func readXLS(data []byte) (sheets []RawSheet, err error) {
	// the BIFF decoder panics on malformed records
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("decode xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		grid := make([][]any, 0, int(ws.MaxRow)+1)
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				grid = append(grid, []any{})
				continue
			}
			cells := make([]any, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, typedXLSCell(row.Col(c)))
			}
			grid = append(grid, cells)
		}
		sheets = append(sheets, RawSheet{Name: ws.Name, Rows: trimTrailingEmptyRows(grid)})
	}
	return sheets, nil
}

// typedXLSCell recovers numbers from the BIFF reader, which yields text for
// every cell. Zero-padded codes such as "001" stay text.
func typedXLSCell(v string) any {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	if !plainNumberRe.MatchString(s) {
		return v
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return v
	}
	digits := strings.TrimPrefix(s, "-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return v
	}
	return n
}

func trimTrailingEmptyRows(grid [][]any) [][]any {
	end := len(grid)
	for end > 0 {
		empty := true
		for _, c := range grid[end-1] {
			if c != nil {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		end--
	}
	return grid[:end]
}
