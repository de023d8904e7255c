package dataprocessing

import (
	"fmt"
	"regexp"
	"strings"
)

// SheetKind identifies the report form a sheet holds.
type SheetKind int

const (
	KindStandard SheetKind = iota
	KindVD52
	KindVD58
	KindVD59
	KindVD510
)

func (k SheetKind) String() string {
	switch k {
	case KindVD52:
		return "VD52"
	case KindVD58:
		return "VD58"
	case KindVD59:
		return "VD59"
	case KindVD510:
		return "VD510"
	default:
		return "standard"
	}
}

var (
	vd510Re = regexp.MustCompile(`(?i)vd510|vd5[\-_]?10|formulir\s*10`)
	vd59Re  = regexp.MustCompile(`(?i)vd59|vd5[\-_]?9|formulir\s*9`)
	vd58Re  = regexp.MustCompile(`(?i)vd58|vd5[\-_]?8|formulir\s*8`)
	vd52Re  = regexp.MustCompile(`(?i)vd52|vd5[\-_]?2|formulir\s*2`)
)

// Is reports whether name matches the naming convention of form k. Names
// may match more than one form; callers test in their own priority order.
func (k SheetKind) Is(name string) bool {
	switch k {
	case KindVD52:
		return vd52Re.MatchString(name)
	case KindVD58:
		return vd58Re.MatchString(name)
	case KindVD59:
		return vd59Re.MatchString(name)
	case KindVD510:
		return vd510Re.MatchString(name)
	}
	return false
}

// ClassifySheet returns the first form name matches, testing VD510, VD59,
// VD58 and VD52 in that order.
func ClassifySheet(name string) SheetKind {
	for _, k := range []SheetKind{KindVD510, KindVD59, KindVD58, KindVD52} {
		if k.Is(name) {
			return k
		}
	}
	return KindStandard
}

// Region bounds a sub-table inside a larger sheet: it starts at the row
// holding Start and ends before the first later row holding any Stop marker.
type Region struct {
	Suffix string
	Start  string
	Stop   []string
}

// Table10C is the concentration sub-table of the VD510 form.
var Table10C = Region{
	Suffix: "_TABEL_10C",
	Start:  "TABEL 10C",
	Stop:   []string{"TABEL 10D", "TABEL 10E", "APABILA DIPERLUKAN"},
}

// Locate returns the start and end rows of the region. ok is false when
// the start marker is absent; end defaults to len(grid).
func (r Region) Locate(grid [][]any) (start, end int, ok bool) {
	start, end = -1, len(grid)
	for i, row := range grid {
		text := strings.ToUpper(gridRowText(row))
		if start == -1 {
			if strings.Contains(text, strings.ToUpper(r.Start)) {
				start = i
			}
			continue
		}
		for _, m := range r.Stop {
			if strings.Contains(text, strings.ToUpper(m)) {
				return start, i, true
			}
		}
	}
	return start, end, start != -1
}

// ExtractStandard reads a grid whose header row follows the letterhead.
func ExtractStandard(name string, grid [][]any) Sheet {
	if len(grid) == 0 {
		return Sheet{Name: name, Headers: []string{}, OriginalHeaders: []string{}, Rows: []Row{}}
	}
	headerIdx := FindDataStartRow(grid, DefaultHeaderScanRows)
	if headerIdx > len(grid)-1 {
		headerIdx = len(grid) - 1
	}
	return buildSheet(name, grid[headerIdx], grid[headerIdx+1:])
}

// ExtractRegion reads the sub-table bounded by region, falling back to
// ExtractStandard when the start marker is missing. The header is the row
// right after the start marker.
func ExtractRegion(name string, grid [][]any, region Region) (Sheet, error) {
	start, end, ok := region.Locate(grid)
	if !ok {
		return ExtractStandard(name, grid), nil
	}
	headerIdx := start + 1
	if headerIdx >= len(grid) {
		return Sheet{}, fmt.Errorf("region %q in sheet %q has no header row", region.Start, name)
	}
	var data [][]any
	if headerIdx+1 < end {
		data = grid[headerIdx+1 : end]
	}
	return buildSheet(name+region.Suffix, grid[headerIdx], data), nil
}

// ExtractSheet picks the extraction strategy from the sheet name.
func ExtractSheet(raw RawSheet) (Sheet, error) {
	if KindVD510.Is(raw.Name) {
		return ExtractRegion(raw.Name, raw.Rows, Table10C)
	}
	return ExtractStandard(raw.Name, raw.Rows), nil
}

func buildSheet(name string, headerRow []any, data [][]any) Sheet {
	sanitized := SanitizeHeaders(headerRow)

	original := make([]string, len(headerRow))
	for i, h := range headerRow {
		original[i] = FormatCell(h)
	}

	rows := make([]Row, 0, len(data))
	for _, cells := range data {
		row := make(Row, len(sanitized.Headers))
		for i, h := range sanitized.Headers {
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = nil
			}
		}
		rows = append(rows, row)
	}

	return Sheet{
		Name:            name,
		Headers:         sanitized.Headers,
		OriginalHeaders: original,
		Rows:            rows,
		RowCount:        len(rows),
	}
}
