package dataprocessing

import (
	"fmt"
	"regexp"
	"strings"
)

// Fill-ratio thresholds for column and row pruning.
const (
	unnamedColumnMinFill = 0.20
	columnMinFill        = 0.05
	rowMinFill           = 0.10
	rowFillMinColumns    = 5

	// DefaultHeaderScanRows bounds the letterhead scan of FindDataStartRow.
	DefaultHeaderScanRows = 15
	// DefaultDataStartRow is used when no column-indicator row is found.
	DefaultDataStartRow = 6
)

// JunkKeywords mark footer and note rows. Matching is case-insensitive
// against the string cells of a row.
var JunkKeywords = []string{
	"apabila diperlukan",
	"baris baru dapat ditambahkan",
	"catatan:",
	"note:",
	"*)",
	"**)",
	"***)",
	"****)",
	"*****)",
	"peringatan:",
	"keterangan:",
	"halaman",
	"page",
	"dicetak pada",
	"printed on",
}

// HeaderKeywords identify letterhead rows.
var HeaderKeywords = []string{
	"perusahaan efek",
	"tanggal",
	"direktur",
	"formulir",
}

var (
	singleLetterRe = regexp.MustCompile(`^[A-Za-z]$`)
	singleDigitRe  = regexp.MustCompile(`^[0-9]$`)
)

// CleanResult is the outcome of Clean.
type CleanResult struct {
	Rows           []Row
	Headers        []string
	RemovedRows    int
	RemovedColumns []string
	Warnings       []string
}

// Clean drops sparse columns, then empty, sparse and footer rows. Column
// fill is measured on the input rows; the surviving rows are projected onto
// the surviving headers.
func Clean(rows []Row, headers []string) CleanResult {
	res := CleanResult{}
	kept := make([]string, 0, len(headers))

	for _, h := range headers {
		filled := 0
		for _, r := range rows {
			if !IsEmptyCell(r[h]) {
				filled++
			}
		}
		var ratio float64
		if len(rows) > 0 {
			ratio = float64(filled) / float64(len(rows))
		}
		unnamed := strings.HasPrefix(h, "Unnamed_")
		if (unnamed && ratio < unnamedColumnMinFill) || ratio < columnMinFill {
			res.RemovedColumns = append(res.RemovedColumns, h)
			continue
		}
		kept = append(kept, h)
	}
	res.Headers = kept

rows:
	for i, r := range rows {
		nonEmpty := 0
		for _, v := range r {
			if !IsEmptyCell(v) {
				nonEmpty++
			}
		}
		if nonEmpty == 0 {
			res.RemovedRows++
			continue
		}
		if len(kept) > rowFillMinColumns && float64(nonEmpty)/float64(len(kept)) < rowMinFill {
			res.RemovedRows++
			continue
		}

		text := stringCellText(r, headers)
		for _, kw := range JunkKeywords {
			if strings.Contains(text, kw) {
				res.RemovedRows++
				res.Warnings = append(res.Warnings, fmt.Sprintf("Baris %d dihapus (mengandung: %q)", i+1, kw))
				continue rows
			}
		}

		out := make(Row, len(kept))
		for _, h := range kept {
			out[h] = r[h]
		}
		res.Rows = append(res.Rows, out)
	}

	if res.Rows == nil {
		res.Rows = []Row{}
	}
	return res
}

// IsHeaderRow reports whether a raw row looks like letterhead text.
func IsHeaderRow(row []any) bool {
	var parts []string
	for _, c := range row {
		if s, ok := c.(string); ok {
			parts = append(parts, s)
		}
	}
	text := strings.ToLower(strings.Join(parts, " "))
	for _, kw := range HeaderKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// FindDataStartRow locates the header row of a report grid. Forms number
// their columns with a row of single letters or digits below the letterhead;
// the header is the row after it. Only rows past index 3 qualify.
func FindDataStartRow(grid [][]any, maxScan int) int {
	if maxScan <= 0 {
		maxScan = DefaultHeaderScanRows
	}
	for i := 0; i < len(grid) && i < maxScan; i++ {
		if i <= 3 {
			continue
		}
		row := grid[i]
		for c := 0; c < len(row) && c < 5; c++ {
			cell := strings.TrimSpace(FormatCell(row[c]))
			if singleLetterRe.MatchString(cell) || singleDigitRe.MatchString(cell) {
				return i + 1
			}
		}
	}
	return DefaultDataStartRow
}
