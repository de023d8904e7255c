// Package formula evaluates row formulas such as
// "[Nilai_Pasar] * 20% - [VD52.Total_Ekuitas]" with the spreadsheet engine.
//
// A reference is a column of the current row, or SHEET.COLUMN naming a
// column of a context row. After substitution the expression may only hold
// digits, whitespace, dots, parentheses and the operators + - * / %. The %
// operator is the spreadsheet percent suffix (20% is 0.2).
package formula

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// ErrInvalidFormula wraps every evaluation failure.
var ErrInvalidFormula = errors.New("invalid formula")

// RankingThreshold is the share of portfolio below which a ranking
// liabilities target is zero.
const RankingThreshold = 0.20

var (
	referenceRe  = regexp.MustCompile(`\[([^\]]+)\]`)
	expressionRe = regexp.MustCompile(`^[\d\s+\-*/%().]+$`)
	leadingNumRe = regexp.MustCompile(`^\s*[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)
)

// Result is the outcome of Evaluate.
type Result struct {
	Success bool    `json:"success"`
	Value   float64 `json:"value"`
	Error   string  `json:"error,omitempty"`
}

// RowError locates a failed row; RowIndex is 1-based.
type RowError struct {
	RowIndex int    `json:"rowIndex"`
	Error    string `json:"error"`
}

// RowsResult is the outcome of EvaluateRows.
type RowsResult struct {
	Rows         []dataprocessing.Row `json:"rows"`
	SuccessCount int                  `json:"successCount"`
	ErrorCount   int                  `json:"errorCount"`
	Errors       []RowError           `json:"errors"`
}

// TestResult previews a formula against one sample row.
type TestResult struct {
	Success    bool    `json:"success"`
	Result     float64 `json:"result,omitempty"`
	Expression string  `json:"expression,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Evaluator computes substituted expressions on a scratch worksheet. It is
// safe for concurrent use.
type Evaluator struct {
	mu   sync.Mutex
	file *excelize.File
	next int
}

const (
	scratchSheet = "Sheet1"
	// the scratch workbook is replaced after this many cells
	scratchCells = 4096
)

// NewEvaluator returns an evaluator with an empty scratch workbook.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

var defaultEvaluator = NewEvaluator()

// Evaluate computes formula for row. context maps sheet names to the row
// SHEET.COLUMN references read from.
func Evaluate(formula string, row dataprocessing.Row, context map[string]dataprocessing.Row) Result {
	return defaultEvaluator.Evaluate(formula, row, context)
}

// EvaluateRows applies formula to every row, writing target.
func EvaluateRows(formula string, rows []dataprocessing.Row, target string) RowsResult {
	return defaultEvaluator.EvaluateRows(formula, rows, target)
}

// Test previews formula on sample.
func Test(formula string, sample dataprocessing.Row) TestResult {
	return defaultEvaluator.Test(formula, sample)
}

// Evaluate computes formula for row.
func (e *Evaluator) Evaluate(formula string, row dataprocessing.Row, context map[string]dataprocessing.Row) Result {
	expr, err := substitute(formula, func(ref string) (any, error) {
		if sheet, col, ok := strings.Cut(ref, "."); ok {
			ctxRow, found := context[sheet]
			if !found {
				return nil, fmt.Errorf("Sheet %q atau kolom %q tidak ditemukan", sheet, firstSegment(col))
			}
			return ctxRow[firstSegment(col)], nil
		}
		return row[ref], nil
	}, "Kolom %q tidak ditemukan atau nilai null")
	if err != nil {
		return Result{Error: err.Error()}
	}
	if !expressionRe.MatchString(expr) {
		return Result{Error: "Formula tidak valid atau mengandung karakter berbahaya"}
	}
	v, err := e.calc(expr)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true, Value: v}
}

// EvaluateRows applies formula to every row and writes the value into
// target. A ranking liabilities target with a percentage column sets rows
// under RankingThreshold to 0 without evaluating. Input rows are not
// modified.
func (e *Evaluator) EvaluateRows(formula string, rows []dataprocessing.Row, target string) RowsResult {
	res := RowsResult{Rows: make([]dataprocessing.Row, len(rows)), Errors: []RowError{}}
	copy(res.Rows, rows)

	pctCol := ""
	if IsRankingTarget(target) && len(rows) > 0 {
		pctCol = percentageColumn(rows[0])
	}

	for i, r := range rows {
		if pctCol != "" {
			if p, ok := leadingFloat(r[pctCol]); ok && p < RankingThreshold {
				out := r.Clone()
				out[target] = 0.0
				res.Rows[i] = out
				res.SuccessCount++
				continue
			}
		}
		ev := e.Evaluate(formula, r, nil)
		if !ev.Success {
			res.ErrorCount++
			res.Errors = append(res.Errors, RowError{RowIndex: i + 1, Error: ev.Error})
			continue
		}
		out := r.Clone()
		out[target] = ev.Value
		res.Rows[i] = out
		res.SuccessCount++
	}
	return res
}

// Test substitutes sample values and evaluates the result.
func (e *Evaluator) Test(formula string, sample dataprocessing.Row) TestResult {
	expr, err := substitute(formula, func(ref string) (any, error) {
		return sample[ref], nil
	}, "Kolom %q tidak ada pada data sample")
	if err != nil {
		return TestResult{Error: err.Error()}
	}
	if !expressionRe.MatchString(expr) {
		return TestResult{Error: "Formula tidak valid", Expression: expr}
	}
	v, err := e.calc(expr)
	if err != nil {
		return TestResult{Error: err.Error(), Expression: expr}
	}
	return TestResult{Success: true, Result: v, Expression: expr}
}

// IsRankingTarget reports whether a target column holds ranking
// liabilities.
func IsRankingTarget(target string) bool {
	l := strings.ToLower(target)
	return strings.Contains(l, "rangking") && strings.Contains(l, "liabilities")
}

// References lists the distinct references of formula in order.
func References(formula string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range referenceRe.FindAllStringSubmatch(formula, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func substitute(formula string, resolve func(ref string) (any, error), missing string) (string, error) {
	if !referenceRe.MatchString(formula) {
		return "", fmt.Errorf("%w: Formula tidak mengandung referensi kolom", ErrInvalidFormula)
	}
	var firstErr error
	expr := referenceRe.ReplaceAllStringFunc(formula, func(match string) string {
		if firstErr != nil {
			return match
		}
		ref := match[1 : len(match)-1]
		v, err := resolve(ref)
		if err != nil {
			firstErr = err
			return match
		}
		if v == nil {
			firstErr = fmt.Errorf(missing, ref)
			return match
		}
		n, ok := leadingFloat(v)
		if !ok {
			firstErr = fmt.Errorf("Nilai pada kolom %q bukan angka: %v", ref, v)
			return match
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	})
	if firstErr != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidFormula, firstErr)
	}
	return expr, nil
}

func (e *Evaluator) calc(expr string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file == nil || e.next >= scratchCells {
		if e.file != nil {
			e.file.Close()
		}
		e.file = excelize.NewFile()
		e.next = 0
	}
	e.next++
	cell := "A" + strconv.Itoa(e.next)

	// a space is the spreadsheet intersection operator
	compact := strings.Join(strings.Fields(expr), "")
	if err := e.file.SetCellFormula(scratchSheet, cell, compact); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormula, err)
	}
	raw, err := e.file.CalcCellValue(scratchSheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormula, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: Hasil formula bukan angka yang valid", ErrInvalidFormula)
	}
	return v, nil
}

// leadingFloat reads the numeric prefix of v: "33.33%" is 33.33, "-" is
// not a number.
func leadingFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	m := leadingNumRe.FindString(dataprocessing.FormatCell(v))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	return f, err == nil
}

func percentageColumn(row dataprocessing.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		l := strings.ToLower(k)
		if (strings.Contains(l, "persentase") || strings.Contains(l, "persen")) &&
			(strings.Contains(l, "pasar") || strings.Contains(l, "modal")) {
			return k
		}
	}
	return ""
}

func firstSegment(s string) string {
	col, _, _ := strings.Cut(s, ".")
	return col
}
