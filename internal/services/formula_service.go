package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/formula"
)

// FormulaService evaluates ad-hoc formulas.
type FormulaService struct {
	evaluator *formula.Evaluator
}

// NewFormulaService creates a FormulaService.
func NewFormulaService(evaluator *formula.Evaluator) *FormulaService {
	if evaluator == nil {
		evaluator = formula.NewEvaluator()
	}
	return &FormulaService{evaluator: evaluator}
}

// Evaluate computes expr for row; refs supplies the rows SHEET.COLUMN
// references read from.
func (s *FormulaService) Evaluate(ctx context.Context, expr string, row dataprocessing.Row, refs map[string]dataprocessing.Row) (formula.Result, error) {
	if strings.TrimSpace(expr) == "" {
		return formula.Result{}, fmt.Errorf("%w: formula is required", ErrInvalidArgument)
	}
	res := s.evaluator.Evaluate(expr, row, refs)
	if !res.Success {
		return res, &FormulaError{Message: res.Error}
	}
	return res, nil
}

// Test previews expr on sample. Failures are reported in the result.
func (s *FormulaService) Test(ctx context.Context, expr string, sample dataprocessing.Row) (formula.TestResult, error) {
	if strings.TrimSpace(expr) == "" {
		return formula.TestResult{}, fmt.Errorf("%w: formula is required", ErrInvalidArgument)
	}
	return s.evaluator.Test(expr, sample), nil
}
