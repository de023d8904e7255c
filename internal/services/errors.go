package services

import "errors"

// Domain errors mapped to API problems by the transport layer.
var (
	ErrEmptyUpload     = errors.New("upload is empty")
	ErrEntryNotFound   = errors.New("issuer code not found")
	ErrInvalidFormula  = errors.New("invalid formula")
	ErrMasterLoad      = errors.New("master data load failed")
	ErrInvalidArgument = errors.New("invalid argument")
)

// FormulaError carries the evaluator's message for a rejected formula.
type FormulaError struct {
	Message string
}

func (e *FormulaError) Error() string { return e.Message }

func (e *FormulaError) Unwrap() error { return ErrInvalidFormula }
