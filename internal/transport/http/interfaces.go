package http

import (
	"context"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/formula"
	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
	"github.com/gunturawaludins/mkbd-new/internal/operations"
	"github.com/gunturawaludins/mkbd-new/internal/services"
	"github.com/gunturawaludins/mkbd-new/internal/store"
)

// ExtractionService runs workbook extractions.
type ExtractionService interface {
	Extract(ctx context.Context, req services.ExtractRequest) (*services.Extraction, error)
	List(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error)
	Get(ctx context.Context, id string) (*services.Extraction, error)
}

// MasterService manages issuer master data.
type MasterService interface {
	Upload(ctx context.Context, fileName string, data []byte) (masterdata.LoadResult, error)
	LoadDefault(ctx context.Context) (masterdata.LoadResult, error)
	Stats(ctx context.Context) masterdata.Stats
	Lookup(ctx context.Context, code string) (masterdata.Entry, error)
	Clear(ctx context.Context)
}

// TableService reads and edits persisted tables.
type TableService interface {
	List(ctx context.Context) ([]store.TableMeta, error)
	Stats(ctx context.Context) (store.Stats, error)
	Get(ctx context.Context, name string) (*services.TableData, error)
	Append(ctx context.Context, name string, records []store.Record) (int, error)
	Clear(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	ApplyFormula(ctx context.Context, name string, req services.ApplyFormulaRequest) (*services.ApplyFormulaResult, error)
}

// FormulaService evaluates formulas.
type FormulaService interface {
	Evaluate(ctx context.Context, expr string, row dataprocessing.Row, refs map[string]dataprocessing.Row) (formula.Result, error)
	Test(ctx context.Context, expr string, sample dataprocessing.Row) (formula.TestResult, error)
}

// HealthService reports health.
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
}

var (
	_ ExtractionService = (*services.ExtractionService)(nil)
	_ MasterService     = (*services.MasterService)(nil)
	_ TableService      = (*services.TableService)(nil)
	_ FormulaService    = (*services.FormulaService)(nil)
	_ HealthService     = (*services.HealthService)(nil)
)
