package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gunturawaludins/mkbd-new/internal/formula"
	"github.com/gunturawaludins/mkbd-new/internal/infrastructure"
	"github.com/gunturawaludins/mkbd-new/internal/store"
)

// TableData is a stored table with its records.
type TableData struct {
	Table   store.TableMeta `json:"table"`
	Records []store.Record  `json:"records"`
}

// ApplyFormulaRequest evaluates Formula over a table, writing Target.
type ApplyFormulaRequest struct {
	Formula string
	Target  string
	// Save writes the computed column back into the table.
	Save bool
}

// ApplyFormulaResult reports an ApplyFormula run.
type ApplyFormulaResult struct {
	formula.RowsResult
	Saved bool `json:"saved"`
}

// TableService reads and edits persisted tables.
type TableService struct {
	store     store.TableStore
	evaluator *formula.Evaluator
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger
}

// NewTableService creates a TableService. metrics may be nil.
func NewTableService(s store.TableStore, evaluator *formula.Evaluator, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *TableService {
	if logger == nil {
		logger = slog.Default()
	}
	if evaluator == nil {
		evaluator = formula.NewEvaluator()
	}
	return &TableService{
		store:     s,
		evaluator: evaluator,
		metrics:   metrics,
		logger:    logger.With(slog.String("service", "tables")),
	}
}

// List returns every table.
func (s *TableService) List(ctx context.Context) ([]store.TableMeta, error) {
	return s.store.ListTables(ctx)
}

// Stats summarises the store.
func (s *TableService) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.Stats(ctx)
}

// Get returns a table and its records.
func (s *TableService) Get(ctx context.Context, name string) (*TableData, error) {
	meta, err := s.meta(ctx, name)
	if err != nil {
		return nil, err
	}
	records, err := s.store.TableData(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return &TableData{Table: meta, Records: records}, nil
}

// Append adds records to an existing table.
func (s *TableService) Append(ctx context.Context, name string, records []store.Record) (int, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: no records", ErrInvalidArgument)
	}
	n, err := s.store.AppendRecords(ctx, name, records)
	if err != nil {
		return 0, err
	}
	s.recordAppend(ctx, name, n)
	return n, nil
}

// Clear removes a table's records but keeps the table.
func (s *TableService) Clear(ctx context.Context, name string) error {
	if _, err := s.meta(ctx, name); err != nil {
		return err
	}
	if err := s.store.ClearTable(ctx, name); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "table cleared", slog.String("table", name))
	return nil
}

// Delete drops a table.
func (s *TableService) Delete(ctx context.Context, name string) error {
	if _, err := s.meta(ctx, name); err != nil {
		return err
	}
	if err := s.store.DeleteTable(ctx, name); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "table deleted", slog.String("table", name))
	return nil
}

// ApplyFormula evaluates req.Formula for every record of the table. With
// Save set, the records are rewritten with the computed column; rows that
// failed keep their previous value.
func (s *TableService) ApplyFormula(ctx context.Context, name string, req ApplyFormulaRequest) (*ApplyFormulaResult, error) {
	target := strings.TrimSpace(req.Target)
	if strings.TrimSpace(req.Formula) == "" || target == "" {
		return nil, fmt.Errorf("%w: formula and target are required", ErrInvalidArgument)
	}
	meta, err := s.meta(ctx, name)
	if err != nil {
		return nil, err
	}
	records, err := s.store.TableData(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	rows := s.evaluator.EvaluateRows(req.Formula, store.Rows(records), target)
	out := &ApplyFormulaResult{RowsResult: rows}
	if !req.Save || rows.SuccessCount == 0 {
		return out, nil
	}

	updated := make([]store.Record, len(records))
	for i, rec := range records {
		r := make(store.Record, len(rec)+1)
		for k, v := range rec {
			r[k] = v
		}
		if v, ok := rows.Rows[i][target]; ok {
			r[target] = v
		}
		updated[i] = r
	}

	headers := meta.Headers
	if !containsHeader(headers, target) {
		headers = append(append([]string{}, headers...), target)
	}
	if err := s.store.CreateTableIfNotExists(ctx, name, headers); err != nil {
		return nil, fmt.Errorf("update headers of %s: %w", name, err)
	}
	if err := s.store.ClearTable(ctx, name); err != nil {
		return nil, fmt.Errorf("clear %s: %w", name, err)
	}
	n, err := s.store.AppendRecords(ctx, name, updated)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", name, err)
	}
	s.recordAppend(ctx, name, n)
	s.logger.InfoContext(ctx, "formula applied",
		slog.String("table", name),
		slog.String("target", target),
		slog.Int("success", rows.SuccessCount),
		slog.Int("errors", rows.ErrorCount))
	out.Saved = true
	return out, nil
}

func (s *TableService) meta(ctx context.Context, name string) (store.TableMeta, error) {
	tables, err := s.store.ListTables(ctx)
	if err != nil {
		return store.TableMeta{}, fmt.Errorf("list tables: %w", err)
	}
	for _, t := range tables {
		if t.Name == name {
			return t, nil
		}
	}
	return store.TableMeta{}, fmt.Errorf("%w: %s", store.ErrTableNotFound, name)
}

func (s *TableService) recordAppend(ctx context.Context, name string, n int) {
	if s.metrics == nil {
		return
	}
	s.metrics.TableRecordsAppendedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("table", name)))
}

func containsHeader(headers []string, h string) bool {
	for _, x := range headers {
		if x == h {
			return true
		}
	}
	return false
}
