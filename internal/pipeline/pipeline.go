// Package pipeline runs the three-pass MKBD extraction over a workbook.
//
//	Pass 1  extract, clean and enrich every sheet; read the VD52 equity total
//	Pass 2  compute VD510 ranking liabilities from the equity total
//	Pass 3  push the ranking grand total into VD59 and VD58
//
// A Pipeline holds no per-run state: each call builds its own RunState, so
// one Pipeline may serve concurrent runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/enrichment"
	"github.com/gunturawaludins/mkbd-new/internal/infrastructure"
	"github.com/gunturawaludins/mkbd-new/internal/ranking"
)

// ErrNoSheetsProcessed is reported when a workbook yields no sheets.
var ErrNoSheetsProcessed = errors.New("no sheets processed")

// NoSheetsMessage is the result error shown to users for ErrNoSheetsProcessed.
const NoSheetsMessage = "No sheets processed"

const tracerName = "github.com/gunturawaludins/mkbd-new/internal/pipeline"

// Pipeline extracts workbooks.
type Pipeline struct {
	lookup  enrichment.Lookup
	calc    *ranking.Calculator
	sink    EventSink
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEventSink streams progress events to sink.
func WithEventSink(sink EventSink) Option {
	return func(p *Pipeline) {
		if sink != nil {
			p.sink = sink
		}
	}
}

// WithMetrics records run outcomes on m.
func WithMetrics(m *infrastructure.BusinessMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the clock used for upload dates.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns a Pipeline enriching rows through lookup; a nil lookup or one
// without loaded data skips enrichment.
func New(lookup enrichment.Lookup, opts ...Option) *Pipeline {
	p := &Pipeline{
		lookup: lookup,
		sink:   NopSink{},
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "pipeline"))
	p.calc = ranking.NewCalculator(p.logger)
	return p
}

// Source describes where processed sheets came from.
type Source struct {
	FileName   string
	Checksum   string
	UploadDate time.Time
}

// ExtractFile reads and extracts the workbook at path.
func (p *Pipeline) ExtractFile(ctx context.Context, path string) *dataprocessing.Result {
	wb, err := dataprocessing.ReadWorkbook(path)
	if err != nil {
		return p.failed(ctx, err)
	}
	return p.Run(ctx, wb)
}

// ExtractBytes parses and extracts an uploaded workbook.
func (p *Pipeline) ExtractBytes(ctx context.Context, name string, data []byte) *dataprocessing.Result {
	wb, err := dataprocessing.ReadWorkbookBytes(name, data)
	if err != nil {
		return p.failed(ctx, err)
	}
	return p.Run(ctx, wb)
}

func (p *Pipeline) failed(ctx context.Context, err error) *dataprocessing.Result {
	p.logger.ErrorContext(ctx, "extraction failed", slog.String("error", err.Error()))
	infrastructure.RecordExtraction(ctx, p.metrics, 0, false, 0, 0, 0)
	return &dataprocessing.Result{
		Success:  false,
		Sheets:   []dataprocessing.ProcessedSheet{},
		Errors:   []string{fmt.Sprintf("Extraction Failed: %v", err)},
		Warnings: []string{},
	}
}

// Run extracts every sheet of wb and applies the cross-sheet calculations.
func (p *Pipeline) Run(ctx context.Context, wb *dataprocessing.Workbook) *dataprocessing.Result {
	runID := infrastructure.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = infrastructure.WithRunID(ctx, runID)
	}
	started := p.now()
	run := newRunState(runID, wb.FileName, wb.Checksum, started)

	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("mkbd.run_id", runID),
		attribute.String("mkbd.file", wb.FileName),
		attribute.Int("mkbd.sheets", len(wb.Sheets)),
	))
	defer span.End()

	logger := p.logger.With(slog.String("run_id", runID), slog.String("file", wb.FileName))
	logger.InfoContext(ctx, "extraction started", slog.Int("sheets", len(wb.Sheets)))

	res := &dataprocessing.Result{
		Success:  true,
		Sheets:   []dataprocessing.ProcessedSheet{},
		Errors:   []string{},
		Warnings: []string{},
	}

	src := Source{FileName: wb.FileName, Checksum: wb.Checksum, UploadDate: started.UTC()}
	sheets, err := p.passExtract(ctx, run, wb, src, res)
	if err == nil {
		p.passRanking(ctx, run, sheets, res)
		p.passUpdate(ctx, run, sheets, res)
		res.Sheets = sheets
		if len(res.Sheets) == 0 {
			err = ErrNoSheetsProcessed
		}
	}

	switch {
	case errors.Is(err, ErrNoSheetsProcessed):
		res.Success = false
		res.Errors = append(res.Errors, NoSheetsMessage)
	case err != nil:
		res.Success = false
		res.Sheets = []dataprocessing.ProcessedSheet{}
		res.Errors = append(res.Errors, fmt.Sprintf("Extraction Failed: %v", err))
	}
	res.EquityTotal = run.Equity
	res.GrandTotal = run.GrandTotal

	duration := p.now().Sub(started)
	infrastructure.RecordExtraction(ctx, p.metrics, duration, res.Success, len(res.Sheets), len(res.Warnings), res.GrandTotal)

	if res.Success {
		span.SetStatus(codes.Ok, "")
		logger.InfoContext(ctx, "extraction completed",
			slog.Int("sheets", len(res.Sheets)),
			slog.Int("warnings", len(res.Warnings)),
			slog.Float64("equity", run.Equity),
			slog.Float64("grand_total", run.GrandTotal),
			slog.Duration("duration", duration))
		p.emit(run, 3, "", LevelInfo, fmt.Sprintf("Selesai: %d sheet diproses", len(res.Sheets)))
	} else {
		span.SetStatus(codes.Error, strings.Join(res.Errors, "; "))
		logger.ErrorContext(ctx, "extraction failed", slog.Any("errors", res.Errors))
		p.emit(run, 0, "", LevelError, strings.Join(res.Errors, "; "))
	}
	return res
}

// passExtract is Pass 1. Only context cancellation aborts it; a failing
// sheet becomes a warning.
func (p *Pipeline) passExtract(ctx context.Context, run *RunState, wb *dataprocessing.Workbook, src Source, res *dataprocessing.Result) ([]dataprocessing.ProcessedSheet, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.extract")
	defer span.End()

	var sheets []dataprocessing.ProcessedSheet
	for _, raw := range wb.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ps, ok, warnings, err := p.extractOne(raw, src)
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			msg := fmt.Sprintf("Gagal sheet %q: %v", raw.Name, err)
			res.Warnings = append(res.Warnings, msg)
			p.logger.WarnContext(ctx, "sheet failed", slog.String("sheet", raw.Name), slog.String("error", err.Error()))
			p.emit(run, 1, raw.Name, LevelWarn, msg)
			continue
		}
		if !ok {
			continue
		}

		if ps.Kind == dataprocessing.KindVD52 {
			equity, found := ranking.ExtractEquity(ps.Rows, ps.Headers)
			switch {
			case !found:
				msg := fmt.Sprintf("Baris %q tidak ditemukan di sheet %q", ranking.EquityMarker, raw.Name)
				res.Warnings = append(res.Warnings, msg)
				p.logger.WarnContext(ctx, msg)
			case equity > 0:
				run.Equity = equity
				run.EquityFound = true
			}
		}

		sheets = append(sheets, ps)
		p.emit(run, 1, ps.SheetName, LevelInfo, fmt.Sprintf("%d baris diekstrak", len(ps.Rows)))
	}
	span.SetAttributes(attribute.Int("mkbd.sheets_extracted", len(sheets)))
	return sheets, nil
}

// extractOne runs extraction and processing for one sheet. ok is false for
// sheets without data rows. Panics from malformed sheets are reported as
// errors.
func (p *Pipeline) extractOne(raw dataprocessing.RawSheet, src Source) (ps dataprocessing.ProcessedSheet, ok bool, warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("%v", r)
		}
	}()

	sheet, err := dataprocessing.ExtractSheet(raw)
	if err != nil {
		return ps, false, nil, err
	}
	if len(sheet.Rows) == 0 {
		return ps, false, nil, nil
	}
	ps, warnings = p.ProcessSheet(sheet, src)
	return ps, true, warnings, nil
}

// ProcessSheet cleans an extracted sheet, enriches it when reference data
// is loaded, and blanks a concentration table's ranking column.
func (p *Pipeline) ProcessSheet(sheet dataprocessing.Sheet, src Source) (dataprocessing.ProcessedSheet, []string) {
	cleaned := dataprocessing.Clean(sheet.Rows, sheet.Headers)
	warnings := append([]string(nil), cleaned.Warnings...)

	headers := cleaned.Headers
	rows := cleaned.Rows
	var stats *dataprocessing.EnrichmentStats

	if p.lookup != nil && p.lookup.IsLoaded() {
		enriched := enrichment.Process(rows, headers, p.lookup)
		rows, headers = enriched.Rows, enriched.Headers
		st := enriched.Stats
		stats = &st
	}

	kind := dataprocessing.ClassifySheet(sheet.Name)
	if kind == dataprocessing.KindVD510 {
		if col, ok := ranking.RankingColumn.Resolve(headers); ok {
			for i, r := range rows {
				row := r.Clone()
				row[col] = nil
				rows[i] = row
			}
		}
	}

	return dataprocessing.ProcessedSheet{
		SheetName: sheet.Name,
		TableName: dataprocessing.SanitizeTableName(sheet.Name),
		Headers:   headers,
		Rows:      rows,
		Kind:      kind,
		Metadata: dataprocessing.SheetMetadata{
			FileName:         src.FileName,
			UploadDate:       src.UploadDate,
			Checksum:         src.Checksum,
			OriginalRowCount: sheet.RowCount,
			CleanedRowCount:  len(cleaned.Rows),
			EnrichmentStats:  stats,
		},
	}, warnings
}

// isConcentrationTable reports whether a processed sheet is the VD510 table.
func isConcentrationTable(s dataprocessing.ProcessedSheet) bool {
	return s.Kind == dataprocessing.KindVD510 || strings.Contains(strings.ToUpper(s.SheetName), dataprocessing.Table10C.Suffix)
}

// passRanking is Pass 2.
func (p *Pipeline) passRanking(ctx context.Context, run *RunState, sheets []dataprocessing.ProcessedSheet, res *dataprocessing.Result) {
	_, span := p.tracer.Start(ctx, "pipeline.ranking")
	defer span.End()

	for i, s := range sheets {
		if !isConcentrationTable(s) {
			continue
		}
		if !run.EquityFound {
			msg := fmt.Sprintf("Perhitungan VD510 %q dilewati: Total Ekuitas VD52 tidak tersedia", s.SheetName)
			res.Warnings = append(res.Warnings, msg)
			p.logger.WarnContext(ctx, "equity total missing, ranking skipped", slog.String("sheet", s.SheetName))
			p.emit(run, 2, s.SheetName, LevelWarn, msg)
			continue
		}
		out := p.calc.CalculateVD510(s.Rows, s.Headers, run.Equity)
		sheets[i].Rows = out.Rows
		sheets[i].Headers = out.Headers
		run.GrandTotal = out.GrandTotal
		run.VD510Done = true

		res.Warnings = append(res.Warnings, out.Warnings...)
		summary := out.Summary()
		res.Warnings = append(res.Warnings, summary)
		p.emit(run, 2, s.SheetName, LevelInfo, summary)
	}
	span.SetAttributes(attribute.Float64("mkbd.grand_total", run.GrandTotal))
}

// passUpdate is Pass 3.
func (p *Pipeline) passUpdate(ctx context.Context, run *RunState, sheets []dataprocessing.ProcessedSheet, res *dataprocessing.Result) {
	_, span := p.tracer.Start(ctx, "pipeline.update")
	defer span.End()

	for i, s := range sheets {
		var (
			out ranking.UpdateResult
			msg string
		)
		switch {
		case s.Kind == dataprocessing.KindVD59:
			out = p.calc.UpdateVD59(s.Rows, s.Headers, run.GrandTotal)
			run.VD59Count++
			msg = fmt.Sprintf("VD59 %q berhasil di-update paksa.", s.SheetName)
		case s.Kind == dataprocessing.KindVD58:
			out = p.calc.UpdateVD58(s.Rows, s.Headers, run.GrandTotal)
			run.VD58Count++
			msg = fmt.Sprintf("VD58 %q berhasil di-update (Inject Nilai Ranking Liabilities).", s.SheetName)
		default:
			continue
		}
		sheets[i].Rows = out.Rows
		res.Warnings = append(res.Warnings, out.Warnings...)
		res.Warnings = append(res.Warnings, msg)
		p.emit(run, 3, s.SheetName, LevelInfo, msg)
	}

	if run.VD59Count == 0 {
		msg := "Gagal Update: Sheet VD59 tidak ditemukan di Pass 3"
		res.Warnings = append(res.Warnings, msg)
		p.logger.WarnContext(ctx, msg)
		p.emit(run, 3, "", LevelWarn, msg)
	}
}

func (p *Pipeline) emit(run *RunState, pass int, sheet, level, msg string) {
	p.sink.Publish(ProgressEvent{
		RunID:   run.ID,
		Pass:    pass,
		Sheet:   sheet,
		Message: msg,
		Level:   level,
		Time:    p.now(),
	})
}
