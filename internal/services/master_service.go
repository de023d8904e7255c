package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gunturawaludins/mkbd-new/internal/infrastructure"
	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
	"github.com/gunturawaludins/mkbd-new/internal/operations"
)

// MessageTypeMaster is broadcast after every master data load.
const MessageTypeMaster = "master:loaded"

// MasterService manages the issuer master data registry.
type MasterService struct {
	registry *masterdata.Registry
	notifier operations.Notifier
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewMasterService creates a MasterService. notifier and metrics may be nil.
func NewMasterService(registry *masterdata.Registry, notifier operations.Notifier, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *MasterService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MasterService{
		registry: registry,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With(slog.String("service", "master")),
	}
}

// Upload replaces the registry with an uploaded workbook.
func (s *MasterService) Upload(ctx context.Context, fileName string, data []byte) (masterdata.LoadResult, error) {
	if len(data) == 0 {
		return masterdata.LoadResult{}, ErrEmptyUpload
	}
	res := s.registry.LoadBytes(fileName, data)
	return s.loaded(ctx, "upload", res)
}

// LoadDefault reloads the configured default workbook.
func (s *MasterService) LoadDefault(ctx context.Context) (masterdata.LoadResult, error) {
	res, err := s.registry.LoadDefault(ctx)
	if err != nil && ctx.Err() != nil {
		return res, err
	}
	return s.loaded(ctx, "default", res)
}

// Loaded records a load made outside the service, such as a scheduled
// refresh.
func (s *MasterService) Loaded(ctx context.Context, res masterdata.LoadResult) {
	_, _ = s.loaded(ctx, "schedule", res)
}

func (s *MasterService) loaded(ctx context.Context, source string, res masterdata.LoadResult) (masterdata.LoadResult, error) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	if s.metrics != nil {
		s.metrics.MasterLoadsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("outcome", outcome)))
	}

	if !res.Success {
		s.logger.WarnContext(ctx, "master data load failed",
			slog.String("source", source),
			slog.Any("errors", res.Errors))
		return res, fmt.Errorf("%w: %s", ErrMasterLoad, strings.Join(res.Errors, "; "))
	}

	s.logger.InfoContext(ctx, "master data loaded", slog.String("source", source), slog.Int("count", res.Count))
	if s.notifier != nil {
		s.notifier.Broadcast(MessageTypeMaster, s.registry.Stats())
	}
	return res, nil
}

// Stats describes the loaded dataset.
func (s *MasterService) Stats(ctx context.Context) masterdata.Stats {
	return s.registry.Stats()
}

// Lookup returns the entry for code.
func (s *MasterService) Lookup(ctx context.Context, code string) (masterdata.Entry, error) {
	if !s.registry.IsLoaded() {
		return masterdata.Entry{}, masterdata.ErrNotLoaded
	}
	entry, ok := s.registry.Lookup(code)
	if !ok {
		return masterdata.Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, masterdata.NormalizeCode(code))
	}
	return entry, nil
}

// Clear empties the registry.
func (s *MasterService) Clear(ctx context.Context) {
	s.registry.Clear()
	s.logger.InfoContext(ctx, "master data cleared")
}
