package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/operations"
)

// Extraction is a job with its full result when available.
type Extraction struct {
	Job    *operations.Job        `json:"job"`
	Result *dataprocessing.Result `json:"result,omitempty"`
}

// ExtractRequest is one uploaded workbook.
type ExtractRequest struct {
	FileName string
	Data     []byte
	Persist  bool
	Async    bool
}

// ExtractionService runs uploads through the operations runner.
type ExtractionService struct {
	runner *operations.Runner
	logger *slog.Logger
}

// NewExtractionService creates an ExtractionService.
func NewExtractionService(runner *operations.Runner, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{runner: runner, logger: logger.With(slog.String("service", "extraction"))}
}

// Extract runs req. Async requests return the pending job without a result.
func (s *ExtractionService) Extract(ctx context.Context, req ExtractRequest) (*Extraction, error) {
	if len(req.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	opReq := operations.Request{FileName: req.FileName, Data: req.Data, Persist: req.Persist}

	if req.Async {
		job, err := s.runner.Submit(ctx, opReq)
		if err != nil {
			return nil, fmt.Errorf("submit extraction: %w", err)
		}
		s.logger.InfoContext(ctx, "extraction queued", slog.String("job_id", job.ID), slog.String("file", job.FileName))
		return &Extraction{Job: job}, nil
	}

	job, res, err := s.runner.Run(ctx, opReq)
	if err != nil {
		return nil, fmt.Errorf("run extraction: %w", err)
	}
	return &Extraction{Job: job, Result: res}, nil
}

// List returns recent jobs.
func (s *ExtractionService) List(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	return s.runner.Jobs().ListJobs(filter)
}

// Get returns a job and, once finished, its result.
func (s *ExtractionService) Get(ctx context.Context, id string) (*Extraction, error) {
	job, err := s.runner.Jobs().GetJob(id)
	if err != nil {
		return nil, err
	}
	out := &Extraction{Job: job}
	if job.Done() {
		if res, err := s.runner.Jobs().GetResult(id); err == nil {
			out.Result = res
		}
	}
	return out, nil
}
