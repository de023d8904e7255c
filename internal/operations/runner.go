package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/infrastructure"
	"github.com/gunturawaludins/mkbd-new/internal/store"
)

// Extractor turns an uploaded workbook into a result. *pipeline.Pipeline
// implements it.
type Extractor interface {
	ExtractBytes(ctx context.Context, name string, data []byte) *dataprocessing.Result
}

// Archiver keeps a copy of an uploaded workbook and returns its key.
type Archiver interface {
	Archive(ctx context.Context, checksum, fileName string, data []byte) (string, error)
}

// Notifier receives job status changes.
type Notifier interface {
	Broadcast(msgType string, data any)
}

// MessageTypeJob is the notifier message type for job updates.
const MessageTypeJob = "extraction:job"

// Request is one workbook submitted for extraction.
type Request struct {
	FileName string
	Data     []byte
	Persist  bool
}

// Runner executes extraction jobs one at a time.
type Runner struct {
	extractor Extractor
	jobs      JobStore
	tables    store.TableStore
	archiver  Archiver
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time

	gate *semaphore.Weighted
	wg   sync.WaitGroup
	// mu orders wg.Add in Submit against wg.Wait in Shutdown.
	mu     sync.Mutex
	closed bool
	// base outlives request contexts so async jobs survive the handler.
	base   context.Context
	cancel context.CancelFunc
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTableStore persists results of jobs submitted with Persist set.
func WithTableStore(s store.TableStore) RunnerOption {
	return func(r *Runner) { r.tables = s }
}

// WithArchiver archives every upload before extraction.
func WithArchiver(a Archiver) RunnerOption {
	return func(r *Runner) { r.archiver = a }
}

// WithNotifier publishes job updates.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunnerClock overrides the job timestamps clock.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner.
func NewRunner(extractor Extractor, jobs JobStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		extractor: extractor,
		jobs:      jobs,
		logger:    slog.Default(),
		now:       time.Now,
		gate:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "runner"))
	r.base, r.cancel = context.WithCancel(context.Background())
	return r
}

// Jobs returns the job store.
func (r *Runner) Jobs() JobStore { return r.jobs }

// Run extracts req synchronously and returns the finished job with its
// result. Extraction problems are reported in the result, not as err; err is
// set only when the job could not run at all.
func (r *Runner) Run(ctx context.Context, req Request) (*Job, *dataprocessing.Result, error) {
	job, err := r.create(req)
	if err != nil {
		return nil, nil, err
	}
	res, err := r.execute(ctx, job, req)
	if err != nil {
		return job.clone(), nil, err
	}
	return job.clone(), res, nil
}

// Submit queues req and returns the pending job immediately.
func (r *Runner) Submit(ctx context.Context, req Request) (*Job, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("runner stopped: %w", context.Canceled)
	}
	r.wg.Add(1)
	r.mu.Unlock()

	job, err := r.create(req)
	if err != nil {
		r.wg.Done()
		return nil, err
	}

	runCtx := r.base
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		runCtx = infrastructure.WithTraceID(runCtx, traceID)
	}

	pending := job.clone()
	go func() {
		defer r.wg.Done()
		if _, err := r.execute(runCtx, job, req); err != nil {
			r.logger.Warn("queued job did not run", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
	}()
	return pending, nil
}

// Wait blocks until queued jobs finish or ctx expires.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs, cancels queued ones and waits for the rest.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.cancel()
	r.mu.Unlock()
	return r.Wait(ctx)
}

func (r *Runner) create(req Request) (*Job, error) {
	if len(req.Data) == 0 {
		return nil, errors.New("empty upload")
	}
	job := &Job{
		ID:        uuid.NewString(),
		FileName:  req.FileName,
		Checksum:  dataprocessing.Checksum(req.Data),
		Size:      len(req.Data),
		Persist:   req.Persist,
		Status:    JobStatusPending,
		CreatedAt: r.now().UTC(),
	}
	if err := r.jobs.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	r.notify(job)
	return job, nil
}

func (r *Runner) execute(ctx context.Context, job *Job, req Request) (*dataprocessing.Result, error) {
	if err := r.gate.Acquire(ctx, 1); err != nil {
		r.finish(job, nil, err)
		return nil, err
	}
	defer r.gate.Release(1)

	started := r.now().UTC()
	job.Status = JobStatusRunning
	job.StartedAt = &started
	r.update(job)

	ctx = infrastructure.WithRunID(ctx, job.ID)
	logger := r.logger.With(slog.String("job_id", job.ID), slog.String("file", job.FileName))

	if r.archiver != nil {
		key, err := r.archiver.Archive(ctx, job.Checksum, job.FileName, req.Data)
		if err != nil {
			logger.WarnContext(ctx, "archive failed", slog.String("error", err.Error()))
		} else {
			job.ArchiveKey = key
		}
	}

	res := r.extractor.ExtractBytes(ctx, req.FileName, req.Data)
	summary := Summarize(res)

	var runErr error
	if res.Success && req.Persist && r.tables != nil {
		persisted, err := store.PersistResult(ctx, r.tables, res)
		summary.PersistedTables = persisted.Tables
		summary.PersistedRecords = persisted.Records
		if err != nil {
			runErr = fmt.Errorf("persist: %w", err)
			logger.ErrorContext(ctx, "persist failed", slog.String("error", err.Error()))
		}
	}
	if !res.Success && runErr == nil {
		runErr = errors.New(strings.Join(res.Errors, "; "))
	}

	job.Summary = summary
	if err := r.jobs.SaveResult(job.ID, res); err != nil {
		logger.WarnContext(ctx, "save result failed", slog.String("error", err.Error()))
	}
	r.finish(job, summary, runErr)
	logger.InfoContext(ctx, "job finished", slog.String("status", string(job.Status)))
	return res, nil
}

func (r *Runner) finish(job *Job, summary *Summary, err error) {
	done := r.now().UTC()
	job.CompletedAt = &done
	job.Summary = summary
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = JobStatusCompleted
	}
	r.update(job)
}

func (r *Runner) update(job *Job) {
	if err := r.jobs.UpdateJob(job); err != nil {
		r.logger.Warn("update job failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
	r.notify(job)
}

func (r *Runner) notify(job *Job) {
	if r.notifier != nil {
		r.notifier.Broadcast(MessageTypeJob, job.clone())
	}
}
