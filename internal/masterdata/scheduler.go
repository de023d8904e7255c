package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler reloads the default reference workbook on a cron schedule.
type Scheduler struct {
	registry *Registry
	cron     *cron.Cron
	timeout  time.Duration
	logger   *slog.Logger
	onLoad   func(LoadResult, error)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLoadTimeout bounds each scheduled load.
func WithLoadTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.timeout = d }
}

// WithLoadHook is called after every scheduled load.
func WithLoadHook(fn func(LoadResult, error)) SchedulerOption {
	return func(s *Scheduler) { s.onLoad = fn }
}

// NewScheduler parses spec (standard five-field cron) in timeZone. An empty
// timeZone means local time.
func NewScheduler(registry *Registry, spec, timeZone string, logger *slog.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loc := time.Local
	if timeZone != "" {
		var err error
		if loc, err = time.LoadLocation(timeZone); err != nil {
			return nil, fmt.Errorf("invalid time zone %q: %w", timeZone, err)
		}
	}

	s := &Scheduler{
		registry: registry,
		cron:     cron.New(cron.WithLocation(loc)),
		timeout:  2 * time.Minute,
		logger:   logger.With(slog.String("component", "master_scheduler")),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.cron.AddFunc(spec, s.reload); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.registry.LoadDefault(ctx)
	if err != nil {
		s.logger.Warn("scheduled master data refresh failed", slog.String("error", err.Error()))
	} else {
		s.logger.Info("scheduled master data refresh", slog.Int("entries", res.Count))
	}
	if s.onLoad != nil {
		s.onLoad(res, err)
	}
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("master data refresh scheduler started")
}

// Stop halts the schedule and waits for a running reload to finish or ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next returns the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
