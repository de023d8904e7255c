package operations

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/fixtures"
	"github.com/gunturawaludins/mkbd-new/internal/pipeline"
	"github.com/gunturawaludins/mkbd-new/internal/store"
)

type stubExtractor struct {
	delay   time.Duration
	active  int32
	maxSeen int32
	result  func() *dataprocessing.Result
}

func (s *stubExtractor) ExtractBytes(ctx context.Context, name string, data []byte) *dataprocessing.Result {
	n := atomic.AddInt32(&s.active, 1)
	for {
		m := atomic.LoadInt32(&s.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(s.delay)
	atomic.AddInt32(&s.active, -1)
	if s.result != nil {
		return s.result()
	}
	return &dataprocessing.Result{Success: true, Sheets: []dataprocessing.ProcessedSheet{}, Errors: []string{}, Warnings: []string{}}
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []*Job
}

func (n *recordingNotifier) Broadcast(msgType string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if job, ok := data.(*Job); ok && msgType == MessageTypeJob {
		n.jobs = append(n.jobs, job)
	}
}

func (n *recordingNotifier) statuses() []JobStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]JobStatus, len(n.jobs))
	for i, j := range n.jobs {
		out[i] = j.Status
	}
	return out
}

type failingArchiver struct{ calls int32 }

func (a *failingArchiver) Archive(ctx context.Context, checksum, fileName string, data []byte) (string, error) {
	atomic.AddInt32(&a.calls, 1)
	return "", errors.New("bucket unavailable")
}

type keyArchiver struct{}

func (keyArchiver) Archive(ctx context.Context, checksum, fileName string, data []byte) (string, error) {
	return "uploads/" + checksum + "/" + fileName, nil
}

func TestRunner_RunReferenceWorkbook(t *testing.T) {
	data, err := fixtures.WorkbookBytes()
	require.NoError(t, err)

	tables := store.NewMemoryStore()
	notifier := &recordingNotifier{}
	r := NewRunner(pipeline.New(nil), NewMemoryJobStore(0),
		WithTableStore(tables), WithNotifier(notifier), WithArchiver(keyArchiver{}))

	job, res, err := r.Run(context.Background(), Request{FileName: "mkbd.xlsx", Data: data, Persist: true})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.True(t, res.Success)
	assert.Len(t, job.Checksum, 64)
	assert.Equal(t, "uploads/"+job.Checksum+"/mkbd.xlsx", job.ArchiveKey)
	require.NotNil(t, job.Summary)
	assert.Equal(t, res.GrandTotal, job.Summary.GrandTotal)
	assert.Len(t, job.Summary.Sheets, len(res.Sheets))
	assert.Positive(t, job.Summary.PersistedRecords)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	stats, err := tables.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(res.Sheets), stats.TotalTables)
	assert.Equal(t, job.Summary.PersistedRecords, stats.TotalRecords)

	stored, err := r.Jobs().GetResult(job.ID)
	require.NoError(t, err)
	assert.Same(t, res, stored)

	assert.Equal(t, []JobStatus{JobStatusPending, JobStatusRunning, JobStatusCompleted}, notifier.statuses())
}

func TestRunner_FailedExtractionMarksJobFailed(t *testing.T) {
	ext := &stubExtractor{result: func() *dataprocessing.Result {
		return &dataprocessing.Result{Success: false, Sheets: []dataprocessing.ProcessedSheet{}, Errors: []string{"No sheets processed"}, Warnings: []string{}}
	}}
	tables := store.NewMemoryStore()
	r := NewRunner(ext, NewMemoryJobStore(0), WithTableStore(tables))

	job, res, err := r.Run(context.Background(), Request{FileName: "x.xlsx", Data: []byte("x"), Persist: true})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "No sheets processed", job.Error)

	stats, err := tables.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTables)
}

func TestRunner_ArchiveFailureDoesNotFailJob(t *testing.T) {
	arch := &failingArchiver{}
	r := NewRunner(&stubExtractor{}, NewMemoryJobStore(0), WithArchiver(arch))

	job, _, err := r.Run(context.Background(), Request{FileName: "x.xlsx", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ArchiveKey)
	assert.EqualValues(t, 1, atomic.LoadInt32(&arch.calls))
}

func TestRunner_RejectsEmptyUpload(t *testing.T) {
	r := NewRunner(&stubExtractor{}, NewMemoryJobStore(0))
	_, _, err := r.Run(context.Background(), Request{FileName: "x.xlsx"})
	assert.Error(t, err)

	jobs, err := r.Jobs().ListJobs(JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRunner_OneExtractionAtATime(t *testing.T) {
	ext := &stubExtractor{delay: 20 * time.Millisecond}
	r := NewRunner(ext, NewMemoryJobStore(0))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := r.Run(context.Background(), Request{FileName: "x.xlsx", Data: []byte("x")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&ext.maxSeen))
}

func TestRunner_SubmitCompletesInBackground(t *testing.T) {
	ext := &stubExtractor{delay: 10 * time.Millisecond}
	r := NewRunner(ext, NewMemoryJobStore(0))

	job, err := r.Submit(context.Background(), Request{FileName: "x.xlsx", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)

	require.NoError(t, r.Wait(context.Background()))
	got, err := r.Jobs().GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, got.Status)
}

func TestRunner_ShutdownRejectsNewJobs(t *testing.T) {
	r := NewRunner(&stubExtractor{}, NewMemoryJobStore(0))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	_, err := r.Submit(context.Background(), Request{FileName: "x.xlsx", Data: []byte("x")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_ShutdownDuringSubmits(t *testing.T) {
	ext := &stubExtractor{delay: time.Millisecond}
	r := NewRunner(ext, NewMemoryJobStore(0))

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Submit(context.Background(), Request{FileName: "x.xlsx", Data: []byte("x")}); err == nil {
				accepted.Add(1)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	wg.Wait()

	// Every accepted job reached a final state before Shutdown returned.
	jobs, err := r.Jobs().ListJobs(JobFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, int(accepted.Load()))
	for _, j := range jobs {
		assert.Contains(t, []JobStatus{JobStatusCompleted, JobStatusFailed}, j.Status)
	}

	_, err = r.Submit(context.Background(), Request{FileName: "x.xlsx", Data: []byte("x")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_CancelledWhileQueued(t *testing.T) {
	ext := &stubExtractor{delay: 50 * time.Millisecond}
	r := NewRunner(ext, NewMemoryJobStore(0))

	first, err := r.Submit(context.Background(), Request{FileName: "a.xlsx", Data: []byte("a")})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, _ := r.Jobs().GetJob(first.ID)
		return j.Status == JobStatusRunning
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job, res, err := r.Run(ctx, Request{FileName: "b.xlsx", Data: []byte("b")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, JobStatusFailed, job.Status)

	require.NoError(t, r.Wait(context.Background()))
}
