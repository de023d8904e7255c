package operations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

func TestMemoryJobStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryJobStore(0)
	job := &Job{ID: "a", Status: JobStatusPending, CreatedAt: time.Now(), Summary: &Summary{Sheets: []string{"vd52"}}}
	require.NoError(t, s.CreateJob(job))

	job.Status = JobStatusRunning
	got, err := s.GetJob("a")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, got.Status)

	got.Summary.Sheets[0] = "changed"
	again, err := s.GetJob("a")
	require.NoError(t, err)
	assert.Equal(t, "vd52", again.Summary.Sheets[0])
}

func TestMemoryJobStore_NotFound(t *testing.T) {
	s := NewMemoryJobStore(0)

	_, err := s.GetJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, s.UpdateJob(&Job{ID: "missing"}), ErrJobNotFound)
	assert.ErrorIs(t, s.SaveResult("missing", &dataprocessing.Result{}), ErrJobNotFound)
	_, err = s.GetResult("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryJobStore_DuplicateID(t *testing.T) {
	s := NewMemoryJobStore(0)
	require.NoError(t, s.CreateJob(&Job{ID: "a"}))
	assert.Error(t, s.CreateJob(&Job{ID: "a"}))
}

func TestMemoryJobStore_ListJobs(t *testing.T) {
	s := NewMemoryJobStore(0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateJob(&Job{ID: "old", Status: JobStatusCompleted, CreatedAt: base}))
	require.NoError(t, s.CreateJob(&Job{ID: "mid", Status: JobStatusFailed, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateJob(&Job{ID: "new", Status: JobStatusCompleted, CreatedAt: base.Add(2 * time.Hour)}))

	all, err := s.ListJobs(JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)

	completed, err := s.ListJobs(JobFilter{Status: JobStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	recent, err := s.ListJobs(JobFilter{Since: base.Add(30 * time.Minute), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ID)
}

func TestMemoryJobStore_EvictsFinishedJobsFirst(t *testing.T) {
	s := NewMemoryJobStore(2)
	require.NoError(t, s.CreateJob(&Job{ID: "running", Status: JobStatusRunning}))
	require.NoError(t, s.CreateJob(&Job{ID: "done", Status: JobStatusCompleted}))
	require.NoError(t, s.SaveResult("done", &dataprocessing.Result{}))
	require.NoError(t, s.CreateJob(&Job{ID: "next", Status: JobStatusPending}))

	_, err := s.GetJob("done")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.GetResult("done")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = s.GetJob("running")
	assert.NoError(t, err)
	_, err = s.GetJob("next")
	assert.NoError(t, err)
}
