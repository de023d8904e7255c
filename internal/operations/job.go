package operations

import (
	"errors"
	"time"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Summary condenses an extraction result.
type Summary struct {
	Success          bool           `json:"success"`
	Sheets           []string       `json:"sheets"`
	WarningCount     int            `json:"warningCount"`
	Errors           []string       `json:"errors"`
	EquityTotal      float64        `json:"equityTotal"`
	GrandTotal       float64        `json:"grandTotalRankingLiabilities"`
	PersistedTables  map[string]int `json:"persistedTables,omitempty"`
	PersistedRecords int            `json:"persistedRecords,omitempty"`
}

// Job is one extraction request.
type Job struct {
	ID          string     `json:"id"`
	FileName    string     `json:"fileName"`
	Checksum    string     `json:"checksum"`
	Size        int        `json:"size"`
	Persist     bool       `json:"persist"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Summary     *Summary   `json:"summary,omitempty"`
	ArchiveKey  string     `json:"archiveKey,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Done reports whether the job reached a final status.
func (j *Job) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

func (j *Job) clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Summary != nil {
		s := *j.Summary
		s.Sheets = append([]string(nil), j.Summary.Sheets...)
		s.Errors = append([]string(nil), j.Summary.Errors...)
		if j.Summary.PersistedTables != nil {
			s.PersistedTables = make(map[string]int, len(j.Summary.PersistedTables))
			for k, v := range j.Summary.PersistedTables {
				s.PersistedTables[k] = v
			}
		}
		c.Summary = &s
	}
	return &c
}

// Summarize condenses res.
func Summarize(res *dataprocessing.Result) *Summary {
	s := &Summary{
		Success:      res.Success,
		Sheets:       make([]string, len(res.Sheets)),
		WarningCount: len(res.Warnings),
		Errors:       append([]string{}, res.Errors...),
		EquityTotal:  res.EquityTotal,
		GrandTotal:   res.GrandTotal,
	}
	for i, sh := range res.Sheets {
		s.Sheets[i] = sh.TableName
	}
	return s
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Status JobStatus
	Since  time.Time
	Limit  int
}
