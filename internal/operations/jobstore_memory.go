package operations

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// JobStore keeps jobs and their results.
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	SaveResult(id string, res *dataprocessing.Result) error
	GetResult(id string) (*dataprocessing.Result, error)
}

// MemoryJobStore is an in-memory JobStore. It keeps at most maxJobs jobs,
// evicting the oldest finished ones first.
type MemoryJobStore struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	results map[string]*dataprocessing.Result
	order   []string
	maxJobs int
}

// NewMemoryJobStore creates a store; maxJobs <= 0 means unbounded.
func NewMemoryJobStore(maxJobs int) *MemoryJobStore {
	return &MemoryJobStore{
		jobs:    make(map[string]*Job),
		results: make(map[string]*dataprocessing.Result),
		maxJobs: maxJobs,
	}
}

func (s *MemoryJobStore) CreateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.clone()
	s.order = append(s.order, job.ID)
	s.evict()
	return nil
}

func (s *MemoryJobStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.clone(), nil
}

func (s *MemoryJobStore) UpdateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	s.jobs[job.ID] = job.clone()
	return nil
}

// ListJobs returns matching jobs, newest first.
func (s *MemoryJobStore) ListJobs(filter JobFilter) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Job{}
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && job.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, job.clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryJobStore) SaveResult(id string, res *dataprocessing.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.results[id] = res
	return nil
}

// GetResult returns the stored result. Results are shared, not copied;
// callers must not modify them.
func (s *MemoryJobStore) GetResult(id string) (*dataprocessing.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return res, nil
}

// evict drops the oldest finished jobs beyond maxJobs. Caller holds mu.
func (s *MemoryJobStore) evict() {
	if s.maxJobs <= 0 {
		return
	}
	for len(s.jobs) > s.maxJobs {
		victim := -1
		for i, id := range s.order {
			if s.jobs[id].Done() {
				victim = i
				break
			}
		}
		if victim < 0 {
			return
		}
		id := s.order[victim]
		s.order = append(s.order[:victim], s.order[victim+1:]...)
		delete(s.jobs, id)
		delete(s.results, id)
	}
}

var _ JobStore = (*MemoryJobStore)(nil)
