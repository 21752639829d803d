package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/spend-insights/internal/jobs"
)

// Store keeps analysis jobs in memory. It is safe for concurrent use and
// loses everything on restart.
type Store struct {
	mu          sync.RWMutex
	jobs        map[string]*jobs.AnalyzeUserJob
	maxFinished int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxFinishedJobs caps how many completed or failed jobs are retained.
// The jobs that finished first are evicted first. Zero keeps everything.
func WithMaxFinishedJobs(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxFinished = n
		}
	}
}

// NewStore creates an empty job store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs: make(map[string]*jobs.AnalyzeUserJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveJob stores a copy of job, replacing any job with the same ID.
func (s *Store) SaveJob(ctx context.Context, job *jobs.AnalyzeUserJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	if job.Finished() {
		s.evictFinishedLocked()
	}
	return nil
}

// GetJob returns a copy of the job, or ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.AnalyzeUserJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns matching jobs newest first, so offset paging is stable.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.AnalyzeUserJob, error) {
	s.mu.RLock()
	result := []*jobs.AnalyzeUserJob{}
	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.AnalyzeUserJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus sets the status of a stored job. An empty errorMsg keeps
// the previous error.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	if job.Finished() {
		s.evictFinishedLocked()
	}
	return nil
}

// evictFinishedLocked drops the oldest finished jobs beyond maxFinished.
// Pending, running and retrying jobs are never evicted.
func (s *Store) evictFinishedLocked() {
	if s.maxFinished == 0 {
		return
	}

	var done []*jobs.AnalyzeUserJob
	for _, job := range s.jobs {
		if job.Finished() {
			done = append(done, job)
		}
	}
	if len(done) <= s.maxFinished {
		return
	}

	sort.Slice(done, func(i, j int) bool {
		ti, tj := done[i].CreatedAt, done[j].CreatedAt
		if done[i].CompletedAt != nil {
			ti = *done[i].CompletedAt
		}
		if done[j].CompletedAt != nil {
			tj = *done[j].CompletedAt
		}
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return done[i].JobID < done[j].JobID
	})

	for _, job := range done[:len(done)-s.maxFinished] {
		delete(s.jobs, job.JobID)
	}
}

var _ jobs.JobStore = (*Store)(nil)
