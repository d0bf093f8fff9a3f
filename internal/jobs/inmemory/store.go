package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-assistant/internal/jobs"
)

// Store keeps SMS job snapshots in memory. Callers always get copies, so a
// worker mutating its job never races with a reader. Data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]jobs.IngestSMSJob
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]jobs.IngestSMSJob)}
}

// SaveJob records a snapshot of job, replacing any earlier one.
func (s *Store) SaveJob(ctx context.Context, job *jobs.IngestSMSJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	s.jobs[job.JobID] = *job
	s.mu.Unlock()
	return nil
}

// GetJob returns the latest snapshot of jobID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.IngestSMSJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("GetJob: %w: %s", jobs.ErrJobNotFound, jobID)
	}
	return &job, nil
}

// ListJobs returns matching jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IngestSMSJob, error) {
	s.mu.RLock()
	result := make([]*jobs.IngestSMSJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Outcome != "" && job.Outcome != filter.Outcome {
			continue
		}
		result = append(result, &job)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Offset >= len(result) {
		return nil, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Summarize counts jobs per status and per outcome. Jobs without an outcome
// are not counted in ByOutcome.
func (s *Store) Summarize(ctx context.Context) (jobs.JobSummary, error) {
	sum := jobs.JobSummary{
		ByStatus:  make(map[jobs.JobStatus]int),
		ByOutcome: make(map[string]int),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		sum.Total++
		sum.ByStatus[job.Status]++
		if job.Status.Terminal() {
			sum.Terminal++
		}
		if job.Outcome != "" {
			sum.ByOutcome[job.Outcome]++
		}
	}
	return sum, nil
}

var _ jobs.JobStore = (*Store)(nil)
