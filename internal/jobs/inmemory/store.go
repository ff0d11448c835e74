package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Matheus920/ledger-loader/internal/jobs"
)

// Store keeps job state in memory. Data is lost on restart; persistence
// would need a database-backed store.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.LedgerSyncJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.LedgerSyncJob)}
}

// SaveJob saves or updates a job. Copies guard against callers mutating
// stored state.
func (s *Store) SaveJob(_ context.Context, job *jobs.LedgerSyncJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.LedgerSyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs retrieves jobs matching the filter.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.LedgerSyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.LedgerSyncJob
	for _, job := range s.jobs {
		if filter.RunID != "" && job.RunID != filter.RunID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.LedgerSyncJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus updates the status (and error text) of a stored job.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("UpdateJobStatus: job not found: %s", jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
