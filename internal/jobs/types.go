// Package jobs defines the asynchronous unit of work of the loader: one
// ledger sync over a pair of extract sources. Queue and store abstractions
// keep the worker independent of the transport.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeLedgerSync represents one full ingestion run over a pair of
	// extract sources.
	JobTypeLedgerSync JobType = "ledger_sync"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Terminal reports whether a status will not change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// LedgerSyncJob describes one ingestion run to execute: fetch the two
// extracts, normalize, stage, and merge under a single run id.
type LedgerSyncJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// AccountsSource and TransactionsSource locate the extracts, as gs://
	// URIs or local paths.
	AccountsSource     string `json:"accounts_source"`
	TransactionsSource string `json:"transactions_source"`

	// RunID tags the staged rows; empty means the worker mints one.
	RunID string `json:"run_id,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *LedgerSyncJob) GetID() string        { return j.JobID }
func (j *LedgerSyncJob) GetType() JobType     { return JobTypeLedgerSync }
func (j *LedgerSyncJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue. The
// abstraction allows swapping the in-memory queue for Cloud Tasks or
// Pub/Sub without touching the worker.
type Publisher interface {
	PublishLedgerSync(ctx context.Context, job *LedgerSyncJob) error
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; the handler runs for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job failed and
// eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state across the queue's lifecycle.
type JobStore interface {
	SaveJob(ctx context.Context, job *LedgerSyncJob) error
	GetJob(ctx context.Context, jobID string) (*LedgerSyncJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*LedgerSyncJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// RunID filters jobs by the run they executed.
	RunID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
