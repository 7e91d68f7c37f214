package jobs

import (
	"context"
	"time"
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

// RecomputePatternJob asks the worker to rebuild the derived spending
// statistics for one category. Published after every expense insert so the
// spending_patterns table stays eventually consistent with transactions.
type RecomputePatternJob struct {
	JobID    string    `json:"job_id"`
	Category string    `json:"category"`
	Status   JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// JobHandler processes a single job.
type JobHandler func(ctx context.Context, job *RecomputePatternJob) error

// JobFilter narrows ListJobs results.
type JobFilter struct {
	Category string
	Status   JobStatus
	Limit    int
	Offset   int
}

// Publisher enqueues jobs for asynchronous processing.
type Publisher interface {
	PublishRecompute(ctx context.Context, job *RecomputePatternJob) error
	Close() error
}

// Consumer drains the queue and runs jobs through a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobStore records job state for later inspection.
type JobStore interface {
	SaveJob(ctx context.Context, job *RecomputePatternJob) error
	GetJob(ctx context.Context, jobID string) (*RecomputePatternJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*RecomputePatternJob, error)
}
