package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIngestSMS represents an SMS extraction and ingestion job.
	JobTypeIngestSMS JobType = "ingest_sms"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Terminal reports whether no further processing will happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IngestSMSJob represents a job to extract a transaction from an SMS and
// hand it to the ledger.
type IngestSMSJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Message is the raw SMS body.
	Message string `json:"message"`

	// Sender is the SMS sender ID, kept for provenance.
	Sender string `json:"sender,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Outcome is the ledger outcome: logged, suppressed, duplicate, invalid
	// or not-financial.
	Outcome string `json:"outcome,omitempty"`

	// TransactionID is the ID assigned to the extracted record.
	TransactionID string `json:"transaction_id,omitempty"`

	// PendingID is set when the record waits for a duplicate decision.
	PendingID string `json:"pending_id,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
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
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *IngestSMSJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *IngestSMSJob) GetType() JobType {
	return JobTypeIngestSMS
}

// GetStatus implements the Job interface.
func (j *IngestSMSJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishIngestSMS publishes an SMS ingestion job.
	PublishIngestSMS(ctx context.Context, job *IngestSMSJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. It may fill in the job's
// outcome fields. It should return an error if the job failed; wrap it with
// Permanent when a retry cannot help.
type JobHandler func(ctx context.Context, job *IngestSMSJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *IngestSMSJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*IngestSMSJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestSMSJob, error)

	// Summarize counts jobs per status and per ledger outcome.
	Summarize(ctx context.Context) (JobSummary, error)
}

// JobSummary aggregates a JobStore.
type JobSummary struct {
	Total     int
	Terminal  int
	ByStatus  map[JobStatus]int
	ByOutcome map[string]int
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Outcome filters jobs by ledger outcome.
	Outcome string

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// ErrJobNotFound is returned by JobStore lookups for unknown IDs.
var ErrJobNotFound = errors.New("job not found")

// permanentError marks a failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the queue fails the job without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
