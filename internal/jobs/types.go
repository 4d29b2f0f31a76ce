package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-extractor/internal/pipeline"
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
	// JobStatusFailed indicates the job failed. Failed jobs are not retried.
	JobStatusFailed JobStatus = "failed"
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// ErrJobNotFound is returned when no job has the requested ID.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// ExtractionJob is a statement queued for asynchronous extraction.
type ExtractionJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// DocumentID identifies the uploaded statement across archive and warehouse.
	DocumentID string `json:"document_id"`

	// Filename is the name the statement was uploaded with.
	Filename string `json:"filename,omitempty"`

	// ArchiveURI is the gs:// location of the archived PDF, if archived.
	ArchiveURI string `json:"archive_uri,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Pages and Transactions summarize a completed result.
	Pages        int `json:"pages"`
	Transactions int `json:"transactions"`

	// PDF holds the upload until the job runs.
	PDF []byte `json:"-"`

	// Result is set once the job completed.
	Result []pipeline.PageResult `json:"-"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishExtraction enqueues a statement for extraction.
	PublishExtraction(ctx context.Context, job *ExtractionJob) error

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

// JobHandler processes a job. It fills in the job's result on success and
// returns an error if the job failed.
type JobHandler func(ctx context.Context, job *ExtractionJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ExtractionJob) error

	// GetJob retrieves a job by ID. Missing jobs yield ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*ExtractionJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExtractionJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error

	// DeleteFinishedBefore removes completed and failed jobs that finished
	// before cutoff and returns how many were removed.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// DocumentID filters jobs by document ID.
	DocumentID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
