package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/jobs"
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and testing.
type Queue struct {
	jobChan   chan *jobs.ExtractionJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	log       zerolog.Logger
	closed    bool
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishExtraction
// blocks; workers is the number of jobs processed concurrently.
func NewQueue(bufferSize, workers int, store jobs.JobStore, log zerolog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.ExtractionJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		log:       log,
	}
}

// PublishExtraction implements the Publisher interface. A job that cannot be
// handed to a worker is marked failed so it does not sit pending in the store.
func (q *Queue) PublishExtraction(ctx context.Context, job *jobs.ExtractionJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	if closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		q.abandon(job, "enqueue canceled: "+ctx.Err().Error())
		return ctx.Err()
	case <-q.closeChan:
		q.abandon(job, jobs.ErrQueueClosed.Error())
		return jobs.ErrQueueClosed
	}
}

// abandon marks a job that will never run as failed and releases its upload.
// The caller's context may already be done, so the store is written without it.
func (q *Queue) abandon(job *jobs.ExtractionJob, reason string) {
	completedAt := time.Now().UTC()
	job.Status = jobs.JobStatusFailed
	job.Error = reason
	job.CompletedAt = &completedAt
	job.PDF = nil

	log := q.log.With().Str("job_id", job.JobID).Str("document_id", job.DocumentID).Logger()
	log.Warn().Str("reason", reason).Msg("Extraction job abandoned before it ran")
	q.save(context.Background(), job, log)
}

// Start implements the Consumer interface.
// It starts the configured number of workers, each handling one job at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job. Failures are final.
func (q *Queue) processJob(ctx context.Context, job *jobs.ExtractionJob, handler jobs.JobHandler) {
	log := q.log.With().Str("job_id", job.JobID).Str("document_id", job.DocumentID).Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	q.save(ctx, job, log)

	err := runHandler(ctx, job, handler)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	job.PDF = nil

	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		job.Result = nil
		log.Error().Err(err).Msg("Extraction job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Int("pages", job.Pages).Int("transactions", job.Transactions).Msg("Extraction job completed")
	}

	q.save(ctx, job, log)
}

func runHandler(ctx context.Context, job *jobs.ExtractionJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.ExtractionJob, log zerolog.Logger) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log.Warn().Err(err).Str("status", string(job.Status)).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Jobs still buffered will never be picked up.
	for {
		select {
		case job := <-q.jobChan:
			if job != nil {
				q.abandon(job, jobs.ErrQueueClosed.Error())
			}
		default:
			return nil
		}
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
