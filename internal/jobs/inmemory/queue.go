package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// DefaultMaxRetries applies to jobs published without a retry budget.
const DefaultMaxRetries = 3

// ErrQueueClosed is returned once Stop or Close has been called.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is a channel backed Publisher and Consumer for a single process.
// Every state change of a job is snapshotted into the JobStore.
type Queue struct {
	pending chan *jobs.IngestSMSJob
	quit    chan struct{}
	workers int
	store   jobs.JobStore

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// Backoff is multiplied by the retry count before a failed job is
	// re-enqueued.
	Backoff time.Duration
	now     func() time.Time
}

// NewQueue creates a queue holding up to bufferSize jobs, drained by workers
// goroutines once Start is called. A nil store gets a fresh in-memory Store.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if store == nil {
		store = NewStore()
	}
	return &Queue{
		pending: make(chan *jobs.IngestSMSJob, bufferSize),
		quit:    make(chan struct{}),
		workers: workers,
		store:   store,
		Backoff: time.Second,
		now:     time.Now,
	}
}

// PublishIngestSMS fills in defaults, records the job and enqueues it. It
// blocks while the buffer is full.
func (q *Queue) PublishIngestSMS(ctx context.Context, job *jobs.IngestSMSJob) error {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = DefaultMaxRetries
	}
	job.Status = jobs.JobStatusPending
	return q.enqueue(ctx, job)
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.IngestSMSJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	if err := q.store.SaveJob(ctx, job); err != nil {
		return err
	}

	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrQueueClosed
	}
}

// Start launches the workers. It returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, handler)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.quit:
			return
		case job := <-q.pending:
			q.run(ctx, job, handler)
		}
	}
}

// run executes one attempt and settles the job's next state.
func (q *Queue) run(ctx context.Context, job *jobs.IngestSMSJob, handler jobs.JobHandler) {
	started := q.now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.CompletedAt = nil
	_ = q.store.SaveJob(ctx, job)

	err := handler(ctx, job)

	finished := q.now()
	job.CompletedAt = &finished

	log := logger.FromContext(ctx)
	retry := false
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case jobs.IsPermanent(err) || job.RetryCount >= job.MaxRetries:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Str("job_id", job.JobID).Int("retries", job.RetryCount).Msg("SMS job failed")
	default:
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		job.RetryCount++
		log.Warn().Err(err).Str("job_id", job.JobID).Int("retry", job.RetryCount).Msg("SMS job failed, retrying")
		retry = true
	}
	_ = q.store.SaveJob(ctx, job)

	if retry {
		q.retryLater(ctx, job)
	}
}

// retryLater re-enqueues a copy of job after a linear backoff.
func (q *Queue) retryLater(ctx context.Context, job *jobs.IngestSMSJob) {
	next := *job
	next.Status = jobs.JobStatusPending
	next.StartedAt = nil
	next.CompletedAt = nil

	time.AfterFunc(time.Duration(next.RetryCount)*q.Backoff, func() {
		if err := q.enqueue(ctx, &next); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("job_id", next.JobID).Msg("Dropped SMS job retry")
		}
	})
}

// Stop closes the queue and waits for in-flight jobs, bounded by ctx.
// Queued jobs that were not started stay pending in the store.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
