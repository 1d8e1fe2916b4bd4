package queue

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/config"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/models"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/notify"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/telemetry"
)

// Dispatcher routes a job to its platform workflow and returns a tagged outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.Job) models.Outcome
}

// Sink mirrors job state to durable storage as an audit trail. Writes are
// best effort and never affect queue behavior.
type Sink interface {
	SaveJob(ctx context.Context, job models.Job) error
}

// ErrEmptyTopic is returned when a submitted spec has no topic text.
var ErrEmptyTopic = errors.New("topic is required")

const errDisplayLimit = 300

// Queue executes jobs with bounded concurrency. A single drain goroutine pops
// the FIFO; a weighted semaphore caps concurrent executions. Failed jobs are
// re-enqueued after a constant delay until the retry cap is reached.
//
// The queue exclusively owns status transitions after Submit; callers observe
// jobs by ID through Get and Snapshot.
type Queue struct {
	ctx        context.Context
	dispatcher Dispatcher
	sink       Sink
	log        *logging.Logger
	observe    notify.Observer

	concurrency int
	maxRetries  int
	retryDelay  time.Duration
	jobTimeout  time.Duration

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu        sync.Mutex
	jobs      map[string]*models.Job
	pending   []*models.Job
	running   bool
	cancelled bool
	inflight  int
	submitted int
	completed int
	totalDur  time.Duration
	durCount  int

	wake chan struct{}
}

// New builds a queue bound to ctx; the drain loop stops when ctx is cancelled.
func New(ctx context.Context, cfg config.Config, d Dispatcher, log *logging.Logger, obs notify.Observer) *Queue {
	concurrency := cfg.QueueConcurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	return &Queue{
		ctx:         ctx,
		dispatcher:  d,
		log:         log,
		observe:     obs,
		concurrency: concurrency,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  retryDelay,
		jobTimeout:  jobTimeout,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		jobs:        make(map[string]*models.Job),
		wake:        make(chan struct{}, 1),
	}
}

// SetSink attaches a persistence sink. Call before the first Submit.
func (q *Queue) SetSink(s Sink) {
	q.sink = s
}

// Submit enqueues a job built from the spec and returns its ID. It never
// blocks; the drain loop is started lazily on first use.
func (q *Queue) Submit(spec models.PostSpec) (string, error) {
	if spec.Topic == "" {
		return "", ErrEmptyTopic
	}
	job := &models.Job{
		ID:        uuid.New().String(),
		Platform:  spec.Platform,
		Topic:     spec.Topic,
		Context:   spec.Context,
		Style:     spec.Style,
		PublishAt: spec.PublishAt,
		Status:    models.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.pending = append(q.pending, job)
	q.submitted++
	telemetry.QueueDepthGauge.Set(float64(len(q.pending)))
	q.wg.Add(1)
	start := !q.running
	if start {
		q.running = true
	}
	snap := *job
	q.mu.Unlock()

	telemetry.JobsSubmitted.Inc()
	go q.persist(snap)
	if start {
		go q.drain()
	}
	q.wakeDrain()
	return job.ID, nil
}

// Get returns a copy of the job for status polling.
func (q *Queue) Get(id string) (models.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Cancel marks every still-queued job cancelled and stops further dispatch.
// In-flight jobs run to completion. Returns false as a no-op when the queue
// is idle.
func (q *Queue) Cancel() bool {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return false
	}
	q.cancelled = true
	q.cancelPendingLocked()
	q.mu.Unlock()
	q.wakeDrain()
	return true
}

// Join blocks until every submitted job has reached a terminal state.
func (q *Queue) Join() {
	q.wg.Wait()
}

// Snapshot is a point-in-time view of queue state.
type Snapshot struct {
	Counts        map[string]int `json:"counts"`
	Depth         int            `json:"depth"`
	Processing    bool           `json:"processing"`
	AvgJobSeconds float64        `json:"avg_job_seconds"`
	ETASeconds    float64        `json:"eta_seconds"`
}

// Status returns per-status counts, queue depth, and an ETA computed as
// ceil(depth/concurrency) * average job duration.
func (q *Queue) Status() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[string]int)
	for _, j := range q.jobs {
		counts[j.Status]++
	}
	var avg float64
	if q.durCount > 0 {
		avg = q.totalDur.Seconds() / float64(q.durCount)
	}
	depth := len(q.pending)
	eta := math.Ceil(float64(depth)/float64(q.concurrency)) * avg
	return Snapshot{
		Counts:        counts,
		Depth:         depth,
		Processing:    q.running,
		AvgJobSeconds: avg,
		ETASeconds:    eta,
	}
}

func (q *Queue) wakeDrain() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drain is the single background loop that feeds the semaphore.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if q.cancelled {
			q.cancelPendingLocked()
		}
		if len(q.pending) == 0 {
			if q.inflight == 0 {
				// Idle: reset so a later Submit starts a fresh run.
				q.running = false
				q.cancelled = false
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			select {
			case <-q.ctx.Done():
				return
			case <-q.wake:
			}
			continue
		}
		job := q.pending[0]
		q.pending = q.pending[1:]
		telemetry.QueueDepthGauge.Set(float64(len(q.pending)))
		q.mu.Unlock()

		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			return
		}
		q.mu.Lock()
		q.inflight++
		q.mu.Unlock()
		telemetry.InFlightGauge.Inc()
		go q.runJob(job)
	}
}

// cancelPendingLocked marks every queued job cancelled. Caller holds q.mu.
func (q *Queue) cancelPendingLocked() {
	for _, job := range q.pending {
		if !q.transitionLocked(job, models.StatusCancelled) {
			continue
		}
		now := time.Now().UTC()
		job.CompletedAt = &now
		telemetry.JobsCancelled.Inc()
		go q.persist(*job)
		q.wg.Done()
		q.observe.Emit(notify.Event{
			Status:    models.StatusCancelled,
			JobID:     job.ID,
			Platform:  job.Platform,
			Completed: q.completed,
			Total:     q.submitted,
		})
	}
	q.pending = nil
	telemetry.QueueDepthGauge.Set(0)
}

// transitionLocked applies a status change unless the job is already
// terminal. Caller holds q.mu.
func (q *Queue) transitionLocked(job *models.Job, status string) bool {
	if models.TerminalStatus(job.Status) {
		return false
	}
	job.Status = status
	return true
}

// runJob executes one job past the semaphore and settles its fate.
func (q *Queue) runJob(job *models.Job) {
	q.mu.Lock()
	q.transitionLocked(job, models.StatusProcessing)
	job.Attempts++
	snapshot := *job
	q.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(q.ctx, q.jobTimeout)
	outcome := q.dispatcher.Dispatch(ctx, snapshot)
	cancel()
	elapsed := time.Since(start)

	q.sem.Release(1)
	telemetry.InFlightGauge.Dec()

	switch outcome.Kind {
	case models.OutcomeSuccess:
		q.complete(job, *outcome.Result, elapsed)
	case models.OutcomeClarification:
		// A clarification request will not resolve by retrying.
		q.fail(job, "clarification needed: "+outcome.Reason)
	default:
		q.retryOrFail(job, outcome.Err)
	}
}

func (q *Queue) complete(job *models.Job, res models.GenerationResult, elapsed time.Duration) {
	q.mu.Lock()
	q.transitionLocked(job, models.StatusCompleted)
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.Result = res.Content
	job.Score = res.Score
	job.RecordURL = res.RecordURL
	q.totalDur += elapsed
	q.durCount++
	q.completed++
	q.inflight--
	completed, total := q.completed, q.submitted
	snap := *job
	q.mu.Unlock()

	go q.persist(snap)
	telemetry.JobsCompleted.Inc()
	q.log.Info("job completed", "job_id", job.ID, "platform", job.Platform, "score", res.Score, "elapsed", elapsed)
	q.observe.Emit(notify.Event{
		Status:    models.StatusCompleted,
		JobID:     job.ID,
		Platform:  job.Platform,
		Completed: completed,
		Total:     total,
	})
	q.wg.Done()
	q.wakeDrain()
}

func (q *Queue) fail(job *models.Job, errMsg string) {
	q.mu.Lock()
	q.transitionLocked(job, models.StatusFailed)
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.LastError = truncateError(errMsg)
	q.inflight--
	completed, total := q.completed, q.submitted
	snap := *job
	q.mu.Unlock()

	go q.persist(snap)
	telemetry.JobsFailed.Inc()
	q.log.Warn("job failed", "job_id", job.ID, "platform", job.Platform, "error", job.LastError, "attempts", job.Attempts)
	q.observe.Emit(notify.Event{
		Status:    models.StatusFailed,
		JobID:     job.ID,
		Platform:  job.Platform,
		Completed: completed,
		Total:     total,
		Error:     job.LastError,
	})
	q.wg.Done()
	q.wakeDrain()
}

// retryOrFail re-enqueues after the constant delay while attempts remain.
// Timeouts take this path like any other failure.
func (q *Queue) retryOrFail(job *models.Job, errMsg string) {
	q.mu.Lock()
	attempts := job.Attempts
	if attempts > q.maxRetries {
		q.mu.Unlock()
		q.fail(job, errMsg)
		return
	}
	q.transitionLocked(job, models.StatusRetrying)
	job.LastError = truncateError(errMsg)
	q.mu.Unlock()

	telemetry.JobsRetried.Inc()
	q.log.Info("job retrying", "job_id", job.ID, "attempt", attempts, "delay", q.retryDelay, "error", job.LastError)
	q.observe.Emit(notify.Event{
		Status:   models.StatusRetrying,
		JobID:    job.ID,
		Platform: job.Platform,
		Error:    job.LastError,
	})

	select {
	case <-q.ctx.Done():
		q.fail(job, errMsg)
		return
	case <-time.After(q.retryDelay):
	}

	q.mu.Lock()
	q.transitionLocked(job, models.StatusQueued)
	q.pending = append(q.pending, job)
	telemetry.QueueDepthGauge.Set(float64(len(q.pending)))
	q.inflight--
	q.mu.Unlock()
	q.wakeDrain()
}

// persist mirrors a job snapshot to the sink. Detached from the queue's
// context so a shutdown still flushes terminal states.
func (q *Queue) persist(job models.Job) {
	if q.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.sink.SaveJob(ctx, job); err != nil {
		q.log.Warn("job mirror write failed", "job_id", job.ID, "error", err)
	}
}

func truncateError(msg string) string {
	if len(msg) > errDisplayLimit {
		return msg[:errDisplayLimit]
	}
	return msg
}
