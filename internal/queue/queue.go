// Package queue implements the bounded priority job queue (spec.md §4.5):
// four FIFO priority bands, N concurrent workers, retry with backoff, and
// the bookkeeping/observability the scheduler and pipeline depend on. It is
// grounded on the teacher's async task system split (core/async_task.go's
// TaskQueue/TaskStore/TaskWorker/TaskHandler), generalized from one FIFO
// Redis list to four in-memory priority bands — what's reused is the
// submission/persistence/execution separation, not the Redis backing.
package queue

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// Processor executes one job's unit of work. Supplied by bootstrap: in
// production it dispatches on job.Kind to either the pipeline (JobKindEvent)
// or the registry's connector RunOnce (JobKindRunOnce).
type Processor func(ctx context.Context, job domain.QueueJob) error

// Config controls capacity, worker count, and retry backoff.
type Config struct {
	MaxQueueSize   int
	Concurrency    int
	RetryDelayBase time.Duration
	CleanupEvery   time.Duration
	RetentionAge   time.Duration
}

// DefaultConfig matches spec.md §4.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:   10000,
		Concurrency:    5,
		RetryDelayBase: 5 * time.Second,
		CleanupEvery:   time.Hour,
		RetentionAge:   24 * time.Hour,
	}
}

// Stats is the bookkeeping snapshot spec.md §4.5 names.
type Stats struct {
	Pending               int
	Processing            int
	Completed             int
	Failed                int
	TotalProcessed        int64
	AverageProcessingTime time.Duration
}

// Queue is the bounded priority job queue.
type Queue struct {
	cfg Config
	bus *eventbus.Bus
	log core.Logger

	mu       sync.Mutex
	bands    map[domain.Priority]*list.List
	depth    int
	processing map[string]domain.QueueJob
	completed  []domain.QueueJob
	failed     []domain.QueueJob

	totalProcessed  int64
	totalDuration   time.Duration
	durationSamples int64

	processor Processor

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Queue. Call SetProcessor before Start.
func New(cfg Config, bus *eventbus.Bus, logger core.Logger) *Queue {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultConfig().MaxQueueSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = DefaultConfig().RetryDelayBase
	}
	if cfg.CleanupEvery <= 0 {
		cfg.CleanupEvery = DefaultConfig().CleanupEvery
	}
	if cfg.RetentionAge <= 0 {
		cfg.RetentionAge = DefaultConfig().RetentionAge
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	bands := make(map[domain.Priority]*list.List)
	for _, p := range domain.PriorityOrder() {
		bands[p] = list.New()
	}
	return &Queue{
		cfg:        cfg,
		bus:        bus,
		log:        logger,
		bands:      bands,
		processing: make(map[string]domain.QueueJob),
	}
}

// SetProcessor wires the function workers call to execute a dequeued job.
func (q *Queue) SetProcessor(p Processor) { q.processor = p }

// Enqueue adds a job to the tail of its priority band. Returns ErrQueueFull
// when the queue is at capacity (spec.md §4.5, §7).
func (q *Queue) Enqueue(job domain.QueueJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.depth >= q.cfg.MaxQueueSize {
		return core.ErrQueueFull
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = domain.MaxAttemptsFor(job.Priority)
	}
	band, ok := q.bands[job.Priority]
	if !ok {
		band = q.bands[domain.PriorityLow]
	}
	band.PushBack(job)
	q.depth++
	if q.bus != nil {
		q.bus.Publish(eventbus.TopicJobQueued, job)
	}
	return nil
}

// dequeue removes and returns the head of the highest-priority non-empty
// band. Returns false if every band is empty.
func (q *Queue) dequeue() (domain.QueueJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range domain.PriorityOrder() {
		band := q.bands[p]
		if front := band.Front(); front != nil {
			band.Remove(front)
			q.depth--
			job := front.Value.(domain.QueueJob)
			return job, true
		}
	}
	return domain.QueueJob{}, false
}

// Depth returns the total number of jobs currently pending across all bands.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Stats returns the current bookkeeping snapshot.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var avg time.Duration
	if q.durationSamples > 0 {
		avg = q.totalDuration / time.Duration(q.durationSamples)
	}
	return Stats{
		Pending:               q.depth,
		Processing:            len(q.processing),
		Completed:             len(q.completed),
		Failed:                len(q.failed),
		TotalProcessed:        q.totalProcessed,
		AverageProcessingTime: avg,
	}
}

// Start launches cfg.Concurrency worker goroutines plus the hourly cleanup
// loop. Safe to call once; call Stop to shut down.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go q.workerLoop(ctx, i)
	}
	q.wg.Add(1)
	go q.cleanupLoop(ctx)
}

// Stop signals all workers and the cleanup loop to exit and waits for them
// to drain their current job (spec.md §5: "await workers drain").
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

func (q *Queue) workerLoop(ctx context.Context, workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, ok := q.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		q.process(ctx, job)
	}
}

func (q *Queue) process(ctx context.Context, job domain.QueueJob) {
	now := time.Now()
	job.ProcessingStartedAt = &now
	job.Attempts++

	q.mu.Lock()
	q.processing[job.ID] = job
	q.mu.Unlock()
	if q.bus != nil {
		q.bus.Publish(eventbus.TopicJobStarted, job)
	}

	var err error
	if q.processor != nil {
		err = q.processor(ctx, job)
	} else {
		err = fmt.Errorf("%w: no processor configured", core.ErrStore)
	}

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	q.mu.Lock()
	delete(q.processing, job.ID)
	duration := completedAt.Sub(*job.ProcessingStartedAt)
	q.mu.Unlock()

	if err == nil {
		q.mu.Lock()
		q.completed = append(q.completed, job)
		q.totalProcessed++
		q.totalDuration += duration
		q.durationSamples++
		q.mu.Unlock()
		if q.bus != nil {
			q.bus.Publish(eventbus.TopicJobCompleted, JobResult{Job: job, Err: nil})
		}
		return
	}

	job.Error = err.Error()
	if job.Attempts < job.MaxAttempts && !core.IsTerminal(err) {
		if q.bus != nil {
			q.bus.Publish(eventbus.TopicJobRetry, job)
		}
		delay := time.Duration(job.Attempts) * q.cfg.RetryDelayBase
		q.scheduleRetry(ctx, job, delay)
		return
	}

	q.mu.Lock()
	q.failed = append(q.failed, job)
	q.mu.Unlock()
	if q.bus != nil {
		q.bus.Publish(eventbus.TopicJobFailed, job)
	}
}

// scheduleRetry re-enqueues job after delay without blocking the worker
// that observed the failure (spec.md §4.5: backoff lives in the queue,
// nothing else retries).
func (q *Queue) scheduleRetry(ctx context.Context, job domain.QueueJob, delay time.Duration) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		_ = q.Enqueue(job)
	}()
}

// RetryFailedJobs re-queues failed jobs that still have attempts remaining,
// optionally scoped to one connector.
func (q *Queue) RetryFailedJobs(connectorID string) int {
	q.mu.Lock()
	var keep []domain.QueueJob
	var toRetry []domain.QueueJob
	for _, job := range q.failed {
		eligible := job.Attempts < job.MaxAttempts && (connectorID == "" || job.ConnectorID == connectorID)
		if eligible {
			toRetry = append(toRetry, job)
		} else {
			keep = append(keep, job)
		}
	}
	q.failed = keep
	q.mu.Unlock()

	for _, job := range toRetry {
		_ = q.Enqueue(job)
	}
	return len(toRetry)
}

// JobResult pairs a completed job with its outcome, published on
// TopicJobCompleted per spec.md §4.5.
type JobResult struct {
	Job domain.QueueJob
	Err error
}

// cleanupLoop evicts completed jobs older than RetentionAge and failed jobs
// older than RetentionAge from in-memory history, hourly by default.
func (q *Queue) cleanupLoop(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.CleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.cleanup()
		}
	}
}

func (q *Queue) cleanup() {
	cutoff := time.Now().Add(-q.cfg.RetentionAge)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = filterRecent(q.completed, cutoff)
	q.failed = filterRecent(q.failed, cutoff)
}

func filterRecent(jobs []domain.QueueJob, cutoff time.Time) []domain.QueueJob {
	out := jobs[:0:0]
	for _, j := range jobs {
		if j.CompletedAt == nil || j.CompletedAt.After(cutoff) {
			out = append(out, j)
		}
	}
	return out
}
