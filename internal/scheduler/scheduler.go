// Package scheduler implements the single cooperative polling loop that
// drives pull-mode connectors (spec.md §4.3). It never invokes a
// connector's RunOnce directly — it only enqueues a runOnce task to the job
// queue, so all concurrency is bounded centrally by the queue's worker
// pool.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// Enqueuer is the narrow capability the scheduler needs from the job queue.
type Enqueuer interface {
	Enqueue(job domain.QueueJob) error
}

// Scheduler owns the single tick loop. It is constructed once by bootstrap
// and shares the registry and queue with every other component.
type Scheduler struct {
	registry connector.Registry
	queue    Enqueuer
	logger   core.Logger
	tick     time.Duration

	mu          sync.Mutex
	unscheduled map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

func New(registry connector.Registry, queue Enqueuer, tickInterval time.Duration, logger core.Logger) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Scheduler{
		registry:    registry,
		queue:       queue,
		logger:      logger,
		tick:        tickInterval,
		unscheduled: make(map[string]bool),
		done:        make(chan struct{}),
	}
}

// Start runs the tick loop in its own goroutine until ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.loop(ctx)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runTick(now)
		}
	}
}

// runTick enqueues a high-priority runOnce task for every pull connector
// whose NextRun has arrived, advancing NextRun first so retry behavior
// lives entirely in the queue (spec.md §4.3).
func (s *Scheduler) runTick(now time.Time) {
	for _, c := range s.registry.ByType(domain.ConnectorTypeAPI) {
		if s.isUnscheduled(c.ID()) {
			continue
		}
		if c.Status() == domain.StatusDisabled {
			continue
		}
		if c.NextRun().After(now) {
			continue
		}
		interval := time.Duration(c.PollIntervalSec()) * time.Second
		c.SetNextRun(now.Add(interval))
		s.enqueueRunOnce(c.ID(), domain.PriorityHigh)
	}
}

func (s *Scheduler) enqueueRunOnce(connectorID string, priority domain.Priority) {
	job := domain.QueueJob{
		ID:          uuid.NewString(),
		Kind:        domain.JobKindRunOnce,
		ConnectorID: connectorID,
		Priority:    priority,
		CreatedAt:   time.Now(),
		MaxAttempts: domain.MaxAttemptsFor(priority),
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue runOnce task", map[string]interface{}{
			"connectorId": connectorID, "error": err.Error(),
		})
	}
}

// RunConnectorNow enqueues an immediate runOnce task at critical priority,
// bypassing the normal schedule.
func (s *Scheduler) RunConnectorNow(connectorID string) error {
	if _, ok := s.registry.Get(connectorID); !ok {
		return core.ErrConnectorNotFound
	}
	s.enqueueRunOnce(connectorID, domain.PriorityCritical)
	return nil
}

// UpdateConnectorSchedule replaces the stored poll interval and recomputes
// NextRun.
func (s *Scheduler) UpdateConnectorSchedule(ctx context.Context, connectorID string, pollIntervalSec int) error {
	c, ok := s.registry.Get(connectorID)
	if !ok {
		return core.ErrConnectorNotFound
	}
	if err := c.UpdateConfig(ctx, func(cfg *domain.ConnectorConfig) {
		cfg.PollIntervalSec = pollIntervalSec
	}); err != nil {
		return err
	}
	c.SetNextRun(time.Now().Add(time.Duration(pollIntervalSec) * time.Second))
	return nil
}

// UnscheduleConnector removes the connector from scheduling. In-flight
// tasks already in the queue for it are allowed to complete (the scheduler
// only controls future enqueues, not the queue's own contents).
func (s *Scheduler) UnscheduleConnector(connectorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unscheduled[connectorID] = true
}

// RescheduleConnector reverses UnscheduleConnector.
func (s *Scheduler) RescheduleConnector(connectorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unscheduled, connectorID)
}

func (s *Scheduler) isUnscheduled(connectorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unscheduled[connectorID]
}
