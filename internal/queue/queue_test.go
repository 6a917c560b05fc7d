package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/domain"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

func job(id string, p domain.Priority) domain.QueueJob {
	return domain.QueueJob{ID: id, Priority: p, MaxAttempts: domain.MaxAttemptsFor(p)}
}

func TestEnqueueFullReturnsQueueFull(t *testing.T) {
	q := New(Config{MaxQueueSize: 2, Concurrency: 1, RetryDelayBase: time.Millisecond}, nil, nil)
	require.NoError(t, q.Enqueue(job("a", domain.PriorityLow)))
	require.NoError(t, q.Enqueue(job("b", domain.PriorityLow)))
	err := q.Enqueue(job("c", domain.PriorityLow))
	assert.ErrorIs(t, err, core.ErrQueueFull)
}

func TestDequeuePriorityOrder(t *testing.T) {
	q := New(DefaultConfig(), nil, nil)
	require.NoError(t, q.Enqueue(job("low-a", domain.PriorityLow)))
	require.NoError(t, q.Enqueue(job("medium-b", domain.PriorityMedium)))
	require.NoError(t, q.Enqueue(job("critical-c", domain.PriorityCritical)))

	var order []string
	for i := 0; i < 3; i++ {
		j, ok := q.dequeue()
		require.True(t, ok)
		order = append(order, j.ID)
	}
	assert.Equal(t, []string{"critical-c", "medium-b", "low-a"}, order)
}

func TestFIFOWithinBand(t *testing.T) {
	q := New(DefaultConfig(), nil, nil)
	require.NoError(t, q.Enqueue(job("first", domain.PriorityHigh)))
	require.NoError(t, q.Enqueue(job("second", domain.PriorityHigh)))

	j1, _ := q.dequeue()
	j2, _ := q.dequeue()
	assert.Equal(t, "first", j1.ID)
	assert.Equal(t, "second", j2.ID)
}

func TestProcessSuccessUpdatesStats(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, Concurrency: 2, RetryDelayBase: time.Millisecond}, nil, nil)
	var processed sync.WaitGroup
	processed.Add(1)
	q.SetProcessor(func(ctx context.Context, j domain.QueueJob) error {
		defer processed.Done()
		return nil
	})
	require.NoError(t, q.Enqueue(job("ok", domain.PriorityLow)))

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	processed.Wait()
	time.Sleep(20 * time.Millisecond)
	cancel()
	q.Stop()

	stats := q.Stats()
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, int64(1), stats.TotalProcessed)
}

func TestRetryThenTerminalFailure(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, Concurrency: 1, RetryDelayBase: time.Millisecond}, nil, nil)
	var attempts int32
	var mu sync.Mutex
	done := make(chan struct{})
	q.SetProcessor(func(ctx context.Context, j domain.QueueJob) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return assert.AnError
	})
	j := job("fails", domain.PriorityLow)
	j.MaxAttempts = 3
	require.NoError(t, q.Enqueue(j))

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("did not reach final attempt")
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	q.Stop()

	stats := q.Stats()
	assert.Equal(t, 1, stats.Failed)
}

func TestRetryFailedJobsOnlyRequeuesEligible(t *testing.T) {
	q := New(DefaultConfig(), nil, nil)
	q.mu.Lock()
	q.failed = []domain.QueueJob{
		{ID: "a", Attempts: 3, MaxAttempts: 3},
		{ID: "b", Attempts: 1, MaxAttempts: 3},
	}
	q.mu.Unlock()

	n := q.RetryFailedJobs("")
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, q.Depth())
}
