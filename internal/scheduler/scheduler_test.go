package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
)

type noopAdapter struct{}

func (noopAdapter) Start(ctx context.Context) error    { return nil }
func (noopAdapter) Stop(ctx context.Context) error     { return nil }
func (noopAdapter) RunOnce(ctx context.Context) error  { return nil }
func (noopAdapter) TestConnection(ctx context.Context) (bool, string, error) {
	return true, "", nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []domain.QueueJob
}

func (q *fakeQueue) Enqueue(job domain.QueueJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Jobs() []domain.QueueJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QueueJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}

func newAPIConnector(t *testing.T, id string) *connector.Connector {
	t.Helper()
	c, err := connector.New(connector.Config{
		ID:   id,
		Name: id,
		Type: domain.ConnectorTypeAPI,
		Configuration: domain.ConnectorConfig{
			Type: domain.ConnectorTypeAPI,
			API:  &domain.APIConfig{Endpoint: "https://example.com", PollingInterval: 1},
		},
		Adapter: noopAdapter{},
	})
	require.NoError(t, err)
	return c
}

func TestRunTickEnqueuesDueConnectors(t *testing.T) {
	reg := connector.NewInMemory(eventbus.New())
	c := newAPIConnector(t, "c1")
	require.NoError(t, reg.Register(c))

	q := &fakeQueue{}
	s := New(reg, q, time.Millisecond, nil)

	s.runTick(time.Now())

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobKindRunOnce, jobs[0].Kind)
	assert.Equal(t, "c1", jobs[0].ConnectorID)
	assert.Equal(t, domain.PriorityHigh, jobs[0].Priority)
}

func TestRunTickSkipsNotYetDueConnectors(t *testing.T) {
	reg := connector.NewInMemory(eventbus.New())
	c := newAPIConnector(t, "c1")
	c.SetNextRun(time.Now().Add(time.Hour))
	require.NoError(t, reg.Register(c))

	q := &fakeQueue{}
	s := New(reg, q, time.Millisecond, nil)
	s.runTick(time.Now())

	assert.Empty(t, q.Jobs())
}

func TestRunConnectorNowUsesCriticalPriority(t *testing.T) {
	reg := connector.NewInMemory(eventbus.New())
	c := newAPIConnector(t, "c1")
	require.NoError(t, reg.Register(c))

	q := &fakeQueue{}
	s := New(reg, q, time.Millisecond, nil)

	require.NoError(t, s.RunConnectorNow("c1"))
	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.PriorityCritical, jobs[0].Priority)
}

func TestUnscheduleConnectorSkipsFutureTicks(t *testing.T) {
	reg := connector.NewInMemory(eventbus.New())
	c := newAPIConnector(t, "c1")
	require.NoError(t, reg.Register(c))

	q := &fakeQueue{}
	s := New(reg, q, time.Millisecond, nil)
	s.UnscheduleConnector("c1")
	s.runTick(time.Now())

	assert.Empty(t, q.Jobs())
}

func TestDisabledConnectorSkipsTicks(t *testing.T) {
	reg := connector.NewInMemory(eventbus.New())
	c := newAPIConnector(t, "c1")
	for i := 0; i < 5; i++ {
		c.SetStatus(domain.StatusError, "x")
	}
	require.Equal(t, domain.StatusDisabled, c.Status())
	require.NoError(t, reg.Register(c))

	q := &fakeQueue{}
	s := New(reg, q, time.Millisecond, nil)
	s.runTick(time.Now())

	assert.Empty(t, q.Jobs())
}
