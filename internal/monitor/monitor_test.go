package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
)

type noopAdapter struct{}

func (noopAdapter) Start(ctx context.Context) error { return nil }
func (noopAdapter) Stop(ctx context.Context) error  { return nil }
func (noopAdapter) RunOnce(ctx context.Context) error { return nil }
func (noopAdapter) TestConnection(ctx context.Context) (bool, string, error) {
	return true, "", nil
}

func newTestConnector(t *testing.T, id string, bus *eventbus.Bus) *connector.Connector {
	t.Helper()
	c, err := connector.New(connector.Config{
		ID:   id,
		Name: id,
		Type: domain.ConnectorTypeAPI,
		Configuration: domain.ConnectorConfig{
			Type: domain.ConnectorTypeAPI,
			API:  &domain.APIConfig{Endpoint: "https://example.com"},
		},
		Adapter: noopAdapter{},
		Bus:     bus,
	})
	require.NoError(t, err)
	return c
}

type fakeSink struct {
	updates []Update
	fail    bool
}

func (s *fakeSink) Send(u Update) error {
	if s.fail {
		return assertErr
	}
	s.updates = append(s.updates, u)
	return nil
}

type assertErrType string

func (e assertErrType) Error() string { return string(e) }

var assertErr = assertErrType("sink closed")

func TestPollRecordsHistoryAndBroadcastsMetrics(t *testing.T) {
	bus := eventbus.New()
	reg := connector.NewInMemory(bus)
	c := newTestConnector(t, "c1", bus)
	require.NoError(t, reg.Register(c))

	m := New(Config{Registry: reg, Bus: bus})
	sink := &fakeSink{}
	m.AddSink(sink)

	m.poll(context.Background())

	hist := m.History("c1")
	require.Len(t, hist, 1)
	assert.Equal(t, "c1", hist[0].ConnectorID)

	require.Len(t, sink.updates, 1)
	assert.Equal(t, UpdateMetrics, sink.updates[0].Type)
}

func TestHistoryIsBoundedTo100(t *testing.T) {
	bus := eventbus.New()
	reg := connector.NewInMemory(bus)
	c := newTestConnector(t, "c1", bus)
	require.NoError(t, reg.Register(c))

	m := New(Config{Registry: reg, Bus: bus})
	for i := 0; i < 150; i++ {
		m.poll(context.Background())
	}

	assert.Len(t, m.History("c1"), historyLimit)
}

func TestBroadcastDropsFailingSink(t *testing.T) {
	bus := eventbus.New()
	reg := connector.NewInMemory(bus)
	c := newTestConnector(t, "c1", bus)
	require.NoError(t, reg.Register(c))

	m := New(Config{Registry: reg, Bus: bus})
	bad := &fakeSink{fail: true}
	good := &fakeSink{}
	m.AddSink(bad)
	m.AddSink(good)

	m.poll(context.Background())
	m.poll(context.Background())

	assert.Empty(t, bad.updates)
	assert.Len(t, good.updates, 2)
}

func TestStatusChangeIsBroadcast(t *testing.T) {
	bus := eventbus.New()
	reg := connector.NewInMemory(bus)
	c := newTestConnector(t, "c1", bus)
	require.NoError(t, reg.Register(c))

	m := New(Config{Registry: reg, Bus: bus})
	sink := &fakeSink{}
	m.AddSink(sink)

	c.SetStatus(domain.StatusError, "boom")

	require.Len(t, sink.updates, 1)
	assert.Equal(t, UpdateStatusChange, sink.updates[0].Type)
}

func TestKeepAliveBroadcastsPeriodically(t *testing.T) {
	bus := eventbus.New()
	reg := connector.NewInMemory(bus)
	m := New(Config{Registry: reg, Bus: bus, KeepAliveInterval: 10 * time.Millisecond, PollInterval: time.Hour})
	sink := &fakeSink{}
	m.AddSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(35 * time.Millisecond)
	cancel()
	m.Stop()

	assert.NotEmpty(t, sink.updates)
	assert.Equal(t, UpdateKeepAlive, sink.updates[0].Type)
}
