package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	"github.com/quayside-soc/ingestcore/internal/store"
)

type fakeAdapter struct {
	startErr   error
	runOnceErr error
	started    bool
}

func (f *fakeAdapter) Start(ctx context.Context) error {
	f.started = true
	return f.startErr
}
func (f *fakeAdapter) Stop(ctx context.Context) error { f.started = false; return nil }
func (f *fakeAdapter) RunOnce(ctx context.Context) error { return f.runOnceErr }
func (f *fakeAdapter) TestConnection(ctx context.Context) (bool, string, error) {
	return true, "ok", nil
}

func newTestConnector(t *testing.T, adapter SourceAdapter, bus *eventbus.Bus, st *store.InMemory) *Connector {
	t.Helper()
	c, err := New(Config{
		ID:             "c1",
		OrganizationID: "org1",
		Name:           "test",
		Type:           domain.ConnectorTypeWebhook,
		Configuration: domain.ConnectorConfig{
			Type:    domain.ConnectorTypeWebhook,
			Webhook: &domain.WebhookConfig{Path: "/hook"},
		},
		Adapter: adapter,
		Bus:     bus,
		Store:   st,
	})
	require.NoError(t, err)
	return c
}

func TestStartIsIdempotent(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestConnector(t, adapter, nil, nil)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, domain.StatusActive, c.Status())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, domain.StatusActive, c.Status())
}

func TestAutoQuarantineAfterFiveErrors(t *testing.T) {
	bus := eventbus.New()
	var disabledEvents int
	bus.Subscribe(eventbus.TopicAutoDisabled, func(e eventbus.Event) { disabledEvents++ })

	c := newTestConnector(t, &fakeAdapter{}, bus, nil)

	for i := 0; i < 5; i++ {
		c.SetStatus(domain.StatusError, "boom")
	}

	assert.Equal(t, domain.StatusDisabled, c.Status())
	assert.Equal(t, 1, disabledEvents)
}

func TestSetStatusChangeEmitsExactlyOnce(t *testing.T) {
	bus := eventbus.New()
	var changes int
	bus.Subscribe(eventbus.TopicStatusChange, func(e eventbus.Event) { changes++ })

	c := newTestConnector(t, &fakeAdapter{}, bus, nil)
	c.SetStatus(domain.StatusActive, "")
	c.SetStatus(domain.StatusActive, "") // no-op, same status

	assert.Equal(t, 1, changes)
}

func TestActiveResetsErrorCount(t *testing.T) {
	c := newTestConnector(t, &fakeAdapter{}, nil, nil)
	c.SetStatus(domain.StatusError, "x")
	c.SetStatus(domain.StatusError, "x")
	assert.Equal(t, 2, c.ErrorCount())

	c.SetStatus(domain.StatusActive, "")
	assert.Equal(t, 0, c.ErrorCount())
	assert.Empty(t, c.LastError())
}

func TestCursorMonotone(t *testing.T) {
	c := newTestConnector(t, &fakeAdapter{}, nil, nil)
	base := time.Now()

	future := domain.CursorState{LastEventTimestamp: base.Add(1000 * time.Second)}
	c.AdvanceCursor(future)
	assert.Equal(t, future.LastEventTimestamp, c.CursorState().LastEventTimestamp)

	past := domain.CursorState{LastEventTimestamp: base.Add(500 * time.Second)}
	c.AdvanceCursor(past)
	assert.Equal(t, future.LastEventTimestamp, c.CursorState().LastEventTimestamp, "cursor must not rewind")
}

func TestUpdateConfigCannotChangeType(t *testing.T) {
	c := newTestConnector(t, &fakeAdapter{}, nil, nil)
	err := c.UpdateConfig(context.Background(), func(cfg *domain.ConnectorConfig) {
		cfg.Type = domain.ConnectorTypeAPI
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectorTypeWebhook, c.Config().Type, "type must stay immutable")
}
