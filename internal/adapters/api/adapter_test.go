package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/domain"
)

type fakeSink struct {
	events []domain.RawEvent
}

func (s *fakeSink) Emit(ctx context.Context, event domain.RawEvent) error {
	s.events = append(s.events, event)
	return nil
}

type scriptedClient struct {
	calls []func(cursor domain.CursorState) ([]Item, string, error)
	index int
}

func (c *scriptedClient) FetchBatch(ctx context.Context, endpoint string, cursor domain.CursorState) ([]Item, string, error) {
	fn := c.calls[c.index]
	if c.index < len(c.calls)-1 {
		c.index++
	}
	return fn(cursor)
}

func TestCursorAdvancesWithNextTokenThenFallsBackToTimestamp(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC)

	client := &scriptedClient{calls: []func(domain.CursorState) ([]Item, string, error){
		func(domain.CursorState) ([]Item, string, error) {
			return []Item{{Timestamp: t1}, {Timestamp: t2}}, "T1", nil
		},
		func(domain.CursorState) ([]Item, string, error) {
			return nil, "", nil
		},
	}}

	sink := &fakeSink{}
	a := New(Config{Client: client, Configuration: domain.APIConfig{Endpoint: "https://example.com"}, Sink: sink})

	require.NoError(t, a.RunOnce(context.Background()))
	assert.Equal(t, "T1", a.Cursor().NextToken)
	assert.Equal(t, t2, a.Cursor().LastEventTimestamp)
	assert.Len(t, sink.events, 2)

	require.NoError(t, a.RunOnce(context.Background()))
	assert.Empty(t, a.Cursor().NextToken)
	assert.Equal(t, t2, a.Cursor().LastEventTimestamp)
}

func TestPartialEndpointFailureDoesNotAbortOthers(t *testing.T) {
	calls := 0
	client := &multiEndpointClient{
		fn: func(endpoint string, cursor domain.CursorState) ([]Item, string, error) {
			calls++
			if endpoint == "bad" {
				return nil, "", assertErr
			}
			return []Item{{Timestamp: time.Now()}}, "", nil
		},
	}
	sink := &fakeSink{}
	a := New(Config{
		Client: client,
		Configuration: domain.APIConfig{
			Endpoint: "https://example.com",
			Endpoints: map[string]domain.EndpointConfig{
				"good": {Path: "/good"},
				"bad":  {Path: "/bad"},
			},
		},
		Sink: sink,
	})

	err := a.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Len(t, sink.events, 1)
	assert.Equal(t, 2, calls)
}

var assertErr = assertError("endpoint exploded")

type assertError string

func (e assertError) Error() string { return string(e) }

type multiEndpointClient struct {
	fn func(endpoint string, cursor domain.CursorState) ([]Item, string, error)
}

func (c *multiEndpointClient) FetchBatch(ctx context.Context, endpoint string, cursor domain.CursorState) ([]Item, string, error) {
	return c.fn(endpoint, cursor)
}
