package syslog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/domain"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

type capturingSink struct {
	events []domain.RawEvent
	err    error
}

func (s *capturingSink) Emit(ctx context.Context, event domain.RawEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type capturingStatus struct {
	statuses []domain.ConnectorStatus
	messages []string
}

func (s *capturingStatus) SetStatus(status domain.ConnectorStatus, message string) {
	s.statuses = append(s.statuses, status)
	s.messages = append(s.messages, message)
}

func newTestAdapter(sink *capturingSink, status *capturingStatus, filtering *domain.SyslogFiltering) *Adapter {
	return New(Config{
		Configuration: domain.SyslogConfig{Protocol: "udp", Host: "127.0.0.1", Port: 0, Filtering: filtering},
		Sink:          sink,
		Status:        status,
	})
}

func TestHandleLineEmitsAcceptedMessage(t *testing.T) {
	sink := &capturingSink{}
	a := newTestAdapter(sink, nil, nil)

	a.handleLine("<34>Oct 11 22:14:15 mymachine su[123]: failed login", time.Now(), "10.0.0.1")

	require.Len(t, sink.events, 1)
	assert.Equal(t, "failed login", sink.events[0].Payload["message"])
	assert.Equal(t, 2, sink.events[0].Payload["severity"])
}

func TestHandleLineDropsFilteredSeverity(t *testing.T) {
	sink := &capturingSink{}
	a := newTestAdapter(sink, nil, &domain.SyslogFiltering{Severities: []int{0, 1}})

	a.handleLine("<34>Oct 11 22:14:15 mymachine su[123]: failed login", time.Now(), "10.0.0.1")

	assert.Empty(t, sink.events)
}

func TestHandleLineQueueFullIncrementsErrorStatus(t *testing.T) {
	sink := &capturingSink{err: fmt.Errorf("wrap: %w", core.ErrQueueFull)}
	status := &capturingStatus{}
	a := newTestAdapter(sink, status, nil)

	a.handleLine("<34>Oct 11 22:14:15 mymachine su[123]: failed login", time.Now(), "10.0.0.1")

	require.Len(t, status.statuses, 1)
	assert.Equal(t, domain.StatusError, status.statuses[0])
}

func TestHandleLineIgnoresEmptyAndUnparseable(t *testing.T) {
	sink := &capturingSink{}
	a := newTestAdapter(sink, nil, nil)

	a.handleLine("", time.Now(), "10.0.0.1")
	a.handleLine("garbage no priority", time.Now(), "10.0.0.1")

	assert.Empty(t, sink.events)
}
