// Package connector implements the connector contract (spec.md §4.1): the
// lifecycle state machine every source adapter shares, the auto-quarantine
// rule, and the process-wide registry that indexes live connectors.
package connector

import (
	"context"

	"github.com/quayside-soc/ingestcore/internal/domain"
)

// SourceAdapter is the narrow capability every per-protocol strategy
// implements (spec.md §4.2). A Connector owns exactly one SourceAdapter.
type SourceAdapter interface {
	// Start acquires whatever resources the adapter needs (a listener
	// socket, a poller's first connection check) and begins emitting
	// events through the EventSink it was constructed with.
	Start(ctx context.Context) error

	// Stop releases those resources. Must be safe to call from any state,
	// including before Start or after a previous Stop.
	Stop(ctx context.Context) error

	// RunOnce performs one unit of work: a poll for pull adapters, a
	// stats refresh for push adapters. Returns only when the unit of
	// work is complete or has failed.
	RunOnce(ctx context.Context) error

	// TestConnection is a side-effect-free probe. Must never mutate
	// cursor state.
	TestConnection(ctx context.Context) (ok bool, message string, err error)
}

// EventSink is how an adapter hands a freshly observed event to the rest
// of the system. The concrete sink (bootstrap-wired to the job queue)
// enqueues the event rather than processing it inline, per spec.md §5:
// "any event [adapters] produce is enqueued to the job queue rather than
// processed inline."
type EventSink interface {
	Emit(ctx context.Context, event domain.RawEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event domain.RawEvent) error

func (f EventSinkFunc) Emit(ctx context.Context, event domain.RawEvent) error { return f(ctx, event) }

// StatusReporter is the narrow capability an adapter uses to report a
// failure back onto its connector's status machine, without depending on
// the full Connector type. *Connector satisfies this via SetStatus.
type StatusReporter interface {
	SetStatus(status domain.ConnectorStatus, message string)
}
