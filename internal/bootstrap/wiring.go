package bootstrap

import (
	"context"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
)

// deferredSink and deferredStatus break the construction cycle between a
// SourceAdapter (which needs an EventSink/StatusReporter at construction
// time) and the Connector that owns it (which needs the already-built
// adapter). Bootstrap builds the adapter first against one of these empty
// shells, constructs the Connector, then points the shell at it.
type deferredSink struct {
	target connector.EventSink
}

func (d *deferredSink) Emit(ctx context.Context, event domain.RawEvent) error {
	if d.target == nil {
		return nil
	}
	return d.target.Emit(ctx, event)
}

type deferredStatus struct {
	target connector.StatusReporter
}

func (d *deferredStatus) SetStatus(status domain.ConnectorStatus, message string) {
	if d.target != nil {
		d.target.SetStatus(status, message)
	}
}
