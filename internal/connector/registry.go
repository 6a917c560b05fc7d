package connector

import (
	"sync"

	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// Registry is the process-wide index of live connectors (spec.md §4.1).
// Point lookup is O(1); org/type lookups are linear scans, matching the
// spec's stated complexity.
type Registry interface {
	Register(c *Connector) error
	Unregister(id string) error
	Get(id string) (*Connector, bool)
	All() []*Connector
	ByOrganization(orgID string) []*Connector
	ByType(t domain.ConnectorType) []*Connector
}

// InMemory is a Registry backed by a mutex-protected map, the default
// backend for the common single-process deployment (spec.md §1 Non-goals:
// no multi-node coordination).
type InMemory struct {
	mu   sync.RWMutex
	byID map[string]*Connector
	bus  *eventbus.Bus
}

// NewInMemory constructs an empty registry. bus may be nil, in which case
// registration events are simply not published (useful in unit tests that
// don't care about the bus).
func NewInMemory(bus *eventbus.Bus) *InMemory {
	return &InMemory{byID: make(map[string]*Connector), bus: bus}
}

func (r *InMemory) Register(c *Connector) error {
	r.mu.Lock()
	if _, exists := r.byID[c.ID()]; exists {
		r.mu.Unlock()
		return core.ErrAlreadyRegistered
	}
	r.byID[c.ID()] = c
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(eventbus.TopicConnectorRegistered, ConnectorRegisteredEvent{Connector: c})
	}
	return nil
}

func (r *InMemory) Unregister(id string) error {
	r.mu.Lock()
	c, exists := r.byID[id]
	if !exists {
		r.mu.Unlock()
		return core.ErrConnectorNotFound
	}
	delete(r.byID, id)
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(eventbus.TopicConnectorUnregistered, ConnectorRegisteredEvent{Connector: c})
	}
	return nil
}

func (r *InMemory) Get(id string) (*Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

func (r *InMemory) All() []*Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connector, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

func (r *InMemory) ByOrganization(orgID string) []*Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connector
	for _, c := range r.byID {
		if c.OrganizationID() == orgID {
			out = append(out, c)
		}
	}
	return out
}

func (r *InMemory) ByType(t domain.ConnectorType) []*Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connector
	for _, c := range r.byID {
		if c.Type() == t {
			out = append(out, c)
		}
	}
	return out
}

var _ Registry = (*InMemory)(nil)
