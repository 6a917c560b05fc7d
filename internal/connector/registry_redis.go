package connector

import (
	"context"
	"fmt"

	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// RedisBacked wraps InMemory — the live *Connector objects (goroutines,
// open sockets) stay in-process, there's no way to serialize those — and
// additionally mirrors the org/type indexes into Redis, grounded on
// core.RedisRegistry's capabilities/names/types set-index pattern, so the
// set of known connector ids survives a process restart even though the
// live objects themselves don't. Bootstrap re-hydrates connectors from the
// Store (which is durable) and re-registers them; this index just lets an
// operator or a second process answer "what connector ids exist" without
// reaching into the first process.
type RedisBacked struct {
	*InMemory
	client    *core.RedisClient
	namespace string
}

// NewRedisBacked constructs a RedisBacked registry. client should be opened
// against platform.RedisDBRegistry.
func NewRedisBacked(client *core.RedisClient, bus *eventbus.Bus) *RedisBacked {
	return &RedisBacked{InMemory: NewInMemory(bus), client: client}
}

func orgIndexKey(orgID string) string          { return fmt.Sprintf("index:org:%s", orgID) }
func typeIndexKey(t domain.ConnectorType) string { return fmt.Sprintf("index:type:%s", t) }

func (r *RedisBacked) Register(c *Connector) error {
	if err := r.InMemory.Register(c); err != nil {
		return err
	}
	ctx := context.Background()
	idxKey := r.client.FormatKey(orgIndexKey(c.OrganizationID()))
	if err := r.client.Raw().SAdd(ctx, idxKey, c.ID()).Err(); err != nil {
		return fmt.Errorf("mirror registration for %s: %w", c.ID(), core.ErrStore)
	}
	typeKey := r.client.FormatKey(typeIndexKey(c.Type()))
	return r.client.Raw().SAdd(ctx, typeKey, c.ID()).Err()
}

func (r *RedisBacked) Unregister(id string) error {
	c, ok := r.InMemory.Get(id)
	if !ok {
		return core.ErrConnectorNotFound
	}
	if err := r.InMemory.Unregister(id); err != nil {
		return err
	}
	ctx := context.Background()
	r.client.Raw().SRem(ctx, r.client.FormatKey(orgIndexKey(c.OrganizationID())), id)
	r.client.Raw().SRem(ctx, r.client.FormatKey(typeIndexKey(c.Type())), id)
	return nil
}

// IndexedOrgConnectorIDs returns the connector ids Redis has recorded for
// an organization, independent of what's live in this process — useful for
// an operator tool that wants to know what should be running.
func (r *RedisBacked) IndexedOrgConnectorIDs(ctx context.Context, orgID string) ([]string, error) {
	return r.client.Raw().SMembers(ctx, r.client.FormatKey(orgIndexKey(orgID))).Result()
}

var _ Registry = (*RedisBacked)(nil)
