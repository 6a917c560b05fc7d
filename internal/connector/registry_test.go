package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
)

func TestRegistryRegisterEmitsEvent(t *testing.T) {
	bus := eventbus.New()
	var registered []string
	bus.Subscribe(eventbus.TopicConnectorRegistered, func(e eventbus.Event) {
		evt := e.Data.(ConnectorRegisteredEvent)
		registered = append(registered, evt.Connector.ID())
	})

	reg := NewInMemory(bus)
	c := newTestConnector(t, &fakeAdapter{}, bus, nil)
	require.NoError(t, reg.Register(c))

	assert.Equal(t, []string{"c1"}, registered)

	got, ok := reg.Get("c1")
	require.True(t, ok)
	assert.Equal(t, c, got)
}

func TestRegistryDuplicateRegistrationFails(t *testing.T) {
	reg := NewInMemory(nil)
	c := newTestConnector(t, &fakeAdapter{}, nil, nil)
	require.NoError(t, reg.Register(c))
	assert.Error(t, reg.Register(c))
}

func TestRegistryByOrgAndType(t *testing.T) {
	reg := NewInMemory(nil)
	c1 := newTestConnector(t, &fakeAdapter{}, nil, nil)
	require.NoError(t, reg.Register(c1))

	byOrg := reg.ByOrganization("org1")
	require.Len(t, byOrg, 1)

	byType := reg.ByType(domain.ConnectorTypeWebhook)
	require.Len(t, byType, 1)

	assert.Empty(t, reg.ByOrganization("other-org"))
}

func TestRegistryUnregisterNotFound(t *testing.T) {
	reg := NewInMemory(nil)
	assert.Error(t, reg.Unregister("missing"))
}
