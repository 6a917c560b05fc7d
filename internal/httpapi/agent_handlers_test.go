package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/adapters/agent"
	"github.com/quayside-soc/ingestcore/internal/domain"
)

type fakeSink struct{}

func (fakeSink) Emit(ctx context.Context, event domain.RawEvent) error { return nil }

func newTestHandlers(t *testing.T) (*AgentHandlers, *agent.Adapter) {
	t.Helper()
	a := agent.New(agent.Config{
		ConnectorID:    "c1",
		OrganizationID: "org1",
		Configuration: domain.AgentConfig{
			RegistrationEnabled: true, OrganizationKey: "secret-key",
			AgentHeartbeatInterval: 60, BatchSize: 100, BatchTimeLimit: 120,
		},
		Sink: fakeSink{},
	})
	h := NewAgentHandlers([]byte("process-secret"), nil)
	h.RegisterAdapter("c1", a)
	return h, a
}

func TestHandleRegisterIssuesToken(t *testing.T) {
	h, _ := newTestHandlers(t)
	body, _ := json.Marshal(registerRequest{OrganizationKey: "secret-key", Hostname: "host1"})
	req := httptest.NewRequest(http.MethodPost, "/api/agents/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.handleRegister(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, domain.AgentStatusActive, resp.Status)
}

func TestHandleRegisterRejectsUnknownOrgKey(t *testing.T) {
	h, _ := newTestHandlers(t)
	body, _ := json.Marshal(registerRequest{OrganizationKey: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/agents/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.handleRegister(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHeartbeatRequiresBearerToken(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := NewRouter(nil)
	h.Mount(router)

	req := httptest.NewRequest(http.MethodPost, "/api/agents/heartbeat", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHeartbeatWithValidTokenSucceeds(t *testing.T) {
	h, a := newTestHandlers(t)
	rec1, err := a.RegisterAgent(context.Background(), agent.RegistrationRequest{OrganizationKey: "secret-key"})
	require.NoError(t, err)
	token, err := issueAgentToken([]byte("process-secret"), rec1.AgentID, "c1")
	require.NoError(t, err)

	router := NewRouter(nil)
	h.Mount(router)

	body, _ := json.Marshal(heartbeatRequest{Metrics: map[string]interface{}{"cpu": 0.2}})
	req := httptest.NewRequest(http.MethodPost, "/api/agents/heartbeat", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
