package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	"github.com/quayside-soc/ingestcore/internal/monitor"
)

func TestHealthzReturnsOK(t *testing.T) {
	bus := eventbus.New()
	m := monitor.New(monitor.Config{Registry: connector.NewInMemory(bus), Bus: bus})
	h := NewHealthHandlers(m)
	router := NewRouter(nil)
	h.Mount(router)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsReturnsJSON(t *testing.T) {
	bus := eventbus.New()
	m := monitor.New(monitor.Config{Registry: connector.NewInMemory(bus), Bus: bus})
	h := NewHealthHandlers(m)
	router := NewRouter(nil)
	h.Mount(router)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
