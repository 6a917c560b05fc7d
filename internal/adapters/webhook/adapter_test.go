package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

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

type fakeRouter struct {
	handlers map[string]http.Handler
}

func (r *fakeRouter) Handle(path string, h http.Handler) {
	if r.handlers == nil {
		r.handlers = map[string]http.Handler{}
	}
	r.handlers[path] = h
}

func TestStartRegistersPathOnRouter(t *testing.T) {
	router := &fakeRouter{}
	a := New(Config{
		Configuration: domain.WebhookConfig{Path: "/hooks/gh"},
		Sink:          &fakeSink{},
		Router:        router,
	})
	require.NoError(t, a.Start(context.Background()))
	assert.Contains(t, router.handlers, "/hooks/gh")
}

func TestHandleAcceptsUnsignedWhenNotRequired(t *testing.T) {
	sink := &fakeSink{}
	a := New(Config{Configuration: domain.WebhookConfig{Path: "/hooks/gh"}, Sink: sink})

	req := httptest.NewRequest(http.MethodPost, "/hooks/gh", bytes.NewBufferString(`{"type":"push"}`))
	rec := httptest.NewRecorder()
	a.handle(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "push", sink.events[0].Type)
}

func TestHandleRejectsBadSignature(t *testing.T) {
	sink := &fakeSink{}
	a := New(Config{
		Configuration: domain.WebhookConfig{
			Path: "/hooks/gh", VerifySignature: true,
			SignatureHeader: "X-Hub-Signature", SignatureSecret: "shh",
		},
		Sink: sink,
	})

	req := httptest.NewRequest(http.MethodPost, "/hooks/gh", bytes.NewBufferString(`{}`))
	req.Header.Set("X-Hub-Signature", "wrong")
	rec := httptest.NewRecorder()
	a.handle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "error", sink.events[0].Type)
	assert.Equal(t, map[string]interface{}{"reason": "invalid signature"}, sink.events[0].Payload)
}

func TestHandleAcceptsValidSignature(t *testing.T) {
	sink := &fakeSink{}
	secret := "shh"
	body := []byte(`{"type":"ping"}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	a := New(Config{
		Configuration: domain.WebhookConfig{
			Path: "/hooks/gh", VerifySignature: true,
			SignatureHeader: "X-Hub-Signature", SignatureSecret: secret,
		},
		Sink: sink,
	})

	req := httptest.NewRequest(http.MethodPost, "/hooks/gh", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature", sig)
	rec := httptest.NewRecorder()
	a.handle(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sink.events, 1)
}
