package httpapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseAgentToken(t *testing.T) {
	secret := []byte("process-secret")
	token, err := issueAgentToken(secret, "agent-1", "c1")
	require.NoError(t, err)

	claims, err := parseAgentToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", claims.AgentID)
	assert.Equal(t, "c1", claims.ConnectorID)
	assert.WithinDuration(t, time.Now().Add(agentTokenLifetime), claims.ExpiresAt.Time, time.Minute)
}

func TestParseAgentTokenRejectsWrongSecret(t *testing.T) {
	token, err := issueAgentToken([]byte("right"), "agent-1", "c1")
	require.NoError(t, err)

	_, err = parseAgentToken([]byte("wrong"), token)
	assert.Error(t, err)
}

func TestParseAgentTokenRejectsUnexpectedAlg(t *testing.T) {
	claims := agentClaims{AgentID: "a", ConnectorID: "c"}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = parseAgentToken([]byte("secret"), signed)
	assert.Error(t, err)
}
