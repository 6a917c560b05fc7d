package httpapi

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// agentTokenLifetime is the bearer token validity window for a registered
// agent (spec.md §6: "a one-year token lifetime").
const agentTokenLifetime = 365 * 24 * time.Hour

// agentClaims identifies which agent and connector a bearer token was
// issued for.
type agentClaims struct {
	AgentID     string `json:"agentId"`
	ConnectorID string `json:"connectorId"`
	jwt.RegisteredClaims
}

// issueAgentToken signs a bearer token with the process secret; the token
// is the only credential an agent needs for heartbeat/data/config calls.
func issueAgentToken(secret []byte, agentID, connectorID string) (string, error) {
	now := time.Now()
	claims := agentClaims{
		AgentID:     agentID,
		ConnectorID: connectorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(agentTokenLifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseAgentToken(secret []byte, raw string) (*agentClaims, error) {
	claims := &agentClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}
