package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/quayside-soc/ingestcore/internal/domain"
)

// HTTPClient is the default SourceClient: a generic poller against a JSON
// REST endpoint that returns a page of items plus a resumption token
// (spec.md §1 names the concrete vendor SDK out of scope; this is the
// fallback every connector gets unless bootstrap wires a vendor-specific
// SourceClient in its place).
type HTTPClient struct {
	httpClient *http.Client
	config     domain.APIConfig
}

// NewHTTPClient builds a SourceClient over config.Endpoint, sending
// config.APIKey in config.APIKeyHeader (or "Authorization" if unset) on
// every request.
func NewHTTPClient(config domain.APIConfig) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     config,
	}
}

// apiResponse is the expected shape of the upstream's JSON page: a list of
// opaque records plus an optional resumption token.
type apiResponse struct {
	Items     []apiItem `json:"items"`
	NextToken string    `json:"nextToken"`
}

type apiItem struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Tags      []string               `json:"tags"`
	Data      map[string]interface{} `json:"data"`
}

// FetchBatch implements SourceClient by calling the configured endpoint (or
// a named sub-application path from Endpoints) with the cursor's resumption
// token as a query parameter.
func (c *HTTPClient) FetchBatch(ctx context.Context, endpoint string, cursor domain.CursorState) ([]Item, string, error) {
	target := c.config.Endpoint
	if ep, ok := c.config.Endpoints[endpoint]; ok && ep.Path != "" {
		target = target + ep.Path
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, "", fmt.Errorf("invalid endpoint %q: %w", target, err)
	}
	q := u.Query()
	if cursor.NextToken != "" {
		q.Set("cursor", cursor.NextToken)
	} else if !cursor.LastEventTimestamp.IsZero() {
		q.Set("since", cursor.LastEventTimestamp.Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	header := c.config.APIKeyHeader
	if header == "" {
		header = "Authorization"
	}
	if c.config.APIKey != "" {
		req.Header.Set(header, c.config.APIKey)
	}
	for k, v := range c.config.DefaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", u.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", u.String(), resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", fmt.Errorf("decode response from %s: %w", u.String(), err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		items = append(items, Item{Timestamp: it.Timestamp, Type: it.Type, Payload: it.Data, Tags: it.Tags})
	}
	return items, parsed.NextToken, nil
}

var _ SourceClient = (*HTTPClient)(nil)
