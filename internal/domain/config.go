package domain

import (
	"fmt"
	"time"
)

// ConnectorConfig is the tagged variant discriminated on Type, per design
// note §9: the source treats configuration as an open record, this
// reimplementation validates the per-type payload at load time instead.
type ConnectorConfig struct {
	Type            ConnectorType `json:"type" yaml:"type"`
	PollIntervalSec int           `json:"pollIntervalSec,omitempty" yaml:"pollIntervalSec,omitempty"`
	Credentials     map[string]interface{} `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Port            int           `json:"port,omitempty" yaml:"port,omitempty"`
	Protocol        string        `json:"protocol,omitempty" yaml:"protocol,omitempty"`

	API     *APIConfig     `json:"api,omitempty" yaml:"api,omitempty"`
	Syslog  *SyslogConfig  `json:"syslog,omitempty" yaml:"syslog,omitempty"`
	Agent   *AgentConfig   `json:"agent,omitempty" yaml:"agent,omitempty"`
	Webhook *WebhookConfig `json:"webhook,omitempty" yaml:"webhook,omitempty"`

	// Unknown is never filled by the JSON or YAML decoders (both tags are
	// "-"); keys that belong to none of the known variants are dropped when
	// a configuration is decoded.
	Unknown map[string]interface{} `json:"-" yaml:"-"`
}

// EndpointConfig describes one named API endpoint an API connector can call.
type EndpointConfig struct {
	Path         string `json:"path" yaml:"path"`
	Method       string `json:"method" yaml:"method"`
	BodyTemplate string `json:"bodyTemplate,omitempty" yaml:"bodyTemplate,omitempty"`
}

// CursorState is the opaque resumption token an API (pull) adapter persists
// between runs. NextToken is preserved verbatim when the upstream returns
// one; LastEventTimestamp is the ground-truth fallback cursor (see spec.md
// §9 on CloudWatch's nextForwardToken not truly being a cursor).
type CursorState struct {
	NextToken          string    `json:"nextToken,omitempty"`
	LastEventTimestamp time.Time `json:"lastEventTimestamp,omitempty"`
}

// APIConfig is the payload for ConnectorTypeAPI.
type APIConfig struct {
	Endpoint        string                    `json:"endpoint" yaml:"endpoint"`
	APIKey          string                    `json:"apiKey" yaml:"apiKey"`
	APIKeyHeader    string                    `json:"apiKeyHeader" yaml:"apiKeyHeader"`
	DefaultHeaders  map[string]string         `json:"defaultHeaders,omitempty" yaml:"defaultHeaders,omitempty"`
	Endpoints       map[string]EndpointConfig `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	PollingInterval int                       `json:"pollingInterval" yaml:"pollingInterval"`
	State           *CursorState              `json:"state,omitempty" yaml:"state,omitempty"`
}

// Validate checks the API payload is complete enough to start.
func (c *APIConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("api configuration missing")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("api.endpoint is required")
	}
	return nil
}

// SyslogFiltering is an allow-list; events outside both lists (when
// non-empty) are dropped before emission.
type SyslogFiltering struct {
	Facilities []int `json:"facilities,omitempty" yaml:"facilities,omitempty"`
	Severities []int `json:"severities,omitempty" yaml:"severities,omitempty"`
}

// SyslogConfig is the payload for ConnectorTypeSyslog.
type SyslogConfig struct {
	Protocol  string           `json:"protocol" yaml:"protocol"` // udp | tcp | tls
	Host      string           `json:"host" yaml:"host"`
	Port      int              `json:"port" yaml:"port"`
	Filtering *SyslogFiltering `json:"filtering,omitempty" yaml:"filtering,omitempty"`
}

func (c *SyslogConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("syslog configuration missing")
	}
	switch c.Protocol {
	case "udp", "tcp", "tls":
	default:
		return fmt.Errorf("syslog.protocol must be udp, tcp, or tls, got %q", c.Protocol)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("syslog.port %d out of range", c.Port)
	}
	return nil
}

// AgentConfig is the payload for ConnectorTypeAgent.
type AgentConfig struct {
	RegistrationEnabled          bool     `json:"registrationEnabled" yaml:"registrationEnabled"`
	RegistrationRequiresApproval bool     `json:"registrationRequiresApproval,omitempty" yaml:"registrationRequiresApproval,omitempty"`
	AgentHeartbeatInterval       int      `json:"agentHeartbeatInterval" yaml:"agentHeartbeatInterval"`
	BatchSize                    int      `json:"batchSize" yaml:"batchSize"`
	BatchTimeLimit               int      `json:"batchTimeLimit" yaml:"batchTimeLimit"`
	Capabilities                 []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	OrganizationKey              string   `json:"organizationKey" yaml:"organizationKey"`
}

func (c *AgentConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("agent configuration missing")
	}
	if c.OrganizationKey == "" {
		return fmt.Errorf("agent.organizationKey is required")
	}
	return nil
}

// applyDefaults fills in the defaults spec.md §6 names.
func (c *AgentConfig) applyDefaults() {
	if c.AgentHeartbeatInterval == 0 {
		c.AgentHeartbeatInterval = 60
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeLimit == 0 {
		c.BatchTimeLimit = 120
	}
}

// WebhookConfig is the payload for ConnectorTypeWebhook.
type WebhookConfig struct {
	Path             string `json:"path" yaml:"path"`
	VerifySignature  bool   `json:"verifySignature" yaml:"verifySignature"`
	SignatureHeader  string `json:"signatureHeader,omitempty" yaml:"signatureHeader,omitempty"`
	SignatureSecret  string `json:"signatureSecret,omitempty" yaml:"signatureSecret,omitempty"`
}

func (c *WebhookConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("webhook configuration missing")
	}
	if len(c.Path) == 0 || c.Path[0] != '/' {
		return fmt.Errorf("webhook.path must start with '/', got %q", c.Path)
	}
	if c.VerifySignature && (c.SignatureHeader == "" || c.SignatureSecret == "") {
		return fmt.Errorf("webhook.verifySignature requires signatureHeader and signatureSecret")
	}
	return nil
}

// Validate dispatches to the type-specific payload's Validate and applies
// shared defaults. Called once at load time; an invalid config means the
// connector refuses to start (ErrConfigInvalid).
func (c *ConnectorConfig) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("unknown connector type %q", c.Type)
	}
	if c.PollIntervalSec == 0 {
		c.PollIntervalSec = 300
	}
	switch c.Type {
	case ConnectorTypeAPI:
		if c.API == nil {
			return fmt.Errorf("connector type api requires an api payload")
		}
		if c.API.PollingInterval == 0 {
			c.API.PollingInterval = 300
		}
		return c.API.Validate()
	case ConnectorTypeSyslog:
		return c.Syslog.Validate()
	case ConnectorTypeAgent:
		if c.Agent != nil {
			c.Agent.applyDefaults()
		}
		return c.Agent.Validate()
	case ConnectorTypeWebhook:
		return c.Webhook.Validate()
	}
	return nil
}
