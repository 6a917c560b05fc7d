// Package bootstrap wires every component the ingestion core depends on into
// one running process (spec.md §4, module 10): it loads connector
// configuration, constructs the registry/queue/pipeline/scheduler/monitor/
// HTTP surface, binds each connector's adapter to the queue, and owns
// startup and graceful shutdown ordering.
package bootstrap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/store"
)

// connectorFile is the on-disk shape of the static connector configuration
// file bootstrap seeds the store from at startup (spec.md §6: connector
// configuration is an opaque record; this is the one place it gets a
// concrete file format).
type connectorFile struct {
	Connectors []connectorFileEntry `yaml:"connectors"`
}

type connectorFileEntry struct {
	ID             string                 `yaml:"id"`
	OrganizationID string                 `yaml:"organizationId"`
	Name           string                 `yaml:"name"`
	Vendor         string                 `yaml:"vendor"`
	IsActive       bool                   `yaml:"isActive"`
	Configuration  domain.ConnectorConfig `yaml:"configuration"`
}

// LoadConnectorFile reads a YAML file of connector definitions and returns
// the store rows bootstrap seeds an empty Store with. Returns an empty slice
// (not an error) if path is "" so a fresh deployment can start with zero
// connectors and add them later through the registry's own API.
func LoadConnectorFile(path string) ([]store.ConnectorRow, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read connector file %s: %w", path, err)
	}
	var parsed connectorFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse connector file %s: %w", path, err)
	}
	rows := make([]store.ConnectorRow, 0, len(parsed.Connectors))
	for _, e := range parsed.Connectors {
		if err := e.Configuration.Validate(); err != nil {
			return nil, fmt.Errorf("connector %s: %w", e.ID, err)
		}
		rows = append(rows, store.ConnectorRow{
			ID:             e.ID,
			OrganizationID: e.OrganizationID,
			Name:           e.Name,
			Vendor:         e.Vendor,
			Type:           e.Configuration.Type,
			IsActive:       e.IsActive,
			Status:         domain.StatusPaused,
			Configuration:  e.Configuration,
		})
	}
	return rows, nil
}
