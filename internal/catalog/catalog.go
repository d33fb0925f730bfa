// Package catalog holds the static list of indicators a build produces.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is an ordered, validated list of metric descriptors. Order is
// significant: it is the build order and the dashboard's default grid order.
type Catalog struct {
	Metrics []domain.MetricDescriptor `yaml:"metrics"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or returns the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog. Unknown keys are rejected so a
// typo in a descriptor fails the build instead of silently dropping a field.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every descriptor and rejects duplicate ids, which would
// make two metrics overwrite the same latest/<id>.json.
func (c *Catalog) Validate() error {
	if len(c.Metrics) == 0 {
		return fmt.Errorf("catalog: no metrics")
	}
	seen := make(map[string]struct{}, len(c.Metrics))
	for _, m := range c.Metrics {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("catalog: duplicate metric id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

// Lookup returns the descriptor with the given id.
func (c *Catalog) Lookup(id string) (domain.MetricDescriptor, bool) {
	for _, m := range c.Metrics {
		if m.ID == id {
			return m, true
		}
	}
	return domain.MetricDescriptor{}, false
}

// HasSource reports whether any metric is fetched from src.
func (c *Catalog) HasSource(src domain.Source) bool {
	for _, m := range c.Metrics {
		if m.Source == src {
			return true
		}
	}
	return false
}
