package domain

import (
	"fmt"
	"time"
)

// Source identifies the upstream provider an indicator is fetched from.
type Source string

const (
	SourceWorldBank Source = "worldbank"
	SourceOWID      Source = "owid"
)

// Valid reports whether s is a known provider.
func (s Source) Valid() bool {
	switch s {
	case SourceWorldBank, SourceOWID:
		return true
	default:
		return false
	}
}

// MetricDescriptor describes one indicator in the catalog. For World Bank
// metrics ID is the indicator code; for OWID metrics it is the CSV column name.
type MetricDescriptor struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Unit   string `json:"unit" yaml:"unit"`
	Source Source `json:"source" yaml:"source"`
}

// Validate checks that the descriptor carries everything the build needs.
func (m MetricDescriptor) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("metric descriptor: empty id")
	}
	if m.Name == "" {
		return fmt.Errorf("metric %q: empty name", m.ID)
	}
	if !m.Source.Valid() {
		return fmt.Errorf("metric %q: unknown source %q", m.ID, m.Source)
	}
	return nil
}

// Observation is a single validated data point for one country and year.
type Observation struct {
	Country string
	Year    int
	Value   float64
}

// LatestValue is the most recent non-missing observation for one country.
type LatestValue struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// MetricArtifact is the per-metric output file, latest/<metricId>.json.
type MetricArtifact struct {
	MetricID  string       `json:"metricId"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Values    LatestValues `json:"values"`
}

// DefaultManifestNotes is written into meta.json when no override is configured.
const DefaultManifestNotes = "Latest available value per country; built daily by GitHub Actions."

// Manifest is the build-wide index file, meta.json.
type Manifest struct {
	UpdatedAt time.Time          `json:"updatedAt"`
	Metrics   []MetricDescriptor `json:"metrics"`
	Notes     string             `json:"notes"`
}

// NewArtifact builds the artifact for one metric. A nil values map is
// replaced by an empty one so the file always carries a JSON object.
func NewArtifact(metricID string, updatedAt time.Time, values LatestValues) MetricArtifact {
	if values == nil {
		values = LatestValues{}
	}
	return MetricArtifact{MetricID: metricID, UpdatedAt: updatedAt, Values: values}
}
