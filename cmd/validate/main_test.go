package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/indicator-grid-etl/internal/adapter/filestore"
	"github.com/couchcryptid/indicator-grid-etl/internal/catalog"
	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

var (
	builtAt    = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	population = domain.MetricDescriptor{ID: "SP.POP.TOTL", Name: "Population", Unit: "people", Source: domain.SourceWorldBank}
	co2        = domain.MetricDescriptor{ID: "co2", Name: "CO₂ (total)", Unit: "million tonnes", Source: domain.SourceOWID}
)

func writeBuild(t *testing.T, artifacts ...domain.MetricArtifact) string {
	t.Helper()
	dir := t.TempDir()
	store := filestore.New(dir)
	ctx := context.Background()
	for _, a := range artifacts {
		require.NoError(t, store.WriteArtifact(ctx, a))
	}
	require.NoError(t, store.WriteManifest(ctx, domain.Manifest{
		UpdatedAt: builtAt,
		Metrics:   []domain.MetricDescriptor{population, co2},
		Notes:     domain.DefaultManifestNotes,
	}))
	return dir
}

func TestRun_Passes(t *testing.T) {
	dir := writeBuild(t,
		domain.NewArtifact(population.ID, builtAt, domain.LatestValues{"FRA": {Year: 2017, Value: 5}}),
		domain.NewArtifact(co2.ID, builtAt, domain.LatestValues{"USA": {Year: 2020, Value: 4713}}),
	)

	var out bytes.Buffer
	code := run(&out, dir, &catalog.Catalog{Metrics: []domain.MetricDescriptor{population, co2}})

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "2 in manifest, 2 artifacts, 2 country values")
}

func TestRun_MissingArtifact(t *testing.T) {
	dir := writeBuild(t,
		domain.NewArtifact(population.ID, builtAt, domain.LatestValues{"FRA": {Year: 2017, Value: 5}}),
	)

	var out bytes.Buffer
	code := run(&out, dir, nil)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "--- Artifact presence ---")
	assert.Contains(t, out.String(), "co2")
}

func TestRun_MixedTimestampsAndBadCodes(t *testing.T) {
	dir := writeBuild(t,
		domain.NewArtifact(population.ID, builtAt.Add(-24*time.Hour), domain.LatestValues{"FRA": {Year: 2017, Value: 5}}),
		domain.NewArtifact(co2.ID, builtAt, domain.LatestValues{"OWID_WRL": {Year: 2020, Value: 1}}),
	)

	var out bytes.Buffer
	code := run(&out, dir, nil)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "--- Single build timestamp ---")
	assert.Contains(t, out.String(), `"OWID_WRL" is not an ISO-3 country code`)
}

func TestRun_CatalogDrift(t *testing.T) {
	dir := writeBuild(t,
		domain.NewArtifact(population.ID, builtAt, nil),
		domain.NewArtifact(co2.ID, builtAt, nil),
	)

	var out bytes.Buffer
	code := run(&out, dir, &catalog.Catalog{Metrics: []domain.MetricDescriptor{population}})

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "--- Catalog alignment ---")
}

func TestRun_NoManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "latest"), 0o755))

	var out bytes.Buffer
	assert.Equal(t, 1, run(&out, dir, nil))
	assert.Contains(t, out.String(), "FATAL")
}
