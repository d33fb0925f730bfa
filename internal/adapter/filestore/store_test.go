package filestore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

var testTime = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

func TestStore_WriteArtifact(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	a := domain.NewArtifact("SP.POP.TOTL", testTime, domain.LatestValues{
		"FRA": {Year: 2017, Value: 5},
		"DEU": {Year: 2021, Value: 83.2},
	})
	require.NoError(t, s.WriteArtifact(context.Background(), a))

	data, err := os.ReadFile(filepath.Join(dir, "latest", "SP.POP.TOTL.json"))
	require.NoError(t, err)

	want := `{
  "metricId": "SP.POP.TOTL",
  "updatedAt": "2024-05-01T06:00:00Z",
  "values": {
    "DEU": {
      "year": 2021,
      "value": 83.2
    },
    "FRA": {
      "year": 2017,
      "value": 5
    }
  }
}
`
	assert.Equal(t, want, string(data))

	got, err := s.ReadArtifact("SP.POP.TOTL")
	require.NoError(t, err)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("artifact mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_OverwritesArtifact(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()

	require.NoError(t, s.WriteArtifact(ctx, domain.NewArtifact("co2", testTime, domain.LatestValues{"USA": {Year: 2020, Value: 1}})))
	require.NoError(t, s.WriteArtifact(ctx, domain.NewArtifact("co2", testTime, domain.LatestValues{"CHN": {Year: 2021, Value: 2}})))

	got, err := s.ReadArtifact("co2")
	require.NoError(t, err)
	assert.Equal(t, domain.LatestValues{"CHN": {Year: 2021, Value: 2}}, got.Values)

	entries, err := os.ReadDir(filepath.Join(dir, "latest"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStore_Manifest(t *testing.T) {
	s := New(t.TempDir())

	m := domain.Manifest{
		UpdatedAt: testTime,
		Metrics: []domain.MetricDescriptor{
			{ID: "SP.POP.TOTL", Name: "Population", Unit: "people", Source: domain.SourceWorldBank},
			{ID: "co2", Name: "CO₂ (total)", Unit: "million tonnes", Source: domain.SourceOWID},
		},
		Notes: domain.DefaultManifestNotes,
	}
	require.NoError(t, s.WriteManifest(context.Background(), m))

	data, err := os.ReadFile(s.ManifestPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source": "owid"`)
	assert.Contains(t, string(data), "CO₂ (total)")

	got, err := s.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestStore_NoHTMLEscaping(t *testing.T) {
	s := New(t.TempDir())
	m := domain.Manifest{Metrics: []domain.MetricDescriptor{{ID: "x", Name: "R&D <spend>", Unit: "%", Source: domain.SourceWorldBank}}}
	require.NoError(t, s.WriteManifest(context.Background(), m))

	data, err := os.ReadFile(s.ManifestPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "R&D <spend>")
}

func TestStore_InvalidMetricID(t *testing.T) {
	s := New(t.TempDir())

	for _, id := range []string{"", "../meta", "a/b", ".hidden"} {
		t.Run(id, func(t *testing.T) {
			_, err := s.ReadArtifact(id)
			require.ErrorIs(t, err, ErrInvalidMetricID)

			err = s.WriteArtifact(context.Background(), domain.MetricArtifact{MetricID: id})
			require.ErrorIs(t, err, ErrInvalidMetricID)
		})
	}
}

func TestStore_ReadMissing(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.ReadManifest()
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "meta.json")
}
