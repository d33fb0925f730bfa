package kafka

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

var updatedAt = time.Date(2024, 5, 1, 6, 0, 0, 123_000_000, time.UTC)

func TestSerializeArtifact(t *testing.T) {
	a := domain.NewArtifact("SP.POP.TOTL", updatedAt, domain.LatestValues{
		"FRA": {Year: 2017, Value: 5},
	})

	msg, err := serializeArtifact(a)
	require.NoError(t, err)

	assert.Equal(t, []byte("SP.POP.TOTL"), msg.Key)
	assert.JSONEq(t, `{
		"metricId": "SP.POP.TOTL",
		"updatedAt": "2024-05-01T06:00:00.123Z",
		"values": {"FRA": {"year": 2017, "value": 5}}
	}`, string(msg.Value))

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("artifact"), msg.Headers[0].Value)
	assert.Equal(t, "metric_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("SP.POP.TOTL"), msg.Headers[1].Value)
	assert.Equal(t, "updated_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2024-05-01T06:00:00.123Z"), msg.Headers[2].Value)
}

func TestSerializeArtifact_NonFiniteValue(t *testing.T) {
	a := domain.NewArtifact("bad", updatedAt, domain.LatestValues{"FRA": {Year: 2017, Value: math.NaN()}})

	_, err := serializeArtifact(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serialize artifact bad")
}

func TestSerializeManifest(t *testing.T) {
	m := domain.Manifest{
		UpdatedAt: updatedAt,
		Metrics:   []domain.MetricDescriptor{{ID: "co2", Name: "CO₂ (total)", Unit: "million tonnes", Source: domain.SourceOWID}},
		Notes:     domain.DefaultManifestNotes,
	}

	msg, err := serializeManifest(m)
	require.NoError(t, err)

	assert.Equal(t, []byte(ManifestKey), msg.Key)
	var got domain.Manifest
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, m.Metrics, got.Metrics)
	assert.Equal(t, m.Notes, got.Notes)
	assert.True(t, m.UpdatedAt.Equal(got.UpdatedAt))

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, []byte("manifest"), msg.Headers[0].Value)
}
