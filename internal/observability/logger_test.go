package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Info("wrote artifact", "metric_id", "co2", "countries", 210)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "wrote artifact", entry["msg"])
	assert.Equal(t, "co2", entry["metric_id"])
	assert.EqualValues(t, 210, entry["countries"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "text")

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
	assert.True(t, newLogger(&bytes.Buffer{}, "debug", "text").Enabled(context.Background(), slog.LevelDebug))
}

func TestMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FetchRequests.WithLabelValues("worldbank", "success").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FetchRequests.WithLabelValues("worldbank", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FetchRequests.WithLabelValues("worldbank", "success")))
}
