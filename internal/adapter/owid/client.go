package owid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/indicator-grid-etl/internal/observability"
)

const source = "owid"

// Client downloads the Our World in Data CO₂ dataset.
type Client struct {
	httpClient *http.Client
	url        string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OWID client for the CSV at datasetURL.
func NewClient(datasetURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        datasetURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchDataset downloads and parses the whole CSV in one request. Failures are
// not retried.
func (c *Client) FetchDataset(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	ds, err := c.fetch(ctx)
	c.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return nil, err
	}
	c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()

	ds.discarded = c.metrics.RowsDiscarded.WithLabelValues(source)
	c.logger.Info("fetched owid dataset", "rows", ds.Len(), "duration", time.Since(start))
	return ds, nil
}

func (c *Client) fetch(ctx context.Context) (*Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("owid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("owid fetch failed: status %d %s: %s", resp.StatusCode, c.url, body)
	}

	return ParseDataset(resp.Body)
}
