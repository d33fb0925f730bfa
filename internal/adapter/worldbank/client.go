package worldbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
	"github.com/couchcryptid/indicator-grid-etl/internal/observability"
)

const (
	source   = "worldbank"
	pageSize = 20000
)

// ErrAPI is returned when the API answers with an error payload instead of
// data, e.g. for an unknown indicator code. It is never retried.
var ErrAPI = errors.New("world bank api error")

// Options configures the fetch policy of a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration // per attempt
	MaxAttempts int
	Backoff     time.Duration // delay before attempt n+1 is Backoff*n
	RateLimit   float64       // requests per second, 0 for no limit
}

// Client fetches indicator series from the World Bank v2 REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	limiter     *rate.Limiter
	sleep       func(ctx context.Context, d time.Duration) bool
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates a World Bank client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		httpClient:  &http.Client{},
		baseURL:     opts.BaseURL,
		timeout:     opts.Timeout,
		maxAttempts: attempts,
		backoff:     opts.Backoff,
		limiter:     rate.NewLimiter(limit, 1),
		sleep:       sharedretry.SleepWithContext,
		metrics:     metrics,
		logger:      logger,
	}
}

// Row is one observation as returned by the API. Value is nil when the bank
// has no figure for that country and year.
type Row struct {
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

// Latest fetches an indicator and reduces it to the latest value per country.
func (c *Client) Latest(ctx context.Context, indicatorID string) (domain.LatestValues, error) {
	rows, err := c.FetchIndicator(ctx, indicatorID)
	if err != nil {
		return nil, err
	}
	values, discarded := reduce(rows)
	c.metrics.RowsDiscarded.WithLabelValues(source).Add(float64(discarded))
	c.logger.Debug("reduced indicator",
		"indicator", indicatorID,
		"rows", len(rows),
		"discarded", discarded,
		"countries", len(values),
	)
	return values, nil
}

// FetchIndicator returns every row of an indicator across all pages.
func (c *Client) FetchIndicator(ctx context.Context, indicatorID string) ([]Row, error) {
	var out []Row
	pages := 1
	for page := 1; page <= pages; page++ {
		p, err := c.fetchPage(ctx, c.pageURL(indicatorID, page))
		if err != nil {
			return nil, fmt.Errorf("indicator %s page %d: %w", indicatorID, page, err)
		}
		pages = p.pages
		for _, r := range p.rows {
			if r != nil {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (c *Client) pageURL(indicatorID string, page int) string {
	params := url.Values{
		"format":   {"json"},
		"per_page": {strconv.Itoa(pageSize)},
		"page":     {strconv.Itoa(page)},
	}
	return fmt.Sprintf("%s/country/all/indicator/%s?%s", c.baseURL, url.PathEscape(indicatorID), params.Encode())
}

type page struct {
	pages int
	rows  []*Row
}

// fetchPage requests one page, retrying failed attempts with a linear backoff.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (page, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.FetchRetries.WithLabelValues(source).Inc()
		}

		p, err := c.attempt(ctx, pageURL)
		if err == nil {
			return p, nil
		}
		lastErr = err

		if errors.Is(err, ErrAPI) || ctx.Err() != nil {
			return page{}, err
		}

		if attempt < c.maxAttempts {
			delay := c.backoff * time.Duration(attempt)
			c.logger.Warn("world bank request failed, retrying",
				"url", pageURL,
				"attempt", attempt,
				"max_attempts", c.maxAttempts,
				"delay", delay,
				"error", err,
			)
			if !c.sleep(ctx, delay) {
				return page{}, ctx.Err()
			}
		}
	}
	return page{}, fmt.Errorf("after %d attempts: %w", c.maxAttempts, lastErr)
}

// attempt performs a single request bounded by the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, pageURL string) (page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return page{}, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	p, err := c.doRequest(ctx, pageURL)
	c.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return page{}, err
	}
	c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
	return p, nil
}

func (c *Client) doRequest(ctx context.Context, pageURL string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return page{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("world bank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return page{}, fmt.Errorf("world bank fetch failed: status %d: %s", resp.StatusCode, body)
	}

	var parts []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&parts); err != nil {
		return page{}, fmt.Errorf("decode response: %w", err)
	}
	return parsePage(parts)
}

// parsePage splits the [meta, rows] envelope the API wraps every page in.
func parsePage(parts []json.RawMessage) (page, error) {
	if len(parts) == 0 {
		return page{}, errors.New("decode response: empty envelope")
	}

	var meta pageMeta
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return page{}, fmt.Errorf("decode page metadata: %w", err)
	}
	if len(meta.Message) > 0 {
		m := meta.Message[0]
		return page{}, fmt.Errorf("%w: %s %s: %s", ErrAPI, m.ID, m.Key, m.Value)
	}

	p := page{pages: int(meta.Pages)}
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &p.rows); err != nil {
			return page{}, fmt.Errorf("decode rows: %w", err)
		}
	}
	return p, nil
}

// API response types.

type pageMeta struct {
	Page    flexInt      `json:"page"`
	Pages   flexInt      `json:"pages"`
	Total   flexInt      `json:"total"`
	Message []apiMessage `json:"message"`
}

type apiMessage struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// flexInt accepts both 3 and "3"; the API is not consistent about quoting
// numeric metadata such as per_page.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
