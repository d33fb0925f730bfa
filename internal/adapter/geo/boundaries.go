// Package geo manages the country boundary GeoJSON the dashboard draws its
// maps from: a one-time cached download and a lookup of display names by
// ISO-3166 alpha-3 code.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/indicator-grid-etl/internal/observability"
)

const (
	source = "geo"

	// A file at or below this size is treated as a failed earlier download.
	minPlausibleSize = 1000

	// Natural Earth marks some sovereign states (France, Norway) with -99 in
	// ISO_A3 and carries the usable code in ISO_A3_EH.
	unknownISO = "-99"
)

// Fetcher downloads the boundary file once and caches it on disk.
type Fetcher struct {
	httpClient *http.Client
	url        string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the GeoJSON at url.
func NewFetcher(url string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		metrics:    metrics,
		logger:     logger,
	}
}

// EnsureBoundaries makes sure a plausible boundary file exists at path,
// downloading it when it is missing or too small.
func (f *Fetcher) EnsureBoundaries(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create geo dir: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.Size() > minPlausibleSize {
		f.logger.Info("geojson already present", "path", path)
		return nil
	}

	f.logger.Info("downloading geojson", "url", f.url)
	start := time.Now()
	err := f.download(ctx, path)
	f.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		f.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return err
	}
	f.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
	f.logger.Info("wrote geojson", "path", path)
	return nil
}

// download streams the body to a temp file and renames it into place so an
// interrupted download never leaves a truncated file at path.
func (f *Fetcher) download(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geo download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geo download failed: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".geo-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("geo download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move geojson into place: %w", err)
	}
	return nil
}

// Country is one feature of the boundary file.
type Country struct {
	ISO3 string
	Name string
}

// Boundaries indexes the countries of a boundary file by ISO-3 code.
type Boundaries struct {
	Countries []Country
	byISO3    map[string]string
}

// LoadBoundaries reads and indexes the GeoJSON at path.
func LoadBoundaries(path string) (*Boundaries, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geojson: %w", err)
	}
	defer file.Close()
	return ParseBoundaries(file)
}

// ParseBoundaries decodes a GeoJSON FeatureCollection. Features without a
// usable code are kept with an empty ISO3 so they still draw, but are not indexed.
func ParseBoundaries(r io.Reader) (*Boundaries, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode geojson: expected FeatureCollection, got %q", fc.Type)
	}

	b := &Boundaries{
		Countries: make([]Country, 0, len(fc.Features)),
		byISO3:    make(map[string]string, len(fc.Features)),
	}
	for _, feat := range fc.Features {
		c := Country{ISO3: feat.Properties.iso3(), Name: feat.Properties.name()}
		b.Countries = append(b.Countries, c)
		if c.ISO3 != "" && c.Name != "" {
			b.byISO3[c.ISO3] = c.Name
		}
	}
	return b, nil
}

// Name returns the display name of a country.
func (b *Boundaries) Name(iso3 string) (string, bool) {
	name, ok := b.byISO3[iso3]
	return name, ok
}

// GeoJSON types, reduced to the properties the dashboard reads.

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	ISOA3      string `json:"ISO_A3"`
	ISOA3Lower string `json:"iso_a3"`
	ISOA3EH    string `json:"ISO_A3_EH"`
	Admin      string `json:"ADMIN"`
	NameLower  string `json:"name"`
}

func (p properties) iso3() string {
	for _, code := range []string{p.ISOA3, p.ISOA3Lower, p.ISOA3EH} {
		if code != "" && code != unknownISO {
			return code
		}
	}
	return ""
}

func (p properties) name() string {
	if p.Admin != "" {
		return p.Admin
	}
	return p.NameLower
}
