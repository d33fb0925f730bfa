package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/indicator-grid-etl/internal/catalog"
	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
	"github.com/couchcryptid/indicator-grid-etl/internal/observability"
)

// ErrBuildInProgress is returned by Run when another build is still running.
var ErrBuildInProgress = errors.New("build already in progress")

// BoundaryEnsurer makes sure the country boundary file is on disk.
type BoundaryEnsurer interface {
	EnsureBoundaries(ctx context.Context, path string) error
}

// IndicatorSource fetches one indicator and reduces it to the latest value per country.
type IndicatorSource interface {
	Latest(ctx context.Context, indicatorID string) (domain.LatestValues, error)
}

// Dataset is a downloaded table that can be reduced one column at a time.
type Dataset interface {
	Latest(column string) (domain.LatestValues, error)
}

// DatasetFetcher downloads a Dataset.
type DatasetFetcher interface {
	FetchDataset(ctx context.Context) (Dataset, error)
}

// DatasetFetcherFunc adapts a function to DatasetFetcher.
type DatasetFetcherFunc func(ctx context.Context) (Dataset, error)

func (f DatasetFetcherFunc) FetchDataset(ctx context.Context) (Dataset, error) { return f(ctx) }

// ArtifactSink receives every artifact and, last, the manifest of a build.
type ArtifactSink interface {
	Name() string
	WriteArtifact(ctx context.Context, a domain.MetricArtifact) error
	WriteManifest(ctx context.Context, m domain.Manifest) error
}

// Sources are the upstream adapters a build reads from. OWID may be nil when
// the catalog has no OWID metric.
type Sources struct {
	Boundaries BoundaryEnsurer
	WorldBank  IndicatorSource
	OWID       DatasetFetcher
}

// Options carry the per-deployment settings of a build.
type Options struct {
	GeoPath string
	Notes   string
}

// Builder runs the catalog → fetch → reduce → write build.
type Builder struct {
	catalog catalog.Catalog
	sources Sources
	sinks   []ArtifactSink
	opts    Options
	logger  *slog.Logger
	obs     *observability.Metrics
	running atomic.Bool
	ready   atomic.Bool
}

// NewBuilder creates a Builder for the given catalog entries, in build order.
func NewBuilder(metrics []domain.MetricDescriptor, sources Sources, sinks []ArtifactSink, opts Options, logger *slog.Logger, obs *observability.Metrics) *Builder {
	if opts.Notes == "" {
		opts.Notes = domain.DefaultManifestNotes
	}
	return &Builder{
		catalog: catalog.Catalog{Metrics: metrics},
		sources: sources,
		sinks:   sinks,
		opts:    opts,
		logger:  logger,
		obs:     obs,
	}
}

// CheckReadiness returns nil once a build has completed successfully.
func (b *Builder) CheckReadiness(_ context.Context) error {
	if !b.ready.Load() {
		return errors.New("no build has completed yet")
	}
	return nil
}

// Run executes one complete build. Any error aborts it; artifacts written
// before the failure stay in place and the manifest is not written.
func (b *Builder) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrBuildInProgress
	}
	defer b.running.Store(false)

	runID := uuid.NewString()
	logger := b.logger.With("run_id", runID)
	start := time.Now()
	logger.Info("build started", "metrics", len(b.catalog.Metrics), "sinks", len(b.sinks))

	updatedAt, err := b.run(ctx, logger)
	b.obs.BuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		b.obs.BuildsTotal.WithLabelValues("error").Inc()
		logger.Error("build failed", "error", err)
		return err
	}

	b.obs.BuildsTotal.WithLabelValues("success").Inc()
	b.obs.LastSuccessfulRun.Set(float64(updatedAt.Unix()))
	b.ready.Store(true)
	logger.Info("build finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (b *Builder) run(ctx context.Context, logger *slog.Logger) (time.Time, error) {
	if err := b.sources.Boundaries.EnsureBoundaries(ctx, b.opts.GeoPath); err != nil {
		return time.Time{}, fmt.Errorf("ensure boundaries: %w", err)
	}

	dataset, err := b.fetchDataset(ctx, logger)
	if err != nil {
		return time.Time{}, err
	}

	updatedAt := domain.BuildTimestamp()

	for _, m := range b.catalog.Metrics {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}

		values, err := b.latest(ctx, m, dataset)
		if err != nil {
			return time.Time{}, fmt.Errorf("metric %s: %w", m.ID, err)
		}

		artifact := domain.NewArtifact(m.ID, updatedAt, values)
		for _, sink := range b.sinks {
			if err := sink.WriteArtifact(ctx, artifact); err != nil {
				return time.Time{}, fmt.Errorf("write %s to %s: %w", m.ID, sink.Name(), err)
			}
			b.obs.ArtifactsPublished.WithLabelValues(sink.Name()).Inc()
		}

		b.obs.MetricCountries.WithLabelValues(m.ID).Set(float64(len(values)))
		logger.Info(fmt.Sprintf("wrote latest/%s.json", m.ID), "metric_id", m.ID, "countries", len(values))
	}

	manifest := domain.Manifest{UpdatedAt: updatedAt, Metrics: b.catalog.Metrics, Notes: b.opts.Notes}
	for _, sink := range b.sinks {
		if err := sink.WriteManifest(ctx, manifest); err != nil {
			return time.Time{}, fmt.Errorf("write manifest to %s: %w", sink.Name(), err)
		}
		b.obs.ArtifactsPublished.WithLabelValues(sink.Name()).Inc()
	}
	logger.Info("wrote meta.json", "metrics", len(b.catalog.Metrics))

	return updatedAt, nil
}

// fetchDataset downloads the OWID table once per build, and only when a
// catalog entry needs it.
func (b *Builder) fetchDataset(ctx context.Context, logger *slog.Logger) (Dataset, error) {
	if !b.catalog.HasSource(domain.SourceOWID) {
		return nil, nil
	}
	if b.sources.OWID == nil {
		return nil, errors.New("catalog has owid metrics but no owid source is configured")
	}
	logger.Info("downloading owid dataset")
	ds, err := b.sources.OWID.FetchDataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch owid dataset: %w", err)
	}
	return ds, nil
}

func (b *Builder) latest(ctx context.Context, m domain.MetricDescriptor, dataset Dataset) (domain.LatestValues, error) {
	switch m.Source {
	case domain.SourceWorldBank:
		if b.sources.WorldBank == nil {
			return nil, errors.New("no world bank source is configured")
		}
		return b.sources.WorldBank.Latest(ctx, m.ID)
	case domain.SourceOWID:
		return dataset.Latest(m.ID)
	default:
		return nil, fmt.Errorf("unsupported source %q", m.Source)
	}
}
