// Package app wires configuration, adapters and the build pipeline together
// for the command binaries.
package app

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/indicator-grid-etl/internal/adapter/filestore"
	"github.com/couchcryptid/indicator-grid-etl/internal/adapter/geo"
	kafkaadapter "github.com/couchcryptid/indicator-grid-etl/internal/adapter/kafka"
	"github.com/couchcryptid/indicator-grid-etl/internal/adapter/owid"
	"github.com/couchcryptid/indicator-grid-etl/internal/adapter/worldbank"
	"github.com/couchcryptid/indicator-grid-etl/internal/catalog"
	"github.com/couchcryptid/indicator-grid-etl/internal/config"
	"github.com/couchcryptid/indicator-grid-etl/internal/observability"
	"github.com/couchcryptid/indicator-grid-etl/internal/pipeline"
)

// Build is a wired Builder together with what it was built from.
type Build struct {
	Builder *pipeline.Builder
	Catalog *catalog.Catalog
	Store   *filestore.Store

	publisher *kafkaadapter.Publisher
}

// NewBuild loads the catalog and connects every adapter the configuration enables.
func NewBuild(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Build, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	wb := worldbank.NewClient(worldbank.Options{
		BaseURL:     cfg.WorldBankBaseURL,
		Timeout:     cfg.WorldBankTimeout,
		MaxAttempts: cfg.WorldBankMaxAttempts,
		Backoff:     cfg.WorldBankBackoff,
		RateLimit:   cfg.WorldBankRateLimit,
	}, metrics, logger)

	ow := owid.NewClient(cfg.OWIDURL, cfg.HTTPTimeout, metrics, logger)
	owidSource := pipeline.DatasetFetcherFunc(func(ctx context.Context) (pipeline.Dataset, error) {
		ds, err := ow.FetchDataset(ctx)
		if err != nil {
			return nil, err
		}
		return ds, nil
	})

	store := filestore.New(cfg.OutputDir)
	sinks := []pipeline.ArtifactSink{store}

	b := &Build{Catalog: cat, Store: store}
	if cfg.KafkaEnabled {
		b.publisher = kafkaadapter.NewPublisher(cfg, logger)
		sinks = append(sinks, b.publisher)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	b.Builder = pipeline.NewBuilder(cat.Metrics,
		pipeline.Sources{
			Boundaries: geo.NewFetcher(cfg.GeoURL, cfg.HTTPTimeout, metrics, logger),
			WorldBank:  wb,
			OWID:       owidSource,
		},
		sinks,
		pipeline.Options{GeoPath: cfg.GeoPath, Notes: cfg.Notes},
		logger, metrics)

	return b, nil
}

// Close releases the Kafka producer when one was opened.
func (b *Build) Close() error {
	if b.publisher == nil {
		return nil
	}
	return b.publisher.Close()
}
