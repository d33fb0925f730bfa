package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/indicator-grid-etl/internal/config"
	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

// ManifestKey is the message key of the manifest; artifacts are keyed by metric id.
const ManifestKey = "meta"

const (
	kindArtifact = "artifact"
	kindManifest = "manifest"
)

// Publisher fans build artifacts out to a Kafka topic.
// It implements pipeline.ArtifactSink.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured artifact topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		// One message per call; do not hold it for the default one-second batch window.
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string { return "kafka" }

// WriteArtifact publishes one metric artifact keyed by its metric id.
func (p *Publisher) WriteArtifact(ctx context.Context, a domain.MetricArtifact) error {
	msg, err := serializeArtifact(a)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", a.MetricID, err)
	}
	p.logger.Debug("published artifact", "metric_id", a.MetricID, "topic", p.writer.Topic)
	return nil
}

// WriteManifest publishes the manifest under ManifestKey.
func (p *Publisher) WriteManifest(ctx context.Context, m domain.Manifest) error {
	msg, err := serializeManifest(m)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeArtifact marshals a MetricArtifact into a Kafka message.
func serializeArtifact(a domain.MetricArtifact) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize artifact %s: %w", a.MetricID, err)
	}
	return kafkago.Message{
		Key:   []byte(a.MetricID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kindArtifact)},
			{Key: "metric_id", Value: []byte(a.MetricID)},
			{Key: "updated_at", Value: []byte(a.UpdatedAt.Format(time.RFC3339Nano))},
		},
	}, nil
}

// serializeManifest marshals a Manifest into a Kafka message.
func serializeManifest(m domain.Manifest) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize manifest: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ManifestKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kindManifest)},
			{Key: "updated_at", Value: []byte(m.UpdatedAt.Format(time.RFC3339Nano))},
		},
	}, nil
}
