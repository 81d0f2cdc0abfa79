// Package kafka delivers engine events to a Kafka topic for the external
// notification/audit collaborator.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"stagevote/internal/events"
	"stagevote/internal/platform/config"
)

// Publisher implements events.Sink on top of a franz-go client. Records are
// keyed by competition ID so per-competition ordering is preserved within a
// partition.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the configured brokers. Returns nil when no brokers are
// configured (events stay on in-process sinks).
func New(cfg config.KafkaConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Publisher{client: client, topic: cfg.Topic}, nil
}

// Deliver produces one event synchronously. The worker calling this already
// runs off the vote path, so a blocking produce keeps delivery ordered
// without slowing admission.
func (p *Publisher) Deliver(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.CompetitionID.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// Close flushes and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}
