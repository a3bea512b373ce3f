// Package kafka publishes tier-change audit events to a Kafka topic so
// downstream consumers (Discord bots, analytics) can follow ranking moves.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/crtiers/crtiers/internal/domain"
)

// Config holds Kafka producer settings. Disabled producers are valid and
// drop events silently, so deployments without a broker keep working.
type Config struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Producer writes changelog entries to Kafka.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducer creates a connected sync producer.
func NewProducer(cfg *Config, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	logger.Info("kafka producer connected", "brokers", cfg.Brokers, "topic", cfg.Topic)

	return &Producer{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}, nil
}

// PublishTierChange emits one audit event per changelog entry, keyed by
// player id so per-player ordering is preserved within a partition.
func (p *Producer) PublishTierChange(ctx context.Context, entry domain.ChangelogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding changelog entry: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(entry.PlayerID),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publishing tier change: %w", err)
	}

	p.logger.Debug("tier change published",
		"player_id", entry.PlayerID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close shuts down the producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
