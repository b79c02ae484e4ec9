// Package kafka publishes rejected input lines to a Kafka dead-letter topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/targets3/internal/errors"
)

// MetricsCollector defines metrics operations for the dead-letter publisher.
type MetricsCollector interface {
	IncDLQPublishes(status string)
}

// DeadLetter is the message published for each rejected line.
type DeadLetter struct {
	OriginalLine     string    `json:"original_line"`
	FailureReason    string    `json:"failure_reason"`
	FailureTimestamp time.Time `json:"failure_timestamp"`
	ProcessorID      string    `json:"processor_id"`
	Source           string    `json:"source"`
}

// DLQConfig contains dead-letter publishing configuration.
type DLQConfig struct {
	Enabled          bool
	BootstrapServers []string
	Topic            string
	Security         SecurityConfig
}

// Validate checks the configuration of an enabled publisher.
func (c DLQConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("dlq bootstrap_servers is required when dlq is enabled")
	}
	if c.Topic == "" {
		return fmt.Errorf("dlq topic is required when dlq is enabled")
	}
	return nil
}

// DLQPublisher publishes rejected lines to a dead-letter topic.
// A disabled publisher accepts every call and does nothing.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	config      DLQConfig
	logger      *slog.Logger
	metrics     MetricsCollector
	processorID string
	source      string
	mu          sync.RWMutex
	closed      bool
}

// NewDLQPublisher creates a new dead-letter publisher.
func NewDLQPublisher(
	cfg DLQConfig,
	processorID string,
	source string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*DLQPublisher, error) {
	if !cfg.Enabled {
		logger.Info("DLQ is disabled")
		return newDLQPublisher(nil, cfg, processorID, source, logger, metrics), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	saramaConfig, err := producerConfig(cfg.Security)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", cfg.BootstrapServers,
		"topic", cfg.Topic,
		"security_protocol", cfg.Security.SecurityProtocol,
	)

	return newDLQPublisher(producer, cfg, processorID, source, logger, metrics), nil
}

func newDLQPublisher(
	producer sarama.SyncProducer,
	cfg DLQConfig,
	processorID string,
	source string,
	logger *slog.Logger,
	metrics MetricsCollector,
) *DLQPublisher {
	return &DLQPublisher{
		producer:    producer,
		config:      cfg,
		logger:      logger,
		metrics:     metrics,
		processorID: processorID,
		source:      source,
	}
}

// producerConfig builds an idempotent, acknowledged producer configuration.
func producerConfig(sec SecurityConfig) (*sarama.Config, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	if err := configureSecurity(config, sec); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}
	return config, nil
}

// Publish sends line and the reason it was rejected to the dead-letter topic.
func (p *DLQPublisher) Publish(ctx context.Context, line, reason string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrPublisherClosed
	}

	if !p.config.Enabled || p.producer == nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(DeadLetter{
		OriginalLine:     line,
		FailureReason:    reason,
		FailureTimestamp: time.Now().UTC(),
		ProcessorID:      p.processorID,
		Source:           p.source,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.config.Topic,
		Key:   sarama.StringEncoder(p.source),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(reason)},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
			{Key: []byte("source"), Value: []byte(p.source)},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.recordPublish("failure")
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", p.config.Topic,
		)
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	p.recordPublish("success")
	p.logger.Debug("published line to DLQ",
		"dlq_topic", p.config.Topic,
		"partition", partition,
		"offset", offset,
		"reason", reason,
	)

	return nil
}

func (p *DLQPublisher) recordPublish(status string) {
	if p.metrics != nil {
		p.metrics.IncDLQPublishes(status)
	}
}

// Close closes the publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
		p.logger.Info("DLQ publisher closed")
	}

	return nil
}
