package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/config"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/pipeline"
)

// Publisher produces one message per aggregated resource to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

var _ pipeline.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka producer for the configured resources topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes all records in a single WriteMessages call. Messages are
// keyed by source:source_id so updates to one resource stay ordered.
func (p *Publisher) Publish(ctx context.Context, postalCode string, records []domain.ResourceRecord) error {
	if len(records) == 0 {
		return nil
	}
	requestID := pipeline.RequestID(ctx)
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], postalCode, requestID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d resource messages: %w", len(msgs), err)
	}
	p.logger.Debug("published resources", "postal_code", postalCode, "count", len(msgs), "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a ResourceRecord into a Kafka message.
func serializeToMessage(record domain.ResourceRecord, postalCode, requestID string) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize resource %s: %w", record.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(record.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(record.Source)},
			{Key: "postal_code", Value: []byte(postalCode)},
			{Key: "request_id", Value: []byte(requestID)},
		},
	}, nil
}
