package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher announces newly generated overlays on a Kafka topic.
// It implements pipeline.Sink.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the notification topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Name identifies the publisher in logs and metrics.
func (p *Publisher) Name() string { return "kafka" }

// RunCompleted publishes a notification when the run rendered a new overlay.
// Cached, failed and abandoned runs are skipped.
func (p *Publisher) RunCompleted(ctx context.Context, run domain.RunRecord) error {
	if !run.Generated() {
		return nil
	}
	msg, err := serializeToMessage(run)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish overlay %s: %w", run.ResultRef, err)
	}
	p.logger.Debug("overlay published", "run_id", run.ID, "ref", run.ResultRef)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a run record into a Kafka message keyed by
// overlay reference, so repeat renders of one overlay share a partition.
func serializeToMessage(run domain.RunRecord) (kafkago.Message, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(run.ResultRef),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "product", Value: []byte(run.Product)},
			{Key: "country", Value: []byte(run.Country)},
			{Key: "finished_at", Value: []byte(run.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}
