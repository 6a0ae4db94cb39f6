package consumer

import (
	"context"
	"encoding/json"

	"Mnemo/internal/models"
	"Mnemo/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// SlicePublisher puts finished conversation slices on the extraction topic.
// The agent loop calls this at end-of-turn; it must stay cheap, so the write
// is keyed by session to keep one session's slices on one partition, in order.
type SlicePublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewSlicePublisher creates a new SlicePublisher.
func NewSlicePublisher(brokers []string, topic string, logger *logger.Logger) *SlicePublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return &SlicePublisher{
		writer: writer,
		logger: logger,
	}
}

// Publish sends one conversation slice to the extraction topic.
func (p *SlicePublisher) Publish(ctx context.Context, slice models.ConversationSlice) error {
	msgBytes, err := json.Marshal(slice)
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to marshal conversation slice for Kafka")
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(slice.SessionID),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"topic": p.writer.Topic}).Error("Failed to write message to Kafka")
		return err
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *SlicePublisher) Close() error {
	return p.writer.Close()
}
