package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"Mnemo/internal/database/kafka"
	"Mnemo/internal/memory/service"
	"Mnemo/internal/models"
	"Mnemo/pkg/logger"
)

// KafkaConsumer drains conversation slices off the extraction topic and runs
// them through the coordinator. Extraction is asynchronous by design: the
// agent loop publishes a slice at end-of-turn and moves on; this consumer is
// the only thing that pays the LLM and embedding cost.
type KafkaConsumer struct {
	kafkaClient *kafka.KafkaClient
	coordinator *service.Coordinator
	logger      *logger.Logger
}

// NewKafkaConsumer creates a new KafkaConsumer.
func NewKafkaConsumer(kafkaClient *kafka.KafkaClient, coordinator *service.Coordinator, logger *logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		kafkaClient: kafkaClient,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Start launches the consume loop in a goroutine. The loop exits when ctx is
// cancelled. Messages are committed only after processing, so a crash mid-
// slice replays it; the semantic index's dedup makes the replay harmless.
func (c *KafkaConsumer) Start(ctx context.Context) {
	go func() {
		for {
			msg, err := c.kafkaClient.Reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to fetch message")
				continue
			}

			var slice models.ConversationSlice
			if err := json.Unmarshal(msg.Value, &slice); err != nil {
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to unmarshal conversation slice")
				// Poison message; commit it so the partition keeps moving.
				if err := c.kafkaClient.Reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to commit poison message")
				}
				continue
			}

			if _, err := c.coordinator.ExtractAndStoreFacts(ctx, slice); err != nil {
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to extract facts from slice")
				continue
			}

			if err := c.kafkaClient.Reader.CommitMessages(ctx, msg); err != nil {
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to commit message")
			}
		}
	}()
}
