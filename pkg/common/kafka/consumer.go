package kafka

import (
	"context"
	"encoding/json"

	"github.com/datapilot-io/platform/pkg/common/config"
	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

type JobHandler func(ctx context.Context, job models.IngestionJob) error

func NewConsumer(topic string, groupID string) *Consumer {
	cfg := config.Load()
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader}
}

// Consume fetches jobs one at a time. A handler error leaves the message
// uncommitted so the broker redelivers it; malformed payloads are committed
// and dropped.
func (c *Consumer) Consume(ctx context.Context, handler JobHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			message, err := c.reader.FetchMessage(ctx)
			if err != nil {
				logger.Log.WithError(err).Error("Failed to fetch message")
				continue
			}

			var job models.IngestionJob
			if err := json.Unmarshal(message.Value, &job); err != nil {
				logger.Log.WithError(err).Error("Failed to unmarshal ingestion job")
				c.reader.CommitMessages(ctx, message)
				continue
			}

			if err := handler(ctx, job); err != nil {
				logger.Log.WithError(err).WithFields(map[string]interface{}{
					"job_id":     job.JobID,
					"dataset_id": job.DatasetID,
				}).Error("Failed to process ingestion job")
				// Don't commit on error, will retry
				continue
			}

			if err := c.reader.CommitMessages(ctx, message); err != nil {
				logger.Log.WithError(err).Error("Failed to commit message")
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
