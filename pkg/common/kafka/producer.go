package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datapilot-io/platform/pkg/common/config"
	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

// PublishJob keys messages by dataset id so duplicate deliveries for the
// same dataset land on the same partition and stay ordered.
func (p *Producer) PublishJob(ctx context.Context, job models.IngestionJob) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion job: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(job.DatasetID),
		Value: jobBytes,
		Headers: []kafka.Header{
			{Key: "job-id", Value: []byte(job.JobID)},
			{Key: "organization-id", Value: []byte(job.OrganizationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"job_id":     job.JobID,
			"dataset_id": job.DatasetID,
		}).Error("Failed to publish ingestion job")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"job_id":     job.JobID,
		"dataset_id": job.DatasetID,
		"topic":      p.writer.Topic,
	}).Info("Ingestion job published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
