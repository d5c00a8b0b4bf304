package progress

import (
	"context"
	"encoding/json"

	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events to the per-dataset channel and, when the
// event carries an organization id, to the org-wide channel as well.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish is fire-and-forget: marshal or publish errors are logged and
// swallowed so the orchestrator never fails on a slow or absent channel.
func (p *RedisPublisher) Publish(ctx context.Context, event models.ProgressEvent) {
	if p == nil || p.client == nil {
		return
	}
	if event.Type == "" {
		event.Type = "dataset_update"
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to marshal progress event")
		return
	}

	if err := p.client.Publish(ctx, DatasetChannel(event.DatasetID), payload).Err(); err != nil {
		logger.Log.WithError(err).WithField("dataset_id", event.DatasetID).
			Warn("failed to publish progress event")
	}

	if event.OrganizationID != "" {
		if err := p.client.Publish(ctx, OrganizationChannel(event.OrganizationID), payload).Err(); err != nil {
			logger.Log.WithError(err).WithField("organization_id", event.OrganizationID).
				Warn("failed to publish progress event")
		}
	}
}
