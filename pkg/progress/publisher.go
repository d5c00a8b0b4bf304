package progress

import (
	"context"

	"github.com/datapilot-io/platform/pkg/common/models"
)

// Publisher fans lifecycle events out to live subscribers. Delivery is
// best-effort only: a subscriber that connects after an event was published
// never sees it, and the dataset row in the metadata store stays the source
// of truth. Publishing must never block or fail the pipeline.
type Publisher interface {
	Publish(ctx context.Context, event models.ProgressEvent)
}

// DatasetChannel is the per-dataset pub/sub channel name.
func DatasetChannel(datasetID string) string {
	return "ws:dataset:" + datasetID
}

// OrganizationChannel is the org-wide pub/sub channel name.
func OrganizationChannel(organizationID string) string {
	return "ws:organization:" + organizationID
}

// Nop drops every event. Used where no channel is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, event models.ProgressEvent) {}
