package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/datapilot-io/platform/pkg/common/config"
)

var ErrObjectNotFound = errors.New("blob object not found")

// Store is the durable home for raw uploaded files. Keys are
// organization-scoped and objects are immutable once written; reprocessing
// re-reads the same key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New selects the backend from config. The local backend exists for
// development and tests; production deployments use GCS.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "local", "":
		return NewLocalStore(cfg.StorageLocalDir)
	case "gcs":
		return NewGCSStore(context.Background(), cfg.StorageBucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
