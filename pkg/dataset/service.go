package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/common/models"
	"github.com/datapilot-io/platform/pkg/observability/metrics"
	"github.com/datapilot-io/platform/pkg/pipeline"
	"github.com/datapilot-io/platform/pkg/storage"
	"github.com/google/uuid"
)

// ErrEnqueueFailed surfaces when the job could not be handed to the queue
// after bounded retries. The dataset record is rolled back first, so no row
// is left stranded in `uploading`.
var ErrEnqueueFailed = errors.New("failed to enqueue ingestion job")

// Store is the repository surface the service depends on.
type Store interface {
	Create(ctx context.Context, ds *Dataset) error
	Get(ctx context.Context, id, organizationID string) (*Dataset, error)
	List(ctx context.Context, organizationID, status string) ([]Dataset, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	TransitionStatus(ctx context.Context, id, from, to string) (bool, error)
	NextGeneration(ctx context.Context, id string) (int64, error)
	HardDelete(ctx context.Context, id string) error
	PreviewRecords(ctx context.Context, datasetID, organizationID string, limit int) ([]Record, int64, error)
}

// JobEnqueuer hands ingestion jobs to the task queue.
type JobEnqueuer interface {
	PublishJob(ctx context.Context, job models.IngestionJob) error
}

type ServiceConfig struct {
	EnqueueRetries      int
	EnqueueRetryBackoff time.Duration
	PreviewLimit        int
}

type Service struct {
	validator *Validator
	store     Store
	blobs     storage.Store
	producer  JobEnqueuer
	cfg       ServiceConfig
}

func NewService(validator *Validator, store Store, blobs storage.Store, producer JobEnqueuer, cfg ServiceConfig) *Service {
	if cfg.EnqueueRetries <= 0 {
		cfg.EnqueueRetries = 3
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = 100
	}
	return &Service{
		validator: validator,
		store:     store,
		blobs:     blobs,
		producer:  producer,
		cfg:       cfg,
	}
}

// CreateInput is one upload: metadata plus the raw content stream.
type CreateInput struct {
	OrganizationID string
	CreatedBy      string
	Name           string
	Description    string
	FileName       string
	SizeBytes      int64
	Content        io.Reader
}

// Create implements the submit path: validate, store the blob, persist the
// dataset, enqueue the job, and transition uploading -> processing. It
// returns as soon as the job is queued; parsing never happens inline.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Dataset, error) {
	if err := s.validator.ValidateUpload(in.FileName, in.SizeBytes); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	blobKey := fmt.Sprintf("datasets/%s/%s/%s", in.OrganizationID, id, in.FileName)

	hasher := sha256.New()
	if err := s.blobs.Put(ctx, blobKey, io.TeeReader(in.Content, hasher)); err != nil {
		return nil, fmt.Errorf("storing raw file: %w", err)
	}

	name := in.Name
	if name == "" {
		name = in.FileName
	}

	ds := &Dataset{
		ID:             id,
		OrganizationID: in.OrganizationID,
		CreatedBy:      in.CreatedBy,
		Name:           name,
		Description:    in.Description,
		FileName:       in.FileName,
		BlobKey:        blobKey,
		FileSize:       in.SizeBytes,
		FileHash:       hex.EncodeToString(hasher.Sum(nil)),
		Status:         models.StatusUploading,
		Generation:     1,
	}

	if err := s.store.Create(ctx, ds); err != nil {
		_ = s.blobs.Delete(ctx, blobKey)
		return nil, fmt.Errorf("persisting dataset: %w", err)
	}

	job := models.IngestionJob{
		JobID:          uuid.New().String(),
		DatasetID:      id,
		OrganizationID: in.OrganizationID,
		BlobKey:        blobKey,
		FileName:       in.FileName,
		Generation:     1,
		EnqueuedAt:     time.Now().UTC(),
	}

	if err := s.enqueue(ctx, job); err != nil {
		// Roll back so nothing sits permanently in `uploading`.
		if delErr := s.store.HardDelete(ctx, id); delErr != nil {
			logger.Log.WithError(delErr).WithField("dataset_id", id).
				Error("failed to roll back dataset after enqueue failure")
		}
		_ = s.blobs.Delete(ctx, blobKey)
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	// Conditional on the row still being in `uploading`: the worker may have
	// consumed the job and recorded a terminal status before we get here,
	// and that status must win.
	moved, err := s.store.TransitionStatus(ctx, id, models.StatusUploading, models.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("updating dataset status: %w", err)
	}
	if moved {
		ds.Status = models.StatusProcessing
	} else if cur, err := s.store.Get(ctx, id, in.OrganizationID); err == nil {
		ds = cur
	}

	metrics.IncSubmitted()
	logger.Log.WithFields(map[string]interface{}{
		"dataset_id": id,
		"file_name":  in.FileName,
		"size_bytes": in.SizeBytes,
	}).Info("dataset submitted")

	return ds, nil
}

// Reprocess re-enters the pipeline from the stored blob. Allowed from any
// status; the status is reset to processing before the job is enqueued, and
// restored if the enqueue fails.
func (s *Service) Reprocess(ctx context.Context, id, organizationID string, opts *models.ReprocessOptions) (*Dataset, error) {
	ds, err := s.store.Get(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}

	prevStatus, prevError := ds.Status, ds.ProcessingError
	generation, err := s.store.NextGeneration(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("allocating job generation: %w", err)
	}
	if err := s.store.UpdateStatus(ctx, id, models.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("updating dataset status: %w", err)
	}

	job := models.IngestionJob{
		JobID:          uuid.New().String(),
		DatasetID:      id,
		OrganizationID: organizationID,
		BlobKey:        ds.BlobKey,
		FileName:       ds.FileName,
		Generation:     generation,
		Reprocess:      true,
		Options:        opts,
		EnqueuedAt:     time.Now().UTC(),
	}

	if err := s.enqueue(ctx, job); err != nil {
		if revertErr := s.store.UpdateStatus(ctx, id, prevStatus, prevError); revertErr != nil {
			logger.Log.WithError(revertErr).WithField("dataset_id", id).
				Error("failed to revert dataset status after enqueue failure")
		}
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	ds.Status = models.StatusProcessing
	ds.ProcessingError = ""
	logger.Log.WithField("dataset_id", id).Info("dataset reprocess triggered")
	return ds, nil
}

func (s *Service) enqueue(ctx context.Context, job models.IngestionJob) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.EnqueueRetries; attempt++ {
		if attempt > 0 {
			metrics.IncEnqueueRetry()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.EnqueueRetryBackoff):
			}
		}
		if lastErr = s.producer.PublishJob(ctx, job); lastErr == nil {
			return nil
		}
		logger.Log.WithError(lastErr).WithFields(map[string]interface{}{
			"dataset_id": job.DatasetID,
			"attempt":    attempt + 1,
		}).Warn("enqueue attempt failed")
	}
	return lastErr
}

func (s *Service) Get(ctx context.Context, id, organizationID string) (*Dataset, error) {
	return s.store.Get(ctx, id, organizationID)
}

func (s *Service) List(ctx context.Context, organizationID, status string) ([]Dataset, error) {
	return s.store.List(ctx, organizationID, status)
}

// Delete removes the dataset, its records, and the raw blob.
func (s *Service) Delete(ctx context.Context, id, organizationID string) error {
	ds, err := s.store.Get(ctx, id, organizationID)
	if err != nil {
		return err
	}
	if err := s.store.HardDelete(ctx, ds.ID); err != nil {
		return fmt.Errorf("deleting dataset: %w", err)
	}
	if err := s.blobs.Delete(ctx, ds.BlobKey); err != nil {
		logger.Log.WithError(err).WithField("dataset_id", id).Warn("failed to delete raw blob")
	}
	return nil
}

// PreviewRecord is one preview row plus the columns whose values are
// outliers within the preview sample.
type PreviewRecord struct {
	RowNumber int64                  `json:"row_number"`
	Data      map[string]interface{} `json:"data"`
	IsValid   bool                   `json:"is_valid"`
	Outliers  []string               `json:"outliers,omitempty"`
}

type PreviewResponse struct {
	Columns      []string        `json:"columns"`
	Records      []PreviewRecord `json:"records"`
	TotalCount   int64           `json:"total_count"`
	PreviewCount int             `json:"preview_count"`
}

// Preview returns a bounded row sample. Outlier flags are computed over the
// preview sample itself, not the full dataset, to keep rendering cost
// proportional to the preview size.
func (s *Service) Preview(ctx context.Context, id, organizationID string, limit int) (*PreviewResponse, error) {
	ds, err := s.store.Get(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.PreviewLimit {
		limit = s.cfg.PreviewLimit
	}

	records, total, err := s.store.PreviewRecords(ctx, ds.ID, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading preview records: %w", err)
	}

	columns := schemaColumns(ds)
	rows := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		var data map[string]interface{}
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			data = map[string]interface{}{}
		}
		rows[i] = data
	}

	outliers := previewOutliers(columns, rows)

	resp := &PreviewResponse{
		Columns:      columns,
		Records:      make([]PreviewRecord, len(records)),
		TotalCount:   total,
		PreviewCount: len(records),
	}
	for i, rec := range records {
		resp.Records[i] = PreviewRecord{
			RowNumber: rec.RowNumber,
			Data:      rows[i],
			IsValid:   rec.IsValid,
			Outliers:  outliers[i],
		}
	}
	return resp, nil
}

// previewOutliers computes per-column mean and deviation over the sample
// and flags values more than 3 standard deviations out.
func previewOutliers(columns []string, rows []map[string]interface{}) [][]string {
	out := make([][]string, len(rows))

	for _, col := range columns {
		var (
			sum, sumSq float64
			n          int64
		)
		for _, row := range rows {
			if f, ok := numericCell(row[col]); ok {
				sum += f
				sumSq += f * f
				n++
			}
		}
		if n < 2 {
			continue
		}
		mean := sum / float64(n)
		variance := sumSq/float64(n) - mean*mean
		if variance < 0 {
			variance = 0
		}
		std := math.Sqrt(variance)
		for i, row := range rows {
			if f, ok := numericCell(row[col]); ok && pipeline.IsOutlier(f, mean, std) {
				out[i] = append(out[i], col)
			}
		}
	}
	return out
}

func numericCell(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

type StatsResponse struct {
	DatasetID    string      `json:"dataset_id"`
	TotalRows    int64       `json:"total_rows"`
	TotalColumns int         `json:"total_columns"`
	ColumnStats  interface{} `json:"column_stats"`
}

// Stats returns the stored Statistics Engine output.
func (s *Service) Stats(ctx context.Context, id, organizationID string) (*StatsResponse, error) {
	ds, err := s.store.Get(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}

	var columnStats interface{} = map[string]interface{}{}
	if ds.Statistics != nil {
		if cs, ok := ds.Statistics["column_stats"]; ok {
			columnStats = cs
		}
	}
	return &StatsResponse{
		DatasetID:    ds.ID,
		TotalRows:    ds.RowCount,
		TotalColumns: ds.ColumnCount,
		ColumnStats:  columnStats,
	}, nil
}

func schemaColumns(ds *Dataset) []string {
	if ds.SchemaInfo == nil {
		return nil
	}
	raw, ok := ds.SchemaInfo["columns"]
	if !ok {
		return nil
	}
	switch cols := raw.(type) {
	case []string:
		return cols
	case []interface{}:
		out := make([]string, 0, len(cols))
		for _, c := range cols {
			if s, ok := c.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
