package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/datapilot-io/platform/pkg/worker"
	"github.com/google/uuid"
)

// PipelineStore adapts the repository to the interfaces the ingestion
// processor consumes. It keeps the worker package free of GORM.
type PipelineStore struct {
	repo      *Repository
	batchSize int
}

func NewPipelineStore(repo *Repository, batchSize int) *PipelineStore {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &PipelineStore{repo: repo, batchSize: batchSize}
}

func (p *PipelineStore) Fetch(ctx context.Context, id string) (*worker.DatasetMeta, error) {
	ds, err := p.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, worker.ErrDatasetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &worker.DatasetMeta{
		ID:             ds.ID,
		OrganizationID: ds.OrganizationID,
		FileName:       ds.FileName,
		BlobKey:        ds.BlobKey,
		Status:         ds.Status,
		FileSize:       ds.FileSize,
		Generation:     ds.Generation,
	}, nil
}

func (p *PipelineStore) MarkProcessing(ctx context.Context, id string) error {
	return p.repo.MarkProcessing(ctx, id)
}

func (p *PipelineStore) MarkReady(ctx context.Context, id string, rowCount int64, columnCount int, schemaInfo, statistics map[string]interface{}) error {
	return p.repo.MarkReady(ctx, id, rowCount, columnCount, schemaInfo, statistics)
}

func (p *PipelineStore) MarkFailed(ctx context.Context, id string, message string) error {
	return p.repo.MarkFailed(ctx, id, message)
}

func (p *PipelineStore) Reset(ctx context.Context, datasetID string) error {
	return p.repo.DeleteRecords(ctx, datasetID)
}

func (p *PipelineStore) Write(ctx context.Context, datasetID, organizationID string, rows []worker.RecordRow) error {
	records := make([]Record, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(row.Data)
		if err != nil {
			return fmt.Errorf("encoding row %d: %w", row.RowNumber, err)
		}
		records[i] = Record{
			ID:             uuid.New().String(),
			DatasetID:      datasetID,
			OrganizationID: organizationID,
			RowNumber:      row.RowNumber,
			Data:           data,
			IsValid:        row.Valid,
		}
	}
	return p.repo.InsertRecords(ctx, records, p.batchSize)
}
