package dataset

import (
	"context"
	"errors"
	"time"

	"github.com/datapilot-io/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("dataset not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Dataset{}, &Record{})
}

func (r *Repository) Create(ctx context.Context, ds *Dataset) error {
	ds.CreatedAt = time.Now().UTC()
	ds.UpdatedAt = ds.CreatedAt
	return r.db.WithContext(ctx).Create(ds).Error
}

func (r *Repository) Get(ctx context.Context, id, organizationID string) (*Dataset, error) {
	var ds Dataset
	result := r.db.WithContext(ctx).
		First(&ds, "id = ? AND organization_id = ?", id, organizationID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &ds, result.Error
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Dataset, error) {
	var ds Dataset
	result := r.db.WithContext(ctx).First(&ds, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &ds, result.Error
}

func (r *Repository) List(ctx context.Context, organizationID string, status string) ([]Dataset, error) {
	query := r.db.WithContext(ctx).Where("organization_id = ?", organizationID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var out []Dataset
	err := query.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *Repository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Dataset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           status,
			"processing_error": errMsg,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// TransitionStatus moves the dataset to a new status only while it still
// holds the expected one. Returns false when another writer got there first,
// leaving that writer's status untouched.
func (r *Repository) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Dataset{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":           to,
			"processing_error": "",
			"updated_at":       time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

// NextGeneration allocates the next job generation for the dataset. The
// worker uses it to recognize duplicate deliveries of an already-completed
// run.
func (r *Repository) NextGeneration(ctx context.Context, id string) (int64, error) {
	var ds Dataset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Dataset{}).Where("id = ?", id).
			Update("generation", gorm.Expr("generation + 1")).Error; err != nil {
			return err
		}
		return tx.First(&ds, "id = ?", id).Error
	})
	return ds.Generation, err
}

// MarkProcessing resets the row for a fresh run: previous error, counts,
// schema, and statistics are all cleared so derived fields are only ever
// populated on a ready dataset.
func (r *Repository) MarkProcessing(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Dataset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           models.StatusProcessing,
			"processing_error": "",
			"row_count":        0,
			"column_count":     0,
			"schema_info":      nil,
			"statistics":       nil,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// MarkReady writes counts, schema, statistics, and the terminal status in a
// single UPDATE so readers never observe a partially-populated ready
// dataset.
func (r *Repository) MarkReady(ctx context.Context, id string, rowCount int64, columnCount int, schemaInfo, statistics map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&Dataset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           models.StatusReady,
			"processing_error": "",
			"row_count":        rowCount,
			"column_count":     columnCount,
			"schema_info":      datatypes.JSONMap(schemaInfo),
			"statistics":       datatypes.JSONMap(statistics),
			"updated_at":       time.Now().UTC(),
		}).Error
}

// MarkFailed records the terminal failure and clears derived fields so the
// schema/statistics-iff-ready invariant holds.
func (r *Repository) MarkFailed(ctx context.Context, id, message string) error {
	return r.db.WithContext(ctx).Model(&Dataset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           models.StatusFailed,
			"processing_error": message,
			"row_count":        0,
			"column_count":     0,
			"schema_info":      nil,
			"statistics":       nil,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// HardDelete removes the dataset row and its records. Used both by the
// delete endpoint and to roll back a submit whose enqueue failed.
func (r *Repository) HardDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_id = ?", id).Delete(&Record{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Dataset{}).Error
	})
}

func (r *Repository) DeleteRecords(ctx context.Context, datasetID string) error {
	return r.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Delete(&Record{}).Error
}

func (r *Repository) InsertRecords(ctx context.Context, records []Record, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return r.db.WithContext(ctx).CreateInBatches(records, batchSize).Error
}

func (r *Repository) PreviewRecords(ctx context.Context, datasetID, organizationID string, limit int) ([]Record, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&Record{}).
		Where("dataset_id = ? AND organization_id = ?", datasetID, organizationID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var records []Record
	err = r.db.WithContext(ctx).
		Where("dataset_id = ? AND organization_id = ?", datasetID, organizationID).
		Order("row_number ASC").
		Limit(limit).
		Find(&records).Error
	return records, total, err
}
