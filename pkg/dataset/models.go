package dataset

import (
	"time"

	"gorm.io/datatypes"
)

// Dataset is the persisted record for one uploaded file and its derived
// schema and statistics. SchemaInfo and Statistics are populated only when
// Status is ready; ProcessingError only when Status is failed.
type Dataset struct {
	ID             string `json:"id" gorm:"primaryKey;column:id"`
	OrganizationID string `json:"organization_id" gorm:"column:organization_id;index"`
	CreatedBy      string `json:"created_by" gorm:"column:created_by"`

	Name        string `json:"name" gorm:"column:name"`
	Description string `json:"description,omitempty" gorm:"column:description"`

	FileName string `json:"file_name" gorm:"column:file_name"`
	BlobKey  string `json:"blob_key" gorm:"column:blob_key"`
	FileSize int64  `json:"file_size" gorm:"column:file_size"`
	FileHash string `json:"file_hash" gorm:"column:file_hash"`

	Status          string `json:"status" gorm:"column:status;index"`
	ProcessingError string `json:"processing_error,omitempty" gorm:"column:processing_error"`

	// Generation counts enqueued runs. Jobs carry the generation they were
	// enqueued under so duplicate deliveries of a finished run are no-ops.
	Generation int64 `json:"generation" gorm:"column:generation"`

	RowCount    int64             `json:"row_count" gorm:"column:row_count"`
	ColumnCount int               `json:"column_count" gorm:"column:column_count"`
	SchemaInfo  datatypes.JSONMap `json:"schema_info,omitempty" gorm:"column:schema_info"`
	Statistics  datatypes.JSONMap `json:"statistics,omitempty" gorm:"column:statistics"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Dataset) TableName() string {
	return "datasets"
}

// Record is one materialized data row, backing the preview endpoint.
type Record struct {
	ID             string         `json:"-" gorm:"primaryKey;column:id"`
	DatasetID      string         `json:"-" gorm:"column:dataset_id;index"`
	OrganizationID string         `json:"-" gorm:"column:organization_id;index"`
	RowNumber      int64          `json:"row_number" gorm:"column:row_number"`
	Data           datatypes.JSON `json:"data" gorm:"column:data"`
	IsValid        bool           `json:"is_valid" gorm:"column:is_valid"`
	CreatedAt      time.Time      `json:"-" gorm:"column:created_at"`
}

func (Record) TableName() string {
	return "dataset_records"
}
