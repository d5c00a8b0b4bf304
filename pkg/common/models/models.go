package models

import "time"

// IngestionJob is the unit of work delivered through the ingestion topic.
// Delivery is at-least-once; Generation mirrors the dataset's counter at
// enqueue time so workers can recognize duplicates of a completed run.
type IngestionJob struct {
	JobID          string            `json:"job_id"`
	DatasetID      string            `json:"dataset_id"`
	OrganizationID string            `json:"organization_id"`
	BlobKey        string            `json:"blob_key"`
	FileName       string            `json:"file_name"`
	Generation     int64             `json:"generation"`
	Reprocess      bool              `json:"reprocess"`
	Options        *ReprocessOptions `json:"options,omitempty"`
	EnqueuedAt     time.Time         `json:"enqueued_at"`
}

// ReprocessOptions carries the optional per-run transform settings supplied
// by the reprocess endpoint.
type ReprocessOptions struct {
	ValidationRules      map[string]interface{} `json:"validation_rules,omitempty"`
	CleaningOptions      map[string]interface{} `json:"cleaning_options,omitempty"`
	NormalizationOptions map[string]interface{} `json:"normalization_options,omitempty"`
}

// ProgressEvent is the transient message pushed over the progress channel.
// It is best-effort only; the dataset row remains the source of truth.
type ProgressEvent struct {
	Type           string `json:"type"`
	DatasetID      string `json:"dataset_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}
