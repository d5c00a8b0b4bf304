package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/common/models"
	"github.com/datapilot-io/platform/pkg/observability/metrics"
	"github.com/datapilot-io/platform/pkg/pipeline"
	"github.com/datapilot-io/platform/pkg/progress"
	"github.com/datapilot-io/platform/pkg/transform"
)

var ErrDatasetNotFound = errors.New("dataset not found")

// DatasetMeta is the slice of the dataset row the processor needs.
// Generation is the enqueue counter; a job whose generation does not exceed
// it was already absorbed by the run that produced the current terminal
// status.
type DatasetMeta struct {
	ID             string
	OrganizationID string
	FileName       string
	BlobKey        string
	Status         string
	FileSize       int64
	Generation     int64
}

// DatasetStore is the metadata-store surface the processor writes through.
// MarkProcessing must clear previous derived fields so schema and statistics
// are only ever populated on a ready dataset. MarkReady must persist
// row/column counts, schema, and statistics as one atomic update so
// concurrent readers never observe a partial write.
type DatasetStore interface {
	Fetch(ctx context.Context, id string) (*DatasetMeta, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id string, rowCount int64, columnCount int, schemaInfo, statistics map[string]interface{}) error
	MarkFailed(ctx context.Context, id string, message string) error
}

// RecordRow is one materialized data row headed for the record table.
type RecordRow struct {
	RowNumber int64
	Data      map[string]interface{}
	Valid     bool
}

// RecordWriter persists parsed rows in batches. Reset clears any rows from
// a previous run so reprocessing is idempotent.
type RecordWriter interface {
	Reset(ctx context.Context, datasetID string) error
	Write(ctx context.Context, datasetID, organizationID string, rows []RecordRow) error
}

// BlobOpener reads raw uploads back out of the blob store.
type BlobOpener interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

type Options struct {
	SampleRows  int
	DistinctCap int
	MaxRows     int64
	BatchSize   int
}

func (o *Options) fill() {
	if o.SampleRows <= 0 {
		o.SampleRows = 10
	}
	if o.DistinctCap <= 0 {
		o.DistinctCap = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
}

// Processor drives a dataset through parse, inference, transform,
// statistics, and persistence, and owns every status transition after
// submit. It is the sole writer of dataset rows while a job runs.
type Processor struct {
	datasets  DatasetStore
	records   RecordWriter
	blobs     BlobOpener
	publisher progress.Publisher
	policy    *transform.Policy
	opts      Options
}

func NewProcessor(
	datasets DatasetStore,
	records RecordWriter,
	blobs BlobOpener,
	publisher progress.Publisher,
	policy *transform.Policy,
	opts Options,
) *Processor {
	opts.fill()
	if publisher == nil {
		publisher = progress.Nop{}
	}
	if policy == nil {
		policy = &transform.Policy{}
	}
	return &Processor{
		datasets:  datasets,
		records:   records,
		blobs:     blobs,
		publisher: publisher,
		policy:    policy,
		opts:      opts,
	}
}

// Process executes one ingestion job. It is idempotent per dataset id: a
// duplicate delivery for a dataset that already reached a terminal status is
// absorbed as a no-op. A nil return commits the job; an error leaves it for
// redelivery, which only happens for infrastructure failures that prevented
// recording a terminal status.
func (p *Processor) Process(ctx context.Context, job models.IngestionJob) error {
	log := logger.Log.WithFields(map[string]interface{}{
		"job_id":     job.JobID,
		"dataset_id": job.DatasetID,
	})

	ds, err := p.datasets.Fetch(ctx, job.DatasetID)
	if errors.Is(err, ErrDatasetNotFound) {
		log.Warn("dataset no longer exists, dropping job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching dataset: %w", err)
	}

	if models.IsTerminalStatus(ds.Status) && job.Generation <= ds.Generation {
		metrics.IncDuplicateJob()
		log.WithField("status", ds.Status).Info("dataset already terminal, skipping duplicate job")
		return nil
	}

	if err := p.datasets.MarkProcessing(ctx, ds.ID); err != nil {
		return fmt.Errorf("marking dataset processing: %w", err)
	}
	p.publish(ctx, ds, models.StatusProcessing, 0, "Starting dataset processing", "")

	runErr := p.run(ctx, ds, job)
	if runErr == nil {
		metrics.IncReady()
		p.publish(ctx, ds, models.StatusReady, 100, "Dataset ready for use", "")
		log.Info("dataset processed")
		return nil
	}

	if ctx.Err() != nil {
		// Shutdown mid-run: leave the job uncommitted so another worker
		// picks it up.
		return ctx.Err()
	}

	message := runErr.Error()
	if !pipeline.IsParseError(runErr) {
		log.WithError(runErr).Error("dataset processing failed")
	}
	if err := p.datasets.MarkFailed(ctx, ds.ID, message); err != nil {
		return fmt.Errorf("marking dataset failed: %w", err)
	}
	metrics.IncFailed()
	p.publish(ctx, ds, models.StatusFailed, 0, "Processing failed", message)
	log.WithField("error", message).Info("dataset marked failed")
	return nil
}

func (p *Processor) run(ctx context.Context, ds *DatasetMeta, job models.IngestionJob) error {
	blob, err := p.blobs.Get(ctx, ds.BlobKey)
	if err != nil {
		return fmt.Errorf("fetching raw file: %w", err)
	}
	defer blob.Close()

	counting := &countingReader{r: blob}
	parser := pipeline.NewParser(p.opts.MaxRows)
	reader, err := parser.Open(counting, pipeline.ExtensionOf(ds.FileName))
	if err != nil {
		return err
	}
	defer reader.Close()
	p.publish(ctx, ds, models.StatusProcessing, 10, fmt.Sprintf("Parsing %s", ds.FileName), "")

	rawColumns := reader.Columns()
	columns := rawColumns
	if p.normalizeColumns(job.Options) {
		columns = transform.NormalizeColumns(rawColumns)
	}

	cleaner := transform.NewCleaner(p.cleanerOptions(job.Options))
	validator, err := p.validator(job.Options)
	if err != nil {
		return err
	}
	collector := pipeline.NewCollector(columns, p.opts.DistinctCap)

	if err := p.records.Reset(ctx, ds.ID); err != nil {
		return fmt.Errorf("clearing previous records: %w", err)
	}

	var (
		sample     []pipeline.Row
		batch      = make([]RecordRow, 0, p.opts.BatchSize)
		rowCount   int64
		lastDecile = -1
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.records.Write(ctx, ds.ID, ds.OrganizationID, batch); err != nil {
			return fmt.Errorf("persisting records: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if len(sample) < p.opts.SampleRows {
			sample = append(sample, copyRow(row))
		}

		if cleaner.Clean(&row) {
			continue
		}

		violations := validator.Check(columns, row)
		collector.Observe(row)
		rowCount++

		batch = append(batch, RecordRow{
			RowNumber: rowCount,
			Data:      row.Map(columns),
			Valid:     len(violations) == 0,
		})
		if len(batch) >= p.opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}

		// Coarse checkpoints keyed off byte offset: one event per 10% of
		// the file, scaled into the 10..90 band.
		if ds.FileSize > 0 {
			decile := int(counting.n * 10 / ds.FileSize)
			if decile > 10 {
				decile = 10
			}
			if decile > lastDecile {
				lastDecile = decile
				pct := 10 + decile*8
				p.publish(ctx, ds, models.StatusProcessing, pct,
					fmt.Sprintf("Processed %d rows", rowCount), "")
			}
		}
	}

	if rowCount == 0 {
		return &pipeline.ParseError{Reason: "file contains no data rows"}
	}
	if err := flush(); err != nil {
		return err
	}

	schema := pipeline.InferSchema(columns, sample)
	result := collector.Finalize()
	metrics.AddRowsProcessed(rowCount)

	schemaInfo := map[string]interface{}{
		"columns":          columns,
		"original_columns": rawColumns,
		"type_info":        pipeline.SchemaPayload(schema),
		"cleaning_reports": cleaningPayload(cleaner.Reports()),
		"validation":       validator.Summary(),
	}

	p.publish(ctx, ds, models.StatusProcessing, 95, "Finalizing dataset", "")
	if err := p.datasets.MarkReady(ctx, ds.ID, rowCount, len(columns), schemaInfo, result.Payload()); err != nil {
		return fmt.Errorf("persisting results: %w", err)
	}
	return nil
}

func (p *Processor) publish(ctx context.Context, ds *DatasetMeta, status string, pct int, message, errMsg string) {
	p.publisher.Publish(ctx, models.ProgressEvent{
		Type:           "dataset_update",
		DatasetID:      ds.ID,
		OrganizationID: ds.OrganizationID,
		Status:         status,
		Progress:       pct,
		Message:        message,
		Error:          errMsg,
	})
}

func (p *Processor) cleanerOptions(opts *models.ReprocessOptions) transform.CleanerOptions {
	out := p.policy.CleanerOptions()
	if opts == nil || opts.CleaningOptions == nil {
		return out
	}
	if b, ok := opts.CleaningOptions["trim_whitespace"].(bool); ok {
		out.TrimWhitespace = b
	}
	if b, ok := opts.CleaningOptions["drop_empty_rows"].(bool); ok {
		out.DropEmptyRows = b
	}
	if b, ok := opts.CleaningOptions["drop_duplicates"].(bool); ok {
		out.DropDuplicates = b
	}
	return out
}

func (p *Processor) normalizeColumns(opts *models.ReprocessOptions) bool {
	if opts != nil && opts.NormalizationOptions != nil {
		if b, ok := opts.NormalizationOptions["column_names"].(bool); ok {
			return b
		}
	}
	return p.policy.NormalizeColumnNames()
}

func (p *Processor) validator(opts *models.ReprocessOptions) (*transform.Validator, error) {
	rules := p.policy.Rules()
	if opts != nil && opts.ValidationRules != nil {
		parsed, err := transform.ParseRules(opts.ValidationRules)
		if err != nil {
			return nil, fmt.Errorf("invalid validation rules: %w", err)
		}
		rules = parsed
	}
	return transform.NewValidator(rules), nil
}

func cleaningPayload(reports []transform.CleaningReport) []interface{} {
	out := make([]interface{}, len(reports))
	for i, r := range reports {
		out[i] = map[string]interface{}{
			"operation":     r.Operation,
			"rows_affected": r.RowsAffected,
		}
	}
	return out
}

func copyRow(row pipeline.Row) pipeline.Row {
	values := make([]pipeline.Value, len(row.Values))
	copy(values, row.Values)
	return pipeline.Row{Number: row.Number, Values: values}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
