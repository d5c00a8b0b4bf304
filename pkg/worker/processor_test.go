package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/common/models"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeStore struct {
	mu       sync.Mutex
	datasets map[string]*DatasetMeta

	failedMessage string
	rowCount      int64
	columnCount   int
	schemaInfo    map[string]interface{}
	statistics    map[string]interface{}
}

func newFakeStore(ds ...*DatasetMeta) *fakeStore {
	s := &fakeStore{datasets: make(map[string]*DatasetMeta)}
	for _, d := range ds {
		s.datasets[d.ID] = d
	}
	return s
}

func (s *fakeStore) Fetch(ctx context.Context, id string) (*DatasetMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[id]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	cp := *ds
	return &cp, nil
}

func (s *fakeStore) MarkProcessing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[id].Status = models.StatusProcessing
	s.rowCount = 0
	s.columnCount = 0
	s.schemaInfo = nil
	s.statistics = nil
	s.failedMessage = ""
	return nil
}

func (s *fakeStore) MarkReady(ctx context.Context, id string, rowCount int64, columnCount int, schemaInfo, statistics map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[id].Status = models.StatusReady
	s.rowCount = rowCount
	s.columnCount = columnCount
	s.schemaInfo = schemaInfo
	s.statistics = statistics
	s.failedMessage = ""
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[id].Status = models.StatusFailed
	s.failedMessage = message
	return nil
}

func (s *fakeStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.datasets[id].Status
}

type fakeRecords struct {
	mu     sync.Mutex
	rows   []RecordRow
	resets int
	writes int
}

func (r *fakeRecords) Reset(ctx context.Context, datasetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = nil
	r.resets++
	return nil
}

func (r *fakeRecords) Write(ctx context.Context, datasetID, organizationID string, rows []RecordRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	r.writes++
	return nil
}

type fakeBlobs map[string][]byte

func (b fakeBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := b[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (p *capturePublisher) Publish(ctx context.Context, event models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) all() []models.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ProgressEvent(nil), p.events...)
}

const salesCSV = `Order ID,Customer Name,Amount,Order Date
1001,Alice,250.50,2024-01-15
1002,Bob,99.99,2024-01-16
1003,Carol,,2024-01-17
1002,Bob,99.99,2024-01-16
,,,
1004,Dave,410.00,2024-01-18
`

func salesMeta(status string) *DatasetMeta {
	return &DatasetMeta{
		ID:             "ds-1",
		OrganizationID: "org-1",
		FileName:       "sales.csv",
		BlobKey:        "datasets/org-1/ds-1/sales.csv",
		Status:         status,
		FileSize:       int64(len(salesCSV)),
	}
}

func salesJob() models.IngestionJob {
	return models.IngestionJob{JobID: "job-1", DatasetID: "ds-1", OrganizationID: "org-1"}
}

func newTestProcessor(store *fakeStore, records *fakeRecords, blobs fakeBlobs, pub *capturePublisher) *Processor {
	return NewProcessor(store, records, blobs, pub, nil, Options{
		SampleRows:  10,
		DistinctCap: 100,
		MaxRows:     1000,
		BatchSize:   2,
	})
}

func TestProcessCSV(t *testing.T) {
	store := newFakeStore(salesMeta(models.StatusUploading))
	records := &fakeRecords{}
	blobs := fakeBlobs{"datasets/org-1/ds-1/sales.csv": []byte(salesCSV)}
	pub := &capturePublisher{}

	p := newTestProcessor(store, records, blobs, pub)
	if err := p.Process(context.Background(), salesJob()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if got := store.status("ds-1"); got != models.StatusReady {
		t.Fatalf("expected ready, got %s", got)
	}

	// Six file rows: one empty dropped, one duplicate dropped.
	if store.rowCount != 4 {
		t.Fatalf("expected 4 rows, got %d", store.rowCount)
	}
	if store.columnCount != 4 {
		t.Fatalf("expected 4 columns, got %d", store.columnCount)
	}
	if len(records.rows) != 4 {
		t.Fatalf("expected 4 persisted records, got %d", len(records.rows))
	}
	if records.resets != 1 {
		t.Fatalf("expected one record reset, got %d", records.resets)
	}

	columns, ok := store.schemaInfo["columns"].([]string)
	if !ok || len(columns) != 4 {
		t.Fatalf("missing columns in schema info: %v", store.schemaInfo["columns"])
	}
	if columns[0] != "order_id" || columns[1] != "customer_name" {
		t.Fatalf("headers not normalized: %v", columns)
	}

	typeInfo := store.schemaInfo["type_info"].(map[string]interface{})
	amount := typeInfo["amount"].(map[string]interface{})
	if amount["type"] != "float" {
		t.Fatalf("amount should infer float, got %v", amount["type"])
	}
	if amount["nullable"] != true {
		t.Fatalf("amount has a null sample, must be nullable")
	}
	orderDate := typeInfo["order_date"].(map[string]interface{})
	if orderDate["type"] != "date" {
		t.Fatalf("order_date should infer date, got %v", orderDate["type"])
	}

	if store.statistics["total_rows"] != int64(4) {
		t.Fatalf("unexpected stats total_rows: %v", store.statistics["total_rows"])
	}

	for _, rec := range records.rows {
		if !rec.Valid {
			t.Fatalf("no rules configured, all rows should be valid")
		}
		if rec.Data["order_id"] == nil {
			t.Fatalf("record missing order_id: %v", rec.Data)
		}
	}

	events := pub.all()
	if len(events) < 3 {
		t.Fatalf("expected progress events, got %d", len(events))
	}
	first, last := events[0], events[len(events)-1]
	if first.Status != models.StatusProcessing || first.Progress != 0 {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if last.Status != models.StatusReady || last.Progress != 100 {
		t.Fatalf("unexpected last event: %+v", last)
	}
	prev := -1
	for _, ev := range events {
		if ev.Progress < prev {
			t.Fatalf("progress went backwards: %v", events)
		}
		prev = ev.Progress
		if ev.DatasetID != "ds-1" || ev.OrganizationID != "org-1" {
			t.Fatalf("event missing routing ids: %+v", ev)
		}
	}
}

func TestProcessDuplicateTerminalJob(t *testing.T) {
	meta := salesMeta(models.StatusReady)
	meta.Generation = 1
	store := newFakeStore(meta)
	records := &fakeRecords{}
	pub := &capturePublisher{}

	job := salesJob()
	job.Generation = 1

	p := newTestProcessor(store, records, fakeBlobs{}, pub)
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("duplicate job should be absorbed: %v", err)
	}

	if got := store.status("ds-1"); got != models.StatusReady {
		t.Fatalf("terminal status must not change, got %s", got)
	}
	if records.resets != 0 {
		t.Fatalf("duplicate job must not touch records")
	}
	if len(pub.all()) != 0 {
		t.Fatalf("duplicate job must not publish events")
	}
}

func TestProcessDuplicateReprocessJob(t *testing.T) {
	// A redelivered reprocess job carries the generation its run completed
	// under, so it is absorbed like any other duplicate.
	meta := salesMeta(models.StatusReady)
	meta.Generation = 2
	store := newFakeStore(meta)
	records := &fakeRecords{}

	job := salesJob()
	job.Reprocess = true
	job.Generation = 2

	p := newTestProcessor(store, records, fakeBlobs{}, &capturePublisher{})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("duplicate reprocess job should be absorbed: %v", err)
	}
	if got := store.status("ds-1"); got != models.StatusReady {
		t.Fatalf("terminal status must not change, got %s", got)
	}
	if records.resets != 0 {
		t.Fatalf("duplicate reprocess job must not touch records")
	}
}

func TestProcessFailedRunClearsPreviousResults(t *testing.T) {
	meta := salesMeta(models.StatusReady)
	meta.Generation = 1
	store := newFakeStore(meta)
	store.rowCount = 4
	store.schemaInfo = map[string]interface{}{"columns": []string{"stale"}}
	store.statistics = map[string]interface{}{"total_rows": int64(4)}

	job := salesJob()
	job.Reprocess = true
	job.Generation = 2

	// Blob store is empty, so the new run fails after the row was reset.
	p := newTestProcessor(store, &fakeRecords{}, fakeBlobs{}, &capturePublisher{})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if got := store.status("ds-1"); got != models.StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if store.schemaInfo != nil || store.statistics != nil || store.rowCount != 0 {
		t.Fatalf("stale derived fields must be cleared on a non-ready dataset")
	}
}

func TestProcessMissingDataset(t *testing.T) {
	p := newTestProcessor(newFakeStore(), &fakeRecords{}, fakeBlobs{}, &capturePublisher{})
	if err := p.Process(context.Background(), salesJob()); err != nil {
		t.Fatalf("job for a deleted dataset should be dropped: %v", err)
	}
}

func TestProcessParseFailure(t *testing.T) {
	meta := salesMeta(models.StatusProcessing)
	store := newFakeStore(meta)
	blobs := fakeBlobs{meta.BlobKey: []byte("\x00\x01\x02 not a csv")}
	pub := &capturePublisher{}

	p := newTestProcessor(store, &fakeRecords{}, blobs, pub)
	if err := p.Process(context.Background(), salesJob()); err != nil {
		t.Fatalf("parse failure is terminal, not retryable: %v", err)
	}

	if got := store.status("ds-1"); got != models.StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if store.failedMessage == "" {
		t.Fatalf("expected a stored failure message")
	}

	events := pub.all()
	last := events[len(events)-1]
	if last.Status != models.StatusFailed || last.Error == "" {
		t.Fatalf("expected failure event with message, got %+v", last)
	}
}

func TestProcessHeaderOnlyFile(t *testing.T) {
	meta := salesMeta(models.StatusProcessing)
	store := newFakeStore(meta)
	blobs := fakeBlobs{meta.BlobKey: []byte("a,b,c\n")}

	p := newTestProcessor(store, &fakeRecords{}, blobs, &capturePublisher{})
	if err := p.Process(context.Background(), salesJob()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := store.status("ds-1"); got != models.StatusFailed {
		t.Fatalf("file without data rows should fail, got %s", got)
	}
	if store.failedMessage != "file contains no data rows" {
		t.Fatalf("unexpected failure message: %q", store.failedMessage)
	}
}

func TestProcessBlobMissing(t *testing.T) {
	store := newFakeStore(salesMeta(models.StatusProcessing))
	p := newTestProcessor(store, &fakeRecords{}, fakeBlobs{}, &capturePublisher{})
	if err := p.Process(context.Background(), salesJob()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := store.status("ds-1"); got != models.StatusFailed {
		t.Fatalf("missing blob should mark the dataset failed, got %s", got)
	}
}

func TestProcessReprocessFromFailed(t *testing.T) {
	meta := salesMeta(models.StatusFailed)
	store := newFakeStore(meta)
	records := &fakeRecords{}
	blobs := fakeBlobs{meta.BlobKey: []byte(salesCSV)}

	job := salesJob()
	job.Reprocess = true
	job.Generation = 1
	job.Options = &models.ReprocessOptions{
		ValidationRules: map[string]interface{}{
			"amount": map[string]interface{}{"required": true},
		},
	}

	p := newTestProcessor(store, records, blobs, &capturePublisher{})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if got := store.status("ds-1"); got != models.StatusReady {
		t.Fatalf("reprocess should reach ready, got %s", got)
	}
	if records.resets != 1 {
		t.Fatalf("reprocess must clear previous records")
	}

	// Row 1003 has no amount and violates the required rule.
	invalid := 0
	for _, rec := range records.rows {
		if !rec.Valid {
			invalid++
		}
	}
	if invalid != 1 {
		t.Fatalf("expected 1 invalid record, got %d", invalid)
	}

	validation := store.schemaInfo["validation"].(map[string]interface{})
	if validation["passed"] != false {
		t.Fatalf("validation summary should report failures: %v", validation)
	}
}

func TestProcessInvalidReprocessRules(t *testing.T) {
	meta := salesMeta(models.StatusProcessing)
	store := newFakeStore(meta)
	blobs := fakeBlobs{meta.BlobKey: []byte(salesCSV)}

	job := salesJob()
	job.Reprocess = true
	job.Generation = 1
	job.Options = &models.ReprocessOptions{
		ValidationRules: map[string]interface{}{
			"amount": map[string]interface{}{"pattern": "("},
		},
	}

	p := newTestProcessor(store, &fakeRecords{}, blobs, &capturePublisher{})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := store.status("ds-1"); got != models.StatusFailed {
		t.Fatalf("bad rules should fail the run, got %s", got)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	meta := salesMeta(models.StatusProcessing)
	store := newFakeStore(meta)
	blobs := fakeBlobs{meta.BlobKey: []byte(salesCSV)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestProcessor(store, &fakeRecords{}, blobs, &capturePublisher{})
	err := p.Process(ctx, salesJob())
	if err == nil {
		t.Fatalf("cancelled run must surface an error so the job is redelivered")
	}
	if got := store.status("ds-1"); got == models.StatusFailed || got == models.StatusReady {
		t.Fatalf("cancelled run must not record a terminal status, got %s", got)
	}
}
