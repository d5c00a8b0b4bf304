package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	datasetsSubmitted atomic.Int64
	datasetsReady     atomic.Int64
	datasetsFailed    atomic.Int64
	duplicateJobs     atomic.Int64
	enqueueRetries    atomic.Int64
	rowsProcessed     atomic.Int64
)

func IncSubmitted() { datasetsSubmitted.Add(1) }

func IncReady() { datasetsReady.Add(1) }

func IncFailed() { datasetsFailed.Add(1) }

func IncDuplicateJob() { duplicateJobs.Add(1) }

func IncEnqueueRetry() { enqueueRetries.Add(1) }

func AddRowsProcessed(n int64) { rowsProcessed.Add(n) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP datapilot_datasets_submitted_total Datasets accepted for processing.\n")
	fmt.Fprintf(w, "# TYPE datapilot_datasets_submitted_total counter\n")
	fmt.Fprintf(w, "datapilot_datasets_submitted_total %d\n", datasetsSubmitted.Load())

	fmt.Fprintf(w, "# HELP datapilot_datasets_ready_total Datasets that reached the ready status.\n")
	fmt.Fprintf(w, "# TYPE datapilot_datasets_ready_total counter\n")
	fmt.Fprintf(w, "datapilot_datasets_ready_total %d\n", datasetsReady.Load())

	fmt.Fprintf(w, "# HELP datapilot_datasets_failed_total Datasets that reached the failed status.\n")
	fmt.Fprintf(w, "# TYPE datapilot_datasets_failed_total counter\n")
	fmt.Fprintf(w, "datapilot_datasets_failed_total %d\n", datasetsFailed.Load())

	fmt.Fprintf(w, "# HELP datapilot_duplicate_jobs_total Ingestion jobs skipped because the dataset was already terminal.\n")
	fmt.Fprintf(w, "# TYPE datapilot_duplicate_jobs_total counter\n")
	fmt.Fprintf(w, "datapilot_duplicate_jobs_total %d\n", duplicateJobs.Load())

	fmt.Fprintf(w, "# HELP datapilot_enqueue_retries_total Retried job enqueue attempts.\n")
	fmt.Fprintf(w, "# TYPE datapilot_enqueue_retries_total counter\n")
	fmt.Fprintf(w, "datapilot_enqueue_retries_total %d\n", enqueueRetries.Load())

	fmt.Fprintf(w, "# HELP datapilot_rows_processed_total Data rows streamed through the pipeline.\n")
	fmt.Fprintf(w, "# TYPE datapilot_rows_processed_total counter\n")
	fmt.Fprintf(w, "datapilot_rows_processed_total %d\n", rowsProcessed.Load())
}

func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WritePrometheus(w)
	}
}
