package models

// Dataset lifecycle. `uploading` and `processing` are transient; `ready` and
// `failed` are terminal and only an explicit reprocess re-enters the
// pipeline from a terminal status.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

func IsTerminalStatus(status string) bool {
	return status == StatusReady || status == StatusFailed
}
