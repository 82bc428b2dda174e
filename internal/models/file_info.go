package models

import "time"

// File kinds accepted by the wizard.
const (
	FileKindTemplate = "template"
	FileKindBatch    = "batch"
)

// File statuses.
const (
	FileStatusUploaded  = "uploaded"
	FileStatusAnalyzed  = "analyzed"
	FileStatusProcessed = "processed"
	FileStatusError     = "error"
)

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind,omitempty"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"`
}
