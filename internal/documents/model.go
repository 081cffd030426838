package documents

import "time"

// Status is the document lifecycle state driven by the ingestion pipeline.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known document status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// Document represents an uploaded file owned by a user.
type Document struct {
	ID               string         `json:"id"`
	FileName         string         `json:"fileName"`
	OriginalFilename string         `json:"originalFileName"`
	MimeType         string         `json:"mimeType"`
	SizeBytes        int64          `json:"sizeBytes"`
	StorageKey       string         `json:"-"`
	Status           Status         `json:"status"`
	Description      string         `json:"description,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	UploadedBy       string         `json:"uploadedBy"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}
