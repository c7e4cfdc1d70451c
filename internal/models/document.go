// internal/models/document.go
package models

import "time"

type Document struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type"`
	URL          string    `json:"url"`
	UploadedBy   string    `json:"uploaded_by"`
	ProjectID    *string   `json:"project_id,omitempty"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateDocumentForm struct {
	Filename     string `json:"filename" validate:"required,max=255"`
	OriginalName string `json:"original_name" validate:"required,max=255"`
	FileSize     int64  `json:"file_size" validate:"required,min=1"`
	MimeType     string `json:"mime_type" validate:"required,max=100"`
	URL          string `json:"url" validate:"required,url"`
	ProjectID    string `json:"project_id" validate:"omitempty,uuid4"`
	Category     string `json:"category" validate:"required,oneof=contract invoice certificate drawing other"`
}
