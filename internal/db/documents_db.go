// internal/db/documents_db.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"buildbidz.in/internal/models"

	"github.com/google/uuid"
)

func CreateDocument(doc *models.Document) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	query := `INSERT INTO documents (id, filename, original_name, file_size, mime_type, url, uploaded_by, project_id, category, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := DB.Exec(query,
		doc.ID, doc.Filename, doc.OriginalName, doc.FileSize, doc.MimeType,
		doc.URL, doc.UploadedBy, sqlNullString(doc.ProjectID), doc.Category, now,
	)
	if err != nil {
		slog.Error("Failed to create document", "filename", doc.Filename, "uploaded_by", doc.UploadedBy, "error", err)
		return fmt.Errorf("failed to create document: %w", err)
	}
	doc.CreatedAt = now
	return nil
}

func ListDocumentsByProject(projectID string) ([]models.Document, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	query := `SELECT id, filename, original_name, file_size, mime_type, url, uploaded_by, project_id, category, created_at
	          FROM documents WHERE project_id = ? ORDER BY created_at DESC`
	rows, err := DB.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var pid sql.NullString
		if err := rows.Scan(&d.ID, &d.Filename, &d.OriginalName, &d.FileSize, &d.MimeType, &d.URL, &d.UploadedBy, &pid, &d.Category, &d.CreatedAt); err != nil {
			slog.Error("Failed to scan document row", "error", err)
			continue
		}
		if pid.Valid {
			d.ProjectID = &pid.String
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}
