// internal/handlers/documents.go
package handlers

import (
	"log/slog"
	"net/http"

	"buildbidz.in/internal/db"
	"buildbidz.in/internal/middleware"
	"buildbidz.in/internal/models"
	"buildbidz.in/internal/validation"
)

type DocumentHandlers struct{}

func NewDocumentHandlers() *DocumentHandlers {
	return &DocumentHandlers{}
}

// DocumentsHandler dispatches /api/documents: POST registers document
// metadata (files themselves live in external storage), GET lists documents
// for a project (?project_id=...).
func (h *DocumentHandlers) DocumentsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createDocument(w, r)
	case http.MethodGet:
		h.listDocuments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

func (h *DocumentHandlers) createDocument(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var form models.CreateDocumentForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}

	if form.ProjectID != "" {
		project, err := db.GetProjectByID(form.ProjectID)
		if err != nil {
			slog.Error("Failed to load project for document", "project_id", form.ProjectID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to register document.")
			return
		}
		if project == nil {
			writeError(w, http.StatusNotFound, "Project not found.")
			return
		}
	}

	doc := &models.Document{
		Filename:     form.Filename,
		OriginalName: form.OriginalName,
		FileSize:     form.FileSize,
		MimeType:     form.MimeType,
		URL:          form.URL,
		UploadedBy:   user.ID,
		Category:     form.Category,
	}
	if form.ProjectID != "" {
		doc.ProjectID = &form.ProjectID
	}

	if err := db.CreateDocument(doc); err != nil {
		slog.Error("Failed to register document", "uploaded_by", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to register document.")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentUser(r) == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "Missing project_id.")
		return
	}

	docs, err := db.ListDocumentsByProject(projectID)
	if err != nil {
		slog.Error("Failed to list documents", "project_id", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list documents.")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}
