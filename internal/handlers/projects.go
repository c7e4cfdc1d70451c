// internal/handlers/projects.go
package handlers

import (
	"log/slog"
	"net/http"

	"buildbidz.in/internal/config"
	"buildbidz.in/internal/db"
	"buildbidz.in/internal/middleware"
	"buildbidz.in/internal/models"
	"buildbidz.in/internal/notify"
	"buildbidz.in/internal/validation"

	"github.com/shopspring/decimal"
)

type ProjectHandlers struct {
	AppConfig *config.Config
	Notifier  *notify.Hub
}

func NewProjectHandlers(cfg *config.Config, hub *notify.Hub) *ProjectHandlers {
	return &ProjectHandlers{AppConfig: cfg, Notifier: hub}
}

// ProjectsHandler dispatches /api/projects by method: POST creates, GET lists.
func (h *ProjectHandlers) ProjectsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createProject(w, r)
	case http.MethodGet:
		h.listProjects(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

func (h *ProjectHandlers) createProject(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	if !user.IsBuyer() {
		writeError(w, http.StatusForbidden, "Only buyers can create projects.")
		return
	}

	var form models.CreateProjectForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}

	budget, err := decimal.NewFromString(form.Budget)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid budget amount.")
		return
	}

	status := models.ProjectStatusOpen
	if form.Draft {
		status = models.ProjectStatusDraft
	}

	project := &models.Project{
		Title:       form.Title,
		Description: form.Description,
		Category:    form.Category,
		Budget:      budget,
		Currency:    form.Currency,
		Status:      status,
		OwnerID:     user.ID,
	}
	if form.Location != "" {
		project.Location = &form.Location
	}

	if err := db.CreateProject(project); err != nil {
		slog.Error("Failed to create project", "owner_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create project.")
		return
	}

	h.Notifier.Publish("project.created", map[string]any{"project_id": project.ID, "owner_id": user.ID})
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandlers) listProjects(w http.ResponseWriter, r *http.Request) {
	ownerID := ""
	if r.URL.Query().Get("mine") == "true" {
		user := middleware.CurrentUser(r)
		if user == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		ownerID = user.ID
	}

	projects, err := db.ListProjects(ownerID, 50)
	if err != nil {
		slog.Error("Failed to list projects", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list projects.")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// ProjectDetailHandler serves /api/projects/detail?id=...
func (h *ProjectHandlers) ProjectDetailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing project id.")
		return
	}

	project, err := db.GetProjectByID(id)
	if err != nil {
		slog.Error("Failed to load project", "project_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load project.")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "Project not found.")
		return
	}

	// Drafts are visible to their owner only.
	if project.Status == models.ProjectStatusDraft {
		user := middleware.CurrentUser(r)
		if user == nil || user.ID != project.OwnerID {
			writeError(w, http.StatusNotFound, "Project not found.")
			return
		}
	}
	writeJSON(w, http.StatusOK, project)
}

// UpdateProjectStatusHandler moves a project along its lifecycle: publishing
// a draft, cancelling, starting or completing work. Awarding is not reachable
// from here. POST /api/projects/status?id=...&status=...
func (h *ProjectHandlers) UpdateProjectStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	id := r.URL.Query().Get("id")
	next := models.ProjectStatus(r.URL.Query().Get("status"))
	if id == "" || next == "" {
		writeError(w, http.StatusBadRequest, "Missing project id or status.")
		return
	}

	project, err := db.GetProjectByID(id)
	if err != nil {
		slog.Error("Failed to load project for status update", "project_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load project.")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "Project not found.")
		return
	}
	if project.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, "Only the project owner can change its status.")
		return
	}
	if !project.Status.CanTransitionTo(next) {
		writeError(w, http.StatusConflict, "Status change is not allowed from the current state.")
		return
	}

	if err := db.UpdateProjectStatus(id, next); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update project status.")
		return
	}

	slog.Info("Project status updated", "project_id", id, "from", project.Status, "to", next)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(next)})
}

type awardForm struct {
	ProjectID string `json:"project_id" validate:"required,uuid4"`
	BidID     string `json:"bid_id" validate:"required,uuid4"`
}

// AwardProjectHandler lets the owner award a bid directly, without going
// through a payment order. The award transition is the same atomic one the
// payment path uses.
func (h *ProjectHandlers) AwardProjectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var form awardForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}

	project, err := db.GetProjectByID(form.ProjectID)
	if err != nil {
		slog.Error("Failed to load project for award", "project_id", form.ProjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load project.")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "Project not found.")
		return
	}
	if project.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, "Only the project owner can award a bid.")
		return
	}

	applied, err := db.AwardProjectDirect(form.ProjectID, form.BidID, user.ID)
	if err != nil {
		slog.Error("Failed to award project", "project_id", form.ProjectID, "bid_id", form.BidID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to award project.")
		return
	}
	if !applied {
		writeError(w, http.StatusConflict, "Bid is not pending or the project is already awarded.")
		return
	}

	h.Notifier.Publish("project.awarded", map[string]any{"project_id": form.ProjectID, "bid_id": form.BidID})
	slog.Info("Project awarded directly", "project_id", form.ProjectID, "bid_id", form.BidID, "owner_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "awarded", "bid_id": form.BidID})
}
