// internal/handlers/auth.go
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"buildbidz.in/internal/auth"
	"buildbidz.in/internal/config"
	"buildbidz.in/internal/db"
	"buildbidz.in/internal/middleware"
	"buildbidz.in/internal/models"
	"buildbidz.in/internal/validation"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

type AuthHandlers struct {
	SessionManager *scs.SessionManager
	AppConfig      *config.Config
}

func NewAuthHandlers(sm *scs.SessionManager, cfg *config.Config) *AuthHandlers {
	return &AuthHandlers{
		SessionManager: sm,
		AppConfig:      cfg,
	}
}

func (h *AuthHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	var form models.RegisterForm
	if err := decodeJSON(w, r, &form); err != nil {
		slog.Warn("Malformed registration payload", "error", err)
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}

	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		slog.Warn("Registration validation failed", "errors", validationErrors)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}

	email := strings.ToLower(strings.TrimSpace(form.Email))
	existing, err := db.GetUserByEmail(email)
	if err != nil {
		slog.Error("Failed to check existing user", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "An account with this email already exists.")
		return
	}

	hashedPassword, err := auth.HashPassword(form.Password)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     form.Username,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         form.Role,
	}
	if form.CompanyName != "" {
		user.CompanyName = &form.CompanyName
	}

	if err := db.CreateUser(user); err != nil {
		slog.Error("Failed to create user", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account.")
		return
	}

	if err := h.SessionManager.RenewToken(r.Context()); err != nil {
		slog.Error("Failed to renew session token after registration", "error", err)
	}
	h.SessionManager.Put(r.Context(), string(middleware.UserIDContextKey), user.ID)

	slog.Info("User registered", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	var form models.LoginForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}

	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed.", "fields": validationErrors})
		return
	}

	email := strings.ToLower(strings.TrimSpace(form.Email))
	user, err := db.GetUserByEmail(email)
	if err != nil {
		slog.Error("Failed to load user for login", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	if user == nil || !auth.CheckPasswordHash(form.Password, user.PasswordHash) {
		slog.Warn("Failed login attempt", "email", email)
		writeError(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	if err := h.SessionManager.RenewToken(r.Context()); err != nil {
		slog.Error("Failed to renew session token on login", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	h.SessionManager.Put(r.Context(), string(middleware.UserIDContextKey), user.ID)

	slog.Info("User logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	h.SessionManager.Remove(r.Context(), string(middleware.UserIDContextKey))
	if err := h.SessionManager.Destroy(r.Context()); err != nil {
		slog.Error("Failed to destroy session on logout", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// MeHandler returns the authenticated user's own profile.
func (h *AuthHandlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	user := middleware.CurrentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
