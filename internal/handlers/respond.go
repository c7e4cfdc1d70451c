// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"buildbidz.in/internal/payments"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// writeServiceError maps the payment error taxonomy onto HTTP statuses.
// Security and integrity failures are hard 400 rejections so the gateway
// never retries them; indeterminate outcomes surface as 502 and must be
// reconciled by hand.
func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *payments.Error
	if !errors.As(err, &svcErr) {
		slog.Error("Unclassified service error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	status := http.StatusInternalServerError
	switch svcErr.Kind {
	case payments.KindNotFound:
		status = http.StatusNotFound
	case payments.KindForbidden:
		status = http.StatusForbidden
	case payments.KindConflict:
		status = http.StatusConflict
	case payments.KindIntegrity, payments.KindSecurity:
		status = http.StatusBadRequest
	case payments.KindIndeterminate:
		status = http.StatusBadGateway
	case payments.KindInternal:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		slog.Error("Payment service internal error", "code", svcErr.Code, "error", err)
		writeJSON(w, status, errorResponse{Error: "Internal server error.", Code: svcErr.Code})
		return
	}
	writeJSON(w, status, errorResponse{Error: svcErr.Message, Code: svcErr.Code})
}
