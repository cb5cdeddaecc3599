// Package handlers contains HTTP request handlers for the waste management API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondAppError maps a service error onto its HTTP status. Internal errors
// are logged and their detail withheld.
func respondAppError(w http.ResponseWriter, logger *zap.SugaredLogger, r *http.Request, err error) {
	e := apperrors.From(err)
	status := apperrors.HTTPStatus(e.Kind)
	if e.Kind == apperrors.KindInternal {
		logger.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, status, map[string]*apperrors.Error{"error": e})
}

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Validation("invalid request body: %v", err)
	}
	return nil
}

// uuidParam parses a chi URL parameter as a UUID
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid %s", name)
	}
	return id, nil
}

// principal returns the authenticated caller. RequireAuth guarantees one on
// every route that uses it.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
