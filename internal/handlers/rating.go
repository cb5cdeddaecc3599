package handlers

import (
	"net/http"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/services"
	"go.uber.org/zap"
)

// RatingHandler handles rating submission and worker aggregate endpoints
type RatingHandler struct {
	ratingSvc *services.RatingService
	logger    *zap.SugaredLogger
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(rs *services.RatingService, logger *zap.SugaredLogger) *RatingHandler {
	return &RatingHandler{ratingSvc: rs, logger: logger}
}

// Rate handles POST /api/v1/complaints/{id}/rate
func (h *RatingHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	var req models.RatingSubmission
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	rating, agg, err := h.ratingSvc.Submit(r.Context(), principal(r), id, &req)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"rating": rating,
		"worker": agg,
	})
}

// WorkerRating handles GET /api/v1/workers/{id}/rating
func (h *RatingHandler) WorkerRating(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	agg, err := h.ratingSvc.WorkerRating(r.Context(), id)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, agg)
}

// Recompute handles POST /api/v1/workers/{id}/rating/recompute
func (h *RatingHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	agg, err := h.ratingSvc.Recompute(r.Context(), principal(r), id)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, agg)
}
