package handlers

import (
	"net/http"
	"strconv"

	"github.com/Pranaya-sht/waste-management-system/internal/services"
	"go.uber.org/zap"
)

// ActivityHandler handles activity log endpoints
type ActivityHandler struct {
	svc          *services.ActivityLogService
	complaintSvc *services.ComplaintService
	logger       *zap.SugaredLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(svc *services.ActivityLogService, cs *services.ComplaintService, logger *zap.SugaredLogger) *ActivityHandler {
	return &ActivityHandler{svc: svc, complaintSvc: cs, logger: logger}
}

// ByComplaint handles GET /api/v1/complaints/{id}/activity
func (h *ActivityHandler) ByComplaint(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	// Only callers who can see the complaint can see its history.
	if _, err := h.complaintSvc.Get(r.Context(), principal(r), id); err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 500 {
		limit = n
	}

	logs, err := h.svc.FetchByComplaint(r.Context(), id, limit)
	if err != nil {
		h.logger.Errorw("Failed to fetch activity", "complaint_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch activity")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}
