package handlers

import (
	"net/http"

	"github.com/Pranaya-sht/waste-management-system/internal/services"
	"go.uber.org/zap"
)

// UserHandler handles account approval endpoints
type UserHandler struct {
	approvalSvc *services.ApprovalService
	logger      *zap.SugaredLogger
}

// NewUserHandler creates a new user handler
func NewUserHandler(as *services.ApprovalService, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{approvalSvc: as, logger: logger}
}

// Approve handles POST /api/v1/users/{id}/approve
func (h *UserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	u, err := h.approvalSvc.Approve(r.Context(), principal(r), id)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// UnapproveWorker handles POST /api/v1/users/{id}/unapprove_worker
func (h *UserHandler) UnapproveWorker(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	u, err := h.approvalSvc.UnapproveWorker(r.Context(), principal(r), id)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}
