package handlers

import (
	"net/http"
	"strconv"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/services"
	"go.uber.org/zap"
)

// ComplaintHandler handles complaint lifecycle endpoints
type ComplaintHandler struct {
	complaintSvc *services.ComplaintService
	logger       *zap.SugaredLogger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(cs *services.ComplaintService, logger *zap.SugaredLogger) *ComplaintHandler {
	return &ComplaintHandler{complaintSvc: cs, logger: logger}
}

// Submit handles POST /api/v1/complaints
func (h *ComplaintHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.ComplaintSubmission
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	complaint, err := h.complaintSvc.Create(r.Context(), principal(r), &req)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, complaint)
}

// List handles GET /api/v1/complaints?status=&limit=
func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.complaintSvc.List(r.Context(), principal(r), r.URL.Query().Get("status"), limit)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/complaints/{id}
func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	complaint, err := h.complaintSvc.Get(r.Context(), principal(r), id)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, complaint)
}

// Interest handles POST /api/v1/complaints/{id}/interest
func (h *ComplaintHandler) Interest(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	complaint, err := h.complaintSvc.ExpressInterest(r.Context(), principal(r), id)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, complaint)
}

// Accept handles POST /api/v1/complaints/{id}/accept
func (h *ComplaintHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	var req models.AcceptRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	complaint, err := h.complaintSvc.Accept(r.Context(), principal(r), id, &req)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, complaint)
}

// AssignWorkers handles POST /api/v1/complaints/{id}/assign_workers
func (h *ComplaintHandler) AssignWorkers(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	var req models.AssignWorkersRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	complaint, err := h.complaintSvc.AssignWorkers(r.Context(), principal(r), id, &req)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, complaint)
}

// UpdateStatus handles POST /api/v1/complaints/{id}/update_status
func (h *ComplaintHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	var req models.StatusUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	complaint, err := h.complaintSvc.UpdateStatus(r.Context(), principal(r), id, &req)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, complaint)
}
