package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"go.uber.org/zap"
)

const version = "1.0.0"

var startTime = time.Now()

// Pinger is anything whose reachability the readiness probe reports
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints
type HealthHandler struct {
	db     Pinger
	redis  Pinger // nil when Redis is not configured
	merkle interface{ GetRoot() string }
	logger *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. redis may be nil.
func NewHealthHandler(db Pinger, redis Pinger, merkle interface{ GetRoot() string }, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, merkle: merkle, logger: logger}
}

// Check handles GET /api/v1/health (liveness probe)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:   "ready",
		Version:  version,
		Uptime:   time.Since(startTime).String(),
		Database: "connected",
	}
	if h.merkle != nil {
		status.MerkleRoot = h.merkle.GetRoot()
	}

	code := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warnw("Readiness: database unreachable", "error", err)
		status.Status, status.Database = "not ready", "disconnected"
		code = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		status.Redis = "connected"
		if err := h.redis.Ping(r.Context()); err != nil {
			h.logger.Warnw("Readiness: redis unreachable", "error", err)
			status.Status, status.Redis = "not ready", "disconnected"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, status)
}
