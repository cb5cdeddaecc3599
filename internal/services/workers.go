package services

import (
	"context"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"go.uber.org/zap"
)

// ExpiryWorker periodically expires Pending complaints past their TTL
type ExpiryWorker struct {
	complaints *ComplaintService
	logger     *zap.SugaredLogger
}

// NewExpiryWorker creates a new background expiry worker
func NewExpiryWorker(cs *ComplaintService, logger *zap.SugaredLogger) *ExpiryWorker {
	return &ExpiryWorker{complaints: cs, logger: logger}
}

// Start runs the sweep every interval until ctx is cancelled
func (w *ExpiryWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	if _, err := w.complaints.ExpireStale(ctx); err != nil {
		w.logger.Errorw("Expiry sweep failed", "error", err)
	}
}

// IntegrityWorker periodically rebuilds the rating Merkle tree and repairs
// worker rating counters that have drifted from the rating rows.
type IntegrityWorker struct {
	merkleSvc *MerkleService
	ratingSvc *RatingService
	store     store.Store
	logger    *zap.SugaredLogger
}

// NewIntegrityWorker creates a new background integrity worker
func NewIntegrityWorker(ms *MerkleService, rs *RatingService, st store.Store, logger *zap.SugaredLogger) *IntegrityWorker {
	return &IntegrityWorker{merkleSvc: ms, ratingSvc: rs, store: st, logger: logger}
}

// Start begins the periodic rebuild loop
func (w *IntegrityWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial build
	w.Rebuild(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Integrity worker stopped")
			return
		case <-ticker.C:
			w.Rebuild(ctx)
		}
	}
}

// Rebuild runs one integrity pass
func (w *IntegrityWorker) Rebuild(ctx context.Context) {
	w.logger.Debug("Rebuilding rating Merkle tree...")

	ratings, err := w.store.ListRatings(ctx)
	if err != nil {
		w.logger.Errorw("Failed to load rating log", "error", err)
		return
	}
	w.merkleSvc.BuildFromRatings(ratings)

	repaired, err := w.ratingSvc.Audit(ctx)
	if err != nil {
		w.logger.Errorw("Rating audit failed", "error", err)
		return
	}
	w.logger.Infow("Integrity pass complete", "ratings", len(ratings), "repaired_workers", repaired)
}
