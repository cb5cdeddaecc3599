package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minScore = 1
	maxScore = 5
)

// RatingService records citizen ratings and keeps each worker's running
// (sum, count) aggregate consistent with the rating rows.
type RatingService struct {
	store    store.Store
	activity *ActivityLogService
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewRatingService creates a new rating service
func NewRatingService(st store.Store, activity *ActivityLogService, logger *zap.SugaredLogger) *RatingService {
	return &RatingService{store: st, activity: activity, logger: logger, now: time.Now}
}

// Submit records the owning citizen's rating of a Completed complaint and
// folds it into the assigned worker's aggregate.
func (s *RatingService) Submit(ctx context.Context, p auth.Principal, complaintID uuid.UUID, req *models.RatingSubmission) (*models.Rating, models.WorkerRating, error) {
	var none models.WorkerRating

	c, err := s.store.GetComplaint(ctx, complaintID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, none, apperrors.NotFound("complaint %s not found", complaintID)
	}
	if err != nil {
		return nil, none, apperrors.Internal(err, "failed to load complaint")
	}
	if err := auth.Authorize(auth.ActionRate, p, relationTo(p, c)); err != nil {
		return nil, none, err
	}
	if req == nil || req.Rating < minScore || req.Rating > maxScore {
		return nil, none, apperrors.Validation("rating must be between %d and %d", minScore, maxScore)
	}
	if err := validateStruct(req); err != nil {
		return nil, none, err
	}
	if c.Status != models.StatusCompleted {
		return nil, none, apperrors.InvalidState("only completed complaints can be rated").WithStatus(c.Status)
	}
	if c.AssignedWorker == nil {
		return nil, none, apperrors.InvalidState("complaint has no assigned worker").WithStatus(c.Status)
	}

	r := &models.Rating{
		ID:          uuid.New(),
		ComplaintID: complaintID,
		WorkerID:    *c.AssignedWorker,
		CitizenID:   p.UserID,
		Score:       req.Rating,
		Comment:     strings.TrimSpace(req.Comment),
		CreatedAt:   s.now(),
	}

	agg, err := s.store.CreateRating(ctx, r)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, none, apperrors.Conflict("complaint %s has already been rated", complaintID)
	case errors.Is(err, store.ErrStatusMismatch):
		return nil, none, apperrors.InvalidState("complaint is no longer rateable")
	case errors.Is(err, store.ErrNotFound):
		return nil, none, apperrors.NotFound("worker %s not found", r.WorkerID)
	case err != nil:
		return nil, none, apperrors.Internal(err, "failed to store rating")
	}

	s.logger.Infow("Rating recorded",
		"complaint_id", complaintID,
		"worker_id", r.WorkerID,
		"score", r.Score,
		"total_ratings", agg.Count,
	)
	s.activity.record(ctx, complaintID, &p.UserID, models.ActivityRated,
		fmt.Sprintf("Citizen rated worker %d/5", r.Score), "")
	return r, agg.Present(), nil
}

// WorkerRating returns a worker's stored aggregate
func (s *RatingService) WorkerRating(ctx context.Context, workerID uuid.UUID) (models.WorkerRating, error) {
	u, err := s.worker(ctx, workerID)
	if err != nil {
		return models.WorkerRating{}, err
	}
	return u.Aggregate().Present(), nil
}

// Recompute rebuilds a worker's counters from the rating rows
func (s *RatingService) Recompute(ctx context.Context, p auth.Principal, workerID uuid.UUID) (models.WorkerRating, error) {
	if err := auth.Authorize(auth.ActionAuditRatings, p, auth.Relation{}); err != nil {
		return models.WorkerRating{}, err
	}
	u, err := s.worker(ctx, workerID)
	if err != nil {
		return models.WorkerRating{}, err
	}
	agg, _, err := s.reconcile(ctx, u)
	if err != nil {
		return models.WorkerRating{}, err
	}
	return agg.Present(), nil
}

// Audit compares every worker's counters against the rating rows and repairs
// drift. It returns the number of workers repaired.
func (s *RatingService) Audit(ctx context.Context) (int, error) {
	workers, err := s.store.ListUsers(ctx, models.RoleWorker)
	if err != nil {
		return 0, fmt.Errorf("list workers: %w", err)
	}

	repaired := 0
	for i := range workers {
		_, drifted, err := s.reconcile(ctx, &workers[i])
		if err != nil {
			return repaired, err
		}
		if drifted {
			repaired++
		}
	}
	return repaired, nil
}

func (s *RatingService) reconcile(ctx context.Context, u *models.User) (models.RatingAggregate, bool, error) {
	actual, err := s.store.AggregateRatings(ctx, u.ID)
	if err != nil {
		return actual, false, apperrors.Internal(err, "failed to aggregate ratings")
	}
	stored := u.Aggregate()
	if stored.Sum == actual.Sum && stored.Count == actual.Count {
		return actual, false, nil
	}

	if err := s.store.SetRatingCounters(ctx, actual); err != nil {
		return actual, false, apperrors.Internal(err, "failed to repair rating counters")
	}
	s.logger.Warnw("Rating aggregate drift repaired",
		"worker_id", u.ID,
		"stored_sum", stored.Sum,
		"stored_count", stored.Count,
		"sum", actual.Sum,
		"count", actual.Count,
	)
	return actual, true, nil
}

func (s *RatingService) worker(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("worker %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load worker")
	}
	if u.Role != models.RoleWorker {
		return nil, apperrors.NotFound("worker %s not found", id)
	}
	return u, nil
}
