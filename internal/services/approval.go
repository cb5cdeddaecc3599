package services

import (
	"context"
	"errors"

	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApprovalService gates worker and admin accounts. Admins approve workers,
// superusers approve admins.
type ApprovalService struct {
	store    store.Store
	activity *ActivityLogService
	logger   *zap.SugaredLogger
}

// NewApprovalService creates a new approval service
func NewApprovalService(st store.Store, activity *ActivityLogService, logger *zap.SugaredLogger) *ApprovalService {
	return &ApprovalService{store: st, activity: activity, logger: logger}
}

// Approve marks a worker or admin account as approved
func (s *ApprovalService) Approve(ctx context.Context, p auth.Principal, userID uuid.UUID) (*models.User, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	var action auth.Action
	switch u.Role {
	case models.RoleWorker:
		action = auth.ActionApproveWorker
	case models.RoleAdmin:
		action = auth.ActionApproveAdmin
	default:
		return nil, apperrors.Validation("%s accounts do not require approval", u.Role)
	}
	if err := auth.Authorize(action, p, auth.Relation{}); err != nil {
		return nil, err
	}

	return s.set(ctx, p, u, true)
}

// UnapproveWorker revokes a worker's approval
func (s *ApprovalService) UnapproveWorker(ctx context.Context, p auth.Principal, userID uuid.UUID) (*models.User, error) {
	if err := auth.Authorize(auth.ActionUnapproveWorker, p, auth.Relation{}); err != nil {
		return nil, err
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleWorker {
		return nil, apperrors.Validation("user %s is not a worker", userID)
	}

	return s.set(ctx, p, u, false)
}

func (s *ApprovalService) set(ctx context.Context, p auth.Principal, u *models.User, approved bool) (*models.User, error) {
	if err := s.store.SetApproval(ctx, u.ID, approved); err != nil {
		return nil, apperrors.Internal(err, "failed to update approval")
	}
	u.IsApproved = approved

	s.logger.Infow("Account approval changed",
		"user_id", u.ID,
		"role", u.Role,
		"approved", approved,
		"by", p.UserID,
	)

	desc := "Account approved"
	if !approved {
		desc = "Account approval revoked"
	}
	err := s.activity.Log(ctx, &models.ActivityLog{
		ActorID:           &p.UserID,
		ActivityType:      models.ActivityApproval,
		ActionDescription: desc,
		Metadata:          u.ID.String(),
	})
	if err != nil {
		s.logger.Warnw("Failed to record approval activity", "user_id", u.ID, "error", err)
	}
	return u, nil
}

func (s *ApprovalService) user(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load user")
	}
	return u, nil
}
