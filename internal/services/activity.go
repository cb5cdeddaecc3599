package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActivityLogService records the lifecycle history of complaints
type ActivityLogService struct {
	store  store.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewActivityLogService creates a new activity log service
func NewActivityLogService(st store.Store, logger *zap.SugaredLogger) *ActivityLogService {
	return &ActivityLogService{store: st, logger: logger, now: time.Now}
}

// Log records an action against a complaint
func (s *ActivityLogService) Log(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	if err := s.store.LogActivity(ctx, entry); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}

	s.logger.Infow("Activity logged",
		"complaint_id", entry.ComplaintID,
		"type", entry.ActivityType,
		"action", entry.ActionDescription,
	)
	return nil
}

// record logs an activity after a committed mutation. The mutation already
// happened, so a failure here is logged rather than returned.
func (s *ActivityLogService) record(ctx context.Context, complaintID uuid.UUID, actor *uuid.UUID, kind, description, metadata string) {
	id := complaintID
	err := s.Log(ctx, &models.ActivityLog{
		ComplaintID:       &id,
		ActorID:           actor,
		ActivityType:      kind,
		ActionDescription: description,
		Metadata:          metadata,
	})
	if err != nil {
		s.logger.Warnw("Failed to record activity", "complaint_id", complaintID, "type", kind, "error", err)
	}
}

// FetchByComplaint returns the most recent activity entries for a complaint
func (s *ActivityLogService) FetchByComplaint(ctx context.Context, complaintID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	return s.store.ListActivity(ctx, complaintID, limit)
}
