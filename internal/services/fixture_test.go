package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	st         *store.Memory
	clock      *testClock
	activity   *ActivityLogService
	complaints *ComplaintService
	ratings    *RatingService
	approvals  *ApprovalService
	chat       *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop().Sugar()
	st := store.NewMemory()
	clock := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}

	activity := NewActivityLogService(st, logger)
	activity.now = clock.Now
	ratings := NewRatingService(st, activity, logger)
	ratings.now = clock.Now
	chat := NewChatService(st, logger)
	chat.now = clock.Now

	return &fixture{
		st:       st,
		clock:    clock,
		activity: activity,
		complaints: NewComplaintService(st, activity, logger, ComplaintOptions{
			TTL: DefaultComplaintTTL,
			Now: clock.Now,
		}),
		ratings:   ratings,
		approvals: NewApprovalService(st, activity, logger),
		chat:      chat,
	}
}

func (f *fixture) user(t *testing.T, role models.Role, approved bool) auth.Principal {
	t.Helper()
	u := &models.User{
		ID:         uuid.New(),
		Username:   string(role) + "-" + uuid.NewString()[:4],
		Role:       role,
		IsApproved: approved,
	}
	require.NoError(t, f.st.SaveUser(context.Background(), u))
	return auth.Principal{UserID: u.ID, Username: u.Username, Role: role, IsApproved: approved}
}

func (f *fixture) submit(t *testing.T, citizen auth.Principal) *models.Complaint {
	t.Helper()
	c, err := f.complaints.Create(context.Background(), citizen, &models.ComplaintSubmission{
		Title:     "Overflowing bin",
		WasteType: models.WastePlastic,
		Location:  &models.Location{Lat: 27.7172, Lng: 85.3240},
	})
	require.NoError(t, err)
	return c
}

// complete drives a complaint from Pending to Completed with worker
func (f *fixture) complete(t *testing.T, c *models.Complaint, worker auth.Principal) {
	t.Helper()
	ctx := context.Background()
	_, err := f.complaints.Accept(ctx, worker, c.ID, nil)
	require.NoError(t, err)
	_, err = f.complaints.UpdateStatus(ctx, worker, c.ID, &models.StatusUpdateRequest{Status: string(models.StatusInProgress)})
	require.NoError(t, err)
	_, err = f.complaints.UpdateStatus(ctx, worker, c.ID, &models.StatusUpdateRequest{Status: string(models.StatusCompleted)})
	require.NoError(t, err)
}
