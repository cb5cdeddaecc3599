// Package store is the persistence boundary for complaints, ratings, chat
// messages, users and the activity log. Lifecycle races are arbitrated here:
// status changes are compare-and-set on the complaint row.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write
	ErrDuplicate = errors.New("duplicate")
	// ErrStatusMismatch is returned when a compare-and-set finds the row in
	// another status (or past its freshness bound)
	ErrStatusMismatch = errors.New("status mismatch")
)

// Transition is a compare-and-set on a complaint's status.
type Transition struct {
	ComplaintID uuid.UUID
	From        []models.Status
	To          models.Status
	// FreshAfter, when non-nil, additionally requires created_at > *FreshAfter
	FreshAfter *time.Time
	// AssignWorker sets assigned_worker in the same write
	AssignWorker *uuid.UUID
	// ClearAssignment nulls assigned_worker in the same write
	ClearAssignment bool
	// AssignWorkers, when non-nil, replaces the assigned_workers set
	AssignWorkers []uuid.UUID
	At            time.Time
}

// Store is implemented by Postgres and Memory.
type Store interface {
	Ping(ctx context.Context) error

	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error)
	// Transition applies t atomically. On a miss it returns the current row
	// together with ErrStatusMismatch.
	Transition(ctx context.Context, t Transition) (*models.Complaint, error)
	// AddInterest records worker interest while the complaint is Pending and
	// created after freshAfter. Repeated interest is a no-op.
	AddInterest(ctx context.Context, complaintID, workerID uuid.UUID, freshAfter time.Time) error
	// ExpireStale moves every Pending complaint created at or before cutoff to
	// Expired and returns the ids it changed.
	ExpireStale(ctx context.Context, cutoff, now time.Time) ([]uuid.UUID, error)

	SaveUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	SetApproval(ctx context.Context, id uuid.UUID, approved bool) error

	// CreateRating inserts r and folds it into the worker's counters in one
	// transaction, provided the complaint is still Completed and assigned to
	// r.WorkerID. It returns the worker's updated aggregate.
	CreateRating(ctx context.Context, r *models.Rating) (models.RatingAggregate, error)
	// AggregateRatings computes the aggregate from rating rows
	AggregateRatings(ctx context.Context, workerID uuid.UUID) (models.RatingAggregate, error)
	// SetRatingCounters overwrites the worker's stored counters
	SetRatingCounters(ctx context.Context, agg models.RatingAggregate) error
	// ListRatings returns every rating ordered by created_at, id
	ListRatings(ctx context.Context) ([]models.Rating, error)

	AppendMessage(ctx context.Context, m *models.ChatMessage) error
	ListMessages(ctx context.Context, complaintID uuid.UUID) ([]models.ChatMessage, error)

	LogActivity(ctx context.Context, a *models.ActivityLog) error
	ListActivity(ctx context.Context, complaintID uuid.UUID, limit int) ([]models.ActivityLog, error)
}

func statusStrings(ss []models.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
