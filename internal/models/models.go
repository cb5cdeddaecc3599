// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema in internal/database/schema.sql.
package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a complaint
type Status string

const (
	StatusPending    Status = "Pending"
	StatusAccepted   Status = "Accepted"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusExpired    Status = "Expired"
	StatusDenied     Status = "Denied"
	StatusIncomplete Status = "Incomplete"
)

// ParseStatus returns the Status matching s, or false if s is not a known status
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted,
		StatusExpired, StatusDenied, StatusIncomplete:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further lifecycle transition is permitted
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusExpired, StatusDenied, StatusIncomplete:
		return true
	}
	return false
}

// HoldsAssignment reports whether a complaint in this status carries an assigned worker
func (s Status) HoldsAssignment() bool {
	return s == StatusAccepted || s == StatusInProgress || s == StatusCompleted
}

// WasteType is the waste category of a complaint
type WasteType string

const (
	WasteOrganic      WasteType = "Organic"
	WastePlastic      WasteType = "Plastic"
	WasteConstruction WasteType = "Construction"
	WasteOther        WasteType = "Other"
)

// Quantity is the volume tier of a complaint
type Quantity string

const (
	QuantityLight  Quantity = "Light"
	QuantityMedium Quantity = "Medium"
	QuantityHeavy  Quantity = "Heavy"
)

// Role is the account role resolved by the auth collaborator
type Role string

const (
	RoleCitizen   Role = "Citizen"
	RoleWorker    Role = "Worker"
	RoleAdmin     Role = "Admin"
	RoleSuperuser Role = "Superuser"
)

// Location is a WGS84 coordinate pair
type Location struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// Complaint is a citizen's waste report and its workflow state.
type Complaint struct {
	ID                 uuid.UUID   `json:"id" db:"id"`
	CitizenID          uuid.UUID   `json:"citizen_id" db:"citizen_id"`
	Title              string      `json:"title" db:"title"`
	Description        string      `json:"description" db:"description"`
	WasteType          WasteType   `json:"waste_type" db:"waste_type"`
	Quantity           Quantity    `json:"quantity" db:"quantity"`
	Location           *Location   `json:"location,omitempty"`
	Media              []string    `json:"media" db:"media"`
	DesiredCleanupTime *time.Time  `json:"desired_cleanup_time,omitempty" db:"desired_cleanup_time"`
	Status             Status      `json:"status" db:"status"`
	AssignedWorker     *uuid.UUID  `json:"assigned_worker,omitempty" db:"assigned_worker"`
	AssignedWorkers    []uuid.UUID `json:"assigned_workers"`
	InterestedWorkers  []uuid.UUID `json:"interested_workers"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// IsStale reports whether a Pending complaint has outlived ttl at now
func (c *Complaint) IsStale(now time.Time, ttl time.Duration) bool {
	return c.Status == StatusPending && !c.CreatedAt.After(now.Add(-ttl))
}

// IsAssignee reports whether worker is the assigned worker or one of the assigned workers
func (c *Complaint) IsAssignee(worker uuid.UUID) bool {
	if c.AssignedWorker != nil && *c.AssignedWorker == worker {
		return true
	}
	for _, w := range c.AssignedWorkers {
		if w == worker {
			return true
		}
	}
	return false
}

// ComplaintSubmission is the request body for filing a new complaint
type ComplaintSubmission struct {
	Title              string     `json:"title" validate:"max=200"`
	Description        string     `json:"description"`
	WasteType          WasteType  `json:"waste_type" validate:"required,oneof=Organic Plastic Construction Other"`
	Quantity           Quantity   `json:"quantity" validate:"omitempty,oneof=Light Medium Heavy"`
	Location           *Location  `json:"location" validate:"omitempty"`
	Media              []string   `json:"media" validate:"omitempty,dive,required"`
	DesiredCleanupTime *time.Time `json:"desired_cleanup_time"`
}

// AcceptRequest carries the accepting worker's position
type AcceptRequest struct {
	WorkerLat *float64 `json:"worker_lat" validate:"omitempty,latitude"`
	WorkerLng *float64 `json:"worker_lng" validate:"omitempty,longitude"`
}

// AssignWorkersRequest is the citizen's multi-assignment body
type AssignWorkersRequest struct {
	WorkerIDs []uuid.UUID `json:"worker_ids"`
}

// StatusUpdateRequest is the body of an update_status call
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// RatingSubmission is the body of a rate call
type RatingSubmission struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ComplaintFilter scopes a complaint listing
type ComplaintFilter struct {
	CitizenID *uuid.UUID
	// WorkerID lists complaints assigned to the worker plus every Pending complaint
	WorkerID *uuid.UUID
	Status   *Status
	// PendingFreshAfter drops Pending complaints created at or before it
	PendingFreshAfter *time.Time
	Limit             int
}

// Rating is a citizen's score for a completed complaint.
type Rating struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ComplaintID uuid.UUID `json:"complaint_id" db:"complaint_id"`
	WorkerID    uuid.UUID `json:"worker_id" db:"worker_id"`
	CitizenID   uuid.UUID `json:"citizen_id" db:"citizen_id"`
	Score       int       `json:"rating" db:"score"`
	Comment     string    `json:"comment,omitempty" db:"comment"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ChatMessage is a persisted message in a complaint's room.
type ChatMessage struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ComplaintID uuid.UUID  `json:"complaint_id" db:"complaint_id"`
	SenderID    uuid.UUID  `json:"sender" db:"sender_id"`
	ReceiverID  *uuid.UUID `json:"receiver,omitempty" db:"receiver_id"`
	Body        string     `json:"message" db:"body"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// User is the subset of an account the core relies on; it also carries a
// worker's rating aggregate.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Role         Role      `json:"role" db:"role"`
	IsApproved   bool      `json:"is_approved" db:"is_approved"`
	RatingSum    int64     `json:"rating_sum" db:"rating_sum"`
	TotalRatings int64     `json:"total_ratings" db:"total_ratings"`
}

// Aggregate returns the user's rating aggregate
func (u *User) Aggregate() RatingAggregate {
	return RatingAggregate{WorkerID: u.ID, Sum: u.RatingSum, Count: u.TotalRatings}
}

// RatingAggregate is the exact integer state behind a worker's mean rating
type RatingAggregate struct {
	WorkerID uuid.UUID `json:"worker_id"`
	Sum      int64     `json:"rating_sum"`
	Count    int64     `json:"total_ratings"`
}

// Mean returns Sum/Count, or 0 when there are no ratings
func (a RatingAggregate) Mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return float64(a.Sum) / float64(a.Count)
}

// WorkerRating is the presentation form of a RatingAggregate
type WorkerRating struct {
	RatingAggregate
	Rating float64 `json:"rating"`
}

// Present rounds the mean to two decimals for display
func (a RatingAggregate) Present() WorkerRating {
	return WorkerRating{RatingAggregate: a, Rating: math.Round(a.Mean()*100) / 100}
}

// ActivityLog is one entry in a complaint's lifecycle history
type ActivityLog struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	ComplaintID       *uuid.UUID `json:"complaint_id,omitempty" db:"complaint_id"`
	ActorID           *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	ActivityType      string     `json:"activity_type" db:"activity_type"`
	ActionDescription string     `json:"action_description" db:"action_description"`
	Metadata          string     `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// Activity types written by the services
const (
	ActivitySubmission = "submission"
	ActivityExpired    = "expired"
	ActivityInterest   = "interest"
	ActivityAccepted   = "accepted"
	ActivityAssigned   = "assigned"
	ActivityStatus     = "status_change"
	ActivityRated      = "rated"
	ActivityApproval   = "approval"
)

// MerkleProof contains the Merkle proof for a specific rating leaf
type MerkleProof struct {
	LeafHash string      `json:"leaf_hash"`
	Root     string      `json:"root"`
	Proof    []ProofStep `json:"proof"`
	Index    int         `json:"index"`
	Verified bool        `json:"verified"`
}

// ProofStep is a single step in a Merkle proof path
type ProofStep struct {
	Hash     string `json:"hash"`
	Position string `json:"position"` // "left" | "right"
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Database   string `json:"database"`
	Redis      string `json:"redis,omitempty"`
	MerkleRoot string `json:"merkle_root,omitempty"`
}
