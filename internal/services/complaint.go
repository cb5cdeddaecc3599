// Package services contains business logic layers.
// Services are called by handlers and interact with the store.
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

// DefaultComplaintTTL is how long a complaint may stay Pending before it expires
const DefaultComplaintTTL = 5 * time.Hour

// statusTransitions lists the targets update_status may move a complaint to
// from each status. Pending -> Accepted is handled by Accept.
var statusTransitions = map[models.Status][]models.Status{
	models.StatusAccepted:   {models.StatusInProgress, models.StatusDenied, models.StatusIncomplete},
	models.StatusInProgress: {models.StatusCompleted, models.StatusDenied, models.StatusIncomplete},
}

// ComplaintOptions tunes the lifecycle engine
type ComplaintOptions struct {
	TTL             time.Duration
	RequireLocation bool
	Now             func() time.Time
}

// ComplaintService owns the complaint lifecycle: submission, interest,
// acceptance, multi-assignment, status updates and expiry.
type ComplaintService struct {
	store    store.Store
	activity *ActivityLogService
	logger   *zap.SugaredLogger

	ttl             time.Duration
	requireLocation bool
	now             func() time.Time
}

// NewComplaintService creates a new complaint service
func NewComplaintService(st store.Store, activity *ActivityLogService, logger *zap.SugaredLogger, opts ComplaintOptions) *ComplaintService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultComplaintTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ComplaintService{
		store:           st,
		activity:        activity,
		logger:          logger,
		ttl:             opts.TTL,
		requireLocation: opts.RequireLocation,
		now:             opts.Now,
	}
}

// Create files a new Pending complaint owned by the calling citizen
func (s *ComplaintService) Create(ctx context.Context, p auth.Principal, req *models.ComplaintSubmission) (*models.Complaint, error) {
	if err := auth.Authorize(auth.ActionCreateComplaint, p, auth.Relation{}); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if s.requireLocation && req.Location == nil {
		return nil, apperrors.Validation("location is required")
	}

	quantity := req.Quantity
	if quantity == "" {
		quantity = models.QuantityLight
	}

	now := s.now()
	c := &models.Complaint{
		ID:                 uuid.New(),
		CitizenID:          p.UserID,
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		WasteType:          req.WasteType,
		Quantity:           quantity,
		Location:           req.Location,
		Media:              req.Media,
		DesiredCleanupTime: req.DesiredCleanupTime,
		Status:             models.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if c.Media == nil {
		c.Media = []string{}
	}

	if err := s.store.CreateComplaint(ctx, c); err != nil {
		return nil, apperrors.Internal(err, "failed to store complaint")
	}

	s.logger.Infow("Complaint submitted", "complaint_id", c.ID, "citizen_id", p.UserID, "waste_type", c.WasteType)
	s.activity.record(ctx, c.ID, &p.UserID, models.ActivitySubmission, "Complaint submitted", "")
	return c, nil
}

// Get returns a complaint the caller may view
func (s *ComplaintService) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(p, c); err != nil {
		return nil, err
	}
	return s.expireIfStale(ctx, c)
}

func (s *ComplaintService) authorizeView(p auth.Principal, c *models.Complaint) error {
	rel := relationTo(p, c)
	if err := auth.Authorize(auth.ActionViewComplaint, p, rel); err != nil {
		return err
	}
	return workerScope(p, c, rel)
}

// workerScope limits workers to Pending complaints and their own assignments
func workerScope(p auth.Principal, c *models.Complaint, rel auth.Relation) error {
	if p.Role == models.RoleWorker && c.Status != models.StatusPending && !rel.IsAssignee {
		return apperrors.Forbidden("complaint is assigned to another worker")
	}
	return nil
}

// List returns the complaints visible to the caller, newest first. Citizens
// see their own, workers see Pending plus their assignments, admins see all.
func (s *ComplaintService) List(ctx context.Context, p auth.Principal, status string, limit int) ([]models.Complaint, error) {
	if err := auth.Authorize(auth.ActionViewComplaint, p, auth.Relation{IsOwner: true}); err != nil {
		return nil, err
	}

	f := models.ComplaintFilter{Limit: limit}
	if status != "" {
		st, ok := models.ParseStatus(status)
		if !ok {
			return nil, apperrors.Validation("unknown status %q", status)
		}
		f.Status = &st
	}
	switch p.Role {
	case models.RoleCitizen:
		f.CitizenID = &p.UserID
	case models.RoleWorker:
		fresh := s.now().Add(-s.ttl)
		f.WorkerID = &p.UserID
		f.PendingFreshAfter = &fresh
	}

	list, err := s.store.ListComplaints(ctx, f)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list complaints")
	}
	if list == nil {
		list = []models.Complaint{}
	}
	return list, nil
}

// ExpressInterest records that a worker wants a Pending complaint
func (s *ComplaintService) ExpressInterest(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionExpressInterest, p, relationTo(p, c)); err != nil {
		return nil, err
	}
	if c, err = s.expireIfStale(ctx, c); err != nil {
		return nil, err
	}
	if c.Status != models.StatusPending {
		return nil, apperrors.InvalidState("interest can only be expressed on a pending complaint").WithStatus(c.Status)
	}

	err = s.store.AddInterest(ctx, id, p.UserID, s.now().Add(-s.ttl))
	switch {
	case errors.Is(err, store.ErrStatusMismatch):
		cur, lerr := s.load(ctx, id)
		if lerr != nil {
			return nil, lerr
		}
		return nil, apperrors.InvalidState("complaint is no longer pending").WithStatus(cur.Status)
	case err != nil:
		return nil, apperrors.Internal(err, "failed to record interest")
	}

	s.activity.record(ctx, id, &p.UserID, models.ActivityInterest, "Worker expressed interest", "")
	return s.load(ctx, id)
}

// Accept assigns a Pending complaint to the calling worker. Of any number of
// concurrent accepts exactly one succeeds; the others get Conflict.
func (s *ComplaintService) Accept(ctx context.Context, p auth.Principal, id uuid.UUID, req *models.AcceptRequest) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionAccept, p, relationTo(p, c)); err != nil {
		return nil, err
	}
	if req == nil {
		req = &models.AcceptRequest{}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if c, err = s.expireIfStale(ctx, c); err != nil {
		return nil, err
	}
	if err := acceptable(c); err != nil {
		return nil, err
	}

	now := s.now()
	fresh := now.Add(-s.ttl)
	updated, err := s.store.Transition(ctx, store.Transition{
		ComplaintID:  id,
		From:         []models.Status{models.StatusPending},
		To:           models.StatusAccepted,
		FreshAfter:   &fresh,
		AssignWorker: &p.UserID,
		At:           now,
	})
	if errors.Is(err, store.ErrStatusMismatch) {
		return nil, s.lostRace(ctx, id, updated, p.UserID)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to accept complaint")
	}

	s.logger.Infow("Complaint accepted", "complaint_id", id, "worker_id", p.UserID)
	s.activity.record(ctx, id, &p.UserID, models.ActivityAccepted, "Worker accepted complaint", workerLocation(req))
	return updated, nil
}

// AssignWorkers lets the owning citizen hand a Pending complaint to one or
// more approved workers. The first valid id becomes the assigned worker.
func (s *ComplaintService) AssignWorkers(ctx context.Context, p auth.Principal, id uuid.UUID, req *models.AssignWorkersRequest) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionAssignWorkers, p, relationTo(p, c)); err != nil {
		return nil, err
	}
	if req == nil || len(req.WorkerIDs) == 0 {
		return nil, apperrors.Validation("worker_ids must not be empty")
	}

	workers, err := s.validWorkers(ctx, req.WorkerIDs)
	if err != nil {
		return nil, err
	}
	if len(workers) == 0 {
		return nil, apperrors.Validation("worker_ids contains no valid workers")
	}

	if c, err = s.expireIfStale(ctx, c); err != nil {
		return nil, err
	}
	if err := acceptable(c); err != nil {
		return nil, err
	}

	now := s.now()
	fresh := now.Add(-s.ttl)
	updated, err := s.store.Transition(ctx, store.Transition{
		ComplaintID:   id,
		From:          []models.Status{models.StatusPending},
		To:            models.StatusAccepted,
		FreshAfter:    &fresh,
		AssignWorker:  &workers[0],
		AssignWorkers: workers,
		At:            now,
	})
	if errors.Is(err, store.ErrStatusMismatch) {
		return nil, s.lostRace(ctx, id, updated, p.UserID)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to assign workers")
	}

	s.logger.Infow("Workers assigned", "complaint_id", id, "workers", workers)
	s.activity.record(ctx, id, &p.UserID, models.ActivityAssigned,
		fmt.Sprintf("Citizen assigned %d worker(s)", len(workers)), joinIDs(workers))
	return updated, nil
}

// validWorkers keeps the approved workers among ids, preserving request order
func (s *ComplaintService) validWorkers(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	users, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load workers")
	}
	ok := make(map[uuid.UUID]bool, len(users))
	for _, u := range users {
		if u.Role == models.RoleWorker && u.IsApproved {
			ok[u.ID] = true
		}
	}

	var out []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if ok[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// UpdateStatus moves an assigned complaint through In Progress to a final
// status. Updating a Pending complaint to Accepted is treated as an accept.
func (s *ComplaintService) UpdateStatus(ctx context.Context, p auth.Principal, id uuid.UUID, req *models.StatusUpdateRequest) (*models.Complaint, error) {
	if req == nil || req.Status == "" {
		return nil, apperrors.Validation("status is required")
	}
	target, ok := models.ParseStatus(req.Status)
	if !ok || target == models.StatusPending || target == models.StatusExpired {
		return nil, apperrors.Validation("invalid status %q", req.Status)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if target == models.StatusAccepted && c.Status == models.StatusPending && p.Role == models.RoleWorker {
		return s.Accept(ctx, p, id, nil)
	}
	if err := auth.Authorize(auth.ActionUpdateStatus, p, relationTo(p, c)); err != nil {
		return nil, err
	}
	if c, err = s.expireIfStale(ctx, c); err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, apperrors.InvalidState("complaint is already %s", c.Status).WithStatus(c.Status)
	}
	if !transitionAllowed(c.Status, target) {
		return nil, apperrors.InvalidState("cannot move complaint from %s to %s", c.Status, target).WithStatus(c.Status)
	}

	now := s.now()
	updated, err := s.store.Transition(ctx, store.Transition{
		ComplaintID:     id,
		From:            []models.Status{c.Status},
		To:              target,
		ClearAssignment: target == models.StatusDenied || target == models.StatusIncomplete,
		At:              now,
	})
	if errors.Is(err, store.ErrStatusMismatch) {
		s.logger.Infow("Status update lost race", "complaint_id", id, "from", c.Status, "to", target, "actual", updated.Status)
		return nil, apperrors.Conflict("complaint status changed concurrently").WithStatus(updated.Status)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to update status")
	}

	s.logger.Infow("Complaint status updated", "complaint_id", id, "from", c.Status, "to", target, "actor", p.UserID)
	s.activity.record(ctx, id, &p.UserID, models.ActivityStatus,
		fmt.Sprintf("Status changed from %s to %s", c.Status, target), "")
	return updated, nil
}

// ExpireStale moves every Pending complaint older than the TTL to Expired.
// Running it again with nothing stale changes nothing.
func (s *ComplaintService) ExpireStale(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.store.ExpireStale(ctx, now.Add(-s.ttl), now)
	if err != nil {
		return 0, fmt.Errorf("expire stale complaints: %w", err)
	}
	for _, id := range ids {
		s.activity.record(ctx, id, nil, models.ActivityExpired, "Complaint expired without acceptance", "")
	}
	if len(ids) > 0 {
		s.logger.Infow("Expired stale complaints", "count", len(ids))
	}
	return len(ids), nil
}

func (s *ComplaintService) load(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	c, err := s.store.GetComplaint(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("complaint %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load complaint")
	}
	return c, nil
}

// expireIfStale moves a Pending complaint past its TTL to Expired and returns
// the complaint's current row.
func (s *ComplaintService) expireIfStale(ctx context.Context, c *models.Complaint) (*models.Complaint, error) {
	now := s.now()
	if !c.IsStale(now, s.ttl) {
		return c, nil
	}

	updated, err := s.store.Transition(ctx, store.Transition{
		ComplaintID: c.ID,
		From:        []models.Status{models.StatusPending},
		To:          models.StatusExpired,
		At:          now,
	})
	if errors.Is(err, store.ErrStatusMismatch) {
		return updated, nil
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to expire complaint")
	}

	s.logger.Infow("Complaint expired", "complaint_id", c.ID, "created_at", c.CreatedAt)
	s.activity.record(ctx, c.ID, nil, models.ActivityExpired, "Complaint expired without acceptance", "")
	return updated, nil
}

// lostRace classifies a failed Pending -> Accepted compare-and-set
func (s *ComplaintService) lostRace(ctx context.Context, id uuid.UUID, cur *models.Complaint, worker uuid.UUID) error {
	if cur != nil && cur.Status == models.StatusPending {
		// Crossed the TTL between the check and the write.
		var err error
		if cur, err = s.expireIfStale(ctx, cur); err != nil {
			return err
		}
	}

	status := models.StatusExpired
	if cur != nil {
		status = cur.Status
	}
	s.logger.Infow("Accept lost race", "complaint_id", id, "worker_id", worker, "status", status)
	if status == models.StatusExpired {
		return apperrors.Conflict("complaint expired before it could be accepted").WithStatus(status)
	}
	return apperrors.Conflict("already assigned").WithStatus(status)
}

// acceptable checks that a complaint can still be taken by a worker
func acceptable(c *models.Complaint) error {
	switch {
	case c.Status == models.StatusPending:
		return nil
	case c.Status == models.StatusExpired:
		return apperrors.InvalidState("complaint has expired").WithStatus(c.Status)
	case c.Status.HoldsAssignment():
		return apperrors.Conflict("already assigned").WithStatus(c.Status)
	default:
		return apperrors.InvalidState("complaint is %s", c.Status).WithStatus(c.Status)
	}
}

func transitionAllowed(from, to models.Status) bool {
	for _, t := range statusTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func relationTo(p auth.Principal, c *models.Complaint) auth.Relation {
	return auth.Relation{
		IsOwner:    c.CitizenID == p.UserID,
		IsAssignee: c.IsAssignee(p.UserID),
	}
}

func workerLocation(req *models.AcceptRequest) string {
	if req == nil || req.WorkerLat == nil || req.WorkerLng == nil {
		return ""
	}
	return fmt.Sprintf(`{"worker_lat":%f,"worker_lng":%f}`, *req.WorkerLat, *req.WorkerLng)
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
