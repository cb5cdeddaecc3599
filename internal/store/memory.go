package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/google/uuid"
)

// Memory is an in-process Store with the same compare-and-set and
// uniqueness semantics as Postgres. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	mu         sync.Mutex
	complaints map[uuid.UUID]*models.Complaint
	interested map[uuid.UUID]map[uuid.UUID]struct{}
	users      map[uuid.UUID]*models.User
	ratings    []models.Rating
	messages   map[uuid.UUID][]models.ChatMessage
	activity   map[uuid.UUID][]models.ActivityLog

	// FailAppend, when set, is returned by AppendMessage
	FailAppend error
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		complaints: make(map[uuid.UUID]*models.Complaint),
		interested: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		users:      make(map[uuid.UUID]*models.User),
		messages:   make(map[uuid.UUID][]models.ChatMessage),
		activity:   make(map[uuid.UUID][]models.ActivityLog),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func cloneComplaint(c *models.Complaint) *models.Complaint {
	cp := *c
	cp.Media = append([]string(nil), c.Media...)
	cp.AssignedWorkers = append([]uuid.UUID(nil), c.AssignedWorkers...)
	cp.InterestedWorkers = append([]uuid.UUID(nil), c.InterestedWorkers...)
	if c.AssignedWorker != nil {
		w := *c.AssignedWorker
		cp.AssignedWorker = &w
	}
	if c.Location != nil {
		loc := *c.Location
		cp.Location = &loc
	}
	return &cp
}

func (m *Memory) CreateComplaint(_ context.Context, c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.complaints[c.ID]; ok {
		return ErrDuplicate
	}
	m.complaints[c.ID] = cloneComplaint(c)
	return nil
}

func (m *Memory) GetComplaint(_ context.Context, id uuid.UUID) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.complaints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneComplaint(c), nil
}

func (m *Memory) ListComplaints(_ context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Complaint
	for _, c := range m.complaints {
		if f.CitizenID != nil && c.CitizenID != *f.CitizenID {
			continue
		}
		if f.WorkerID != nil && c.Status != models.StatusPending && !c.IsAssignee(*f.WorkerID) {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.PendingFreshAfter != nil && c.Status == models.StatusPending && !c.CreatedAt.After(*f.PendingFreshAfter) {
			continue
		}
		out = append(out, *cloneComplaint(c))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Transition(_ context.Context, t Transition) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.complaints[t.ComplaintID]
	if !ok {
		return nil, ErrNotFound
	}

	matched := false
	for _, from := range t.From {
		if c.Status == from {
			matched = true
			break
		}
	}
	if !matched || (t.FreshAfter != nil && !c.CreatedAt.After(*t.FreshAfter)) {
		return cloneComplaint(c), ErrStatusMismatch
	}

	c.Status = t.To
	c.UpdatedAt = t.At
	switch {
	case t.ClearAssignment:
		c.AssignedWorker = nil
	case t.AssignWorker != nil:
		w := *t.AssignWorker
		c.AssignedWorker = &w
	}
	if t.AssignWorkers != nil {
		ws := append([]uuid.UUID(nil), t.AssignWorkers...)
		sort.Slice(ws, func(i, j int) bool { return ws[i].String() < ws[j].String() })
		c.AssignedWorkers = ws
	}
	return cloneComplaint(c), nil
}

func (m *Memory) AddInterest(_ context.Context, complaintID, workerID uuid.UUID, freshAfter time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.complaints[complaintID]
	if !ok {
		return ErrNotFound
	}
	if c.Status != models.StatusPending || !c.CreatedAt.After(freshAfter) {
		return ErrStatusMismatch
	}

	seen, ok := m.interested[complaintID]
	if !ok {
		seen = make(map[uuid.UUID]struct{})
		m.interested[complaintID] = seen
	}
	if _, dup := seen[workerID]; dup {
		return nil
	}
	seen[workerID] = struct{}{}
	c.InterestedWorkers = append(c.InterestedWorkers, workerID)
	return nil
}

func (m *Memory) ExpireStale(_ context.Context, cutoff, now time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for id, c := range m.complaints {
		if c.Status == models.StatusPending && !c.CreatedAt.After(cutoff) {
			c.Status = models.StatusExpired
			c.UpdatedAt = now
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *Memory) SaveUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.users[u.ID]; ok {
		existing.Username = u.Username
		existing.Role = u.Role
		existing.IsApproved = u.IsApproved
		return nil
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUsers(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.User
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if u, ok := m.users[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) ListUsers(_ context.Context, role models.Role) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) SetApproval(_ context.Context, id uuid.UUID, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsApproved = approved
	return nil
}

func (m *Memory) CreateRating(_ context.Context, r *models.Rating) (models.RatingAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := models.RatingAggregate{WorkerID: r.WorkerID}
	for _, existing := range m.ratings {
		if existing.ComplaintID == r.ComplaintID {
			return agg, ErrDuplicate
		}
	}

	c, ok := m.complaints[r.ComplaintID]
	if !ok || c.Status != models.StatusCompleted || c.AssignedWorker == nil || *c.AssignedWorker != r.WorkerID {
		return agg, ErrStatusMismatch
	}
	worker, ok := m.users[r.WorkerID]
	if !ok {
		return agg, ErrNotFound
	}

	m.ratings = append(m.ratings, *r)
	worker.RatingSum += int64(r.Score)
	worker.TotalRatings++
	return worker.Aggregate(), nil
}

func (m *Memory) AggregateRatings(_ context.Context, workerID uuid.UUID) (models.RatingAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := models.RatingAggregate{WorkerID: workerID}
	for _, r := range m.ratings {
		if r.WorkerID == workerID {
			agg.Sum += int64(r.Score)
			agg.Count++
		}
	}
	return agg, nil
}

func (m *Memory) SetRatingCounters(_ context.Context, agg models.RatingAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[agg.WorkerID]
	if !ok {
		return ErrNotFound
	}
	u.RatingSum = agg.Sum
	u.TotalRatings = agg.Count
	return nil
}

func (m *Memory) ListRatings(context.Context) ([]models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]models.Rating(nil), m.ratings...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAppend != nil {
		return m.FailAppend
	}
	m.messages[msg.ComplaintID] = append(m.messages[msg.ComplaintID], *msg)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, complaintID uuid.UUID) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]models.ChatMessage(nil), m.messages[complaintID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) LogActivity(_ context.Context, a *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var key uuid.UUID
	if a.ComplaintID != nil {
		key = *a.ComplaintID
	}
	m.activity[key] = append(m.activity[key], *a)
	return nil
}

func (m *Memory) ListActivity(_ context.Context, complaintID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.activity[complaintID]
	out := make([]models.ActivityLog, 0, len(src))
	for i := len(src) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, src[i])
	}
	return out, nil
}
