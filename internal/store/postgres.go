package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Postgres is the pgx-backed Store
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a store over an open pool
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const complaintColumns = `
	c.id, c.citizen_id, c.title, c.description, c.waste_type, c.quantity,
	c.location_lat, c.location_lng, c.media, c.desired_cleanup_time,
	c.status, c.assigned_worker, c.created_at, c.updated_at,
	ARRAY(SELECT a.worker_id FROM complaint_assignees a WHERE a.complaint_id = c.id ORDER BY a.worker_id),
	ARRAY(SELECT i.worker_id FROM complaint_interests i WHERE i.complaint_id = c.id ORDER BY i.created_at, i.worker_id)`

func scanComplaint(row pgx.Row) (*models.Complaint, error) {
	var (
		c        models.Complaint
		lat, lng *float64
	)
	err := row.Scan(&c.ID, &c.CitizenID, &c.Title, &c.Description, &c.WasteType, &c.Quantity,
		&lat, &lng, &c.Media, &c.DesiredCleanupTime,
		&c.Status, &c.AssignedWorker, &c.CreatedAt, &c.UpdatedAt,
		&c.AssignedWorkers, &c.InterestedWorkers)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		c.Location = &models.Location{Lat: *lat, Lng: *lng}
	}
	return &c, nil
}

// CreateComplaint inserts a new complaint row
func (s *Postgres) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	query := `
		INSERT INTO complaints (id, citizen_id, title, description, waste_type, quantity,
			location_lat, location_lng, media, desired_cleanup_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	var lat, lng *float64
	if c.Location != nil {
		lat, lng = &c.Location.Lat, &c.Location.Lng
	}
	media := c.Media
	if media == nil {
		media = []string{}
	}

	_, err := s.db.Exec(ctx, query,
		c.ID, c.CitizenID, c.Title, c.Description, string(c.WasteType), string(c.Quantity),
		lat, lng, media, c.DesiredCleanupTime, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

// GetComplaint loads a complaint with its worker sets
func (s *Postgres) GetComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	return s.getComplaint(ctx, s.db, id)
}

func (s *Postgres) getComplaint(ctx context.Context, q pgxQuerier, id uuid.UUID) (*models.Complaint, error) {
	query := `SELECT` + complaintColumns + ` FROM complaints c WHERE c.id = $1`

	c, err := scanComplaint(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select complaint: %w", err)
	}
	return c, nil
}

// ListComplaints returns complaints newest first, scoped by f
func (s *Postgres) ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	query := `SELECT` + complaintColumns + `
		FROM complaints c
		WHERE ($1::uuid IS NULL OR c.citizen_id = $1)
		  AND ($2::uuid IS NULL
		       OR c.status = 'Pending'
		       OR c.assigned_worker = $2
		       OR EXISTS (SELECT 1 FROM complaint_assignees a WHERE a.complaint_id = c.id AND a.worker_id = $2))
		  AND ($3::text IS NULL OR c.status = $3)
		  AND ($5::timestamptz IS NULL OR c.status <> 'Pending' OR c.created_at > $5)
		ORDER BY c.created_at DESC, c.id
		LIMIT $4
	`

	var status *string
	if f.Status != nil {
		st := string(*f.Status)
		status = &st
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, query, f.CitizenID, f.WorkerID, status, limit, f.PendingFreshAfter)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	var out []models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Transition performs the status compare-and-set inside a transaction so the
// assignee set is replaced atomically with the status write.
func (s *Postgres) Transition(ctx context.Context, t Transition) (*models.Complaint, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE complaints
		SET status = $2,
		    updated_at = $3,
		    assigned_worker = CASE
		        WHEN $4::boolean THEN NULL
		        WHEN $5::uuid IS NOT NULL THEN $5::uuid
		        ELSE assigned_worker END
		WHERE id = $1
		  AND status = ANY($6::text[])
		  AND ($7::timestamptz IS NULL OR created_at > $7)
	`

	tag, err := tx.Exec(ctx, query,
		t.ComplaintID, string(t.To), t.At, t.ClearAssignment, t.AssignWorker,
		statusStrings(t.From), t.FreshAfter,
	)
	if err != nil {
		return nil, fmt.Errorf("update complaint status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		current, err := s.getComplaint(ctx, tx, t.ComplaintID)
		if err != nil {
			return nil, err
		}
		return current, ErrStatusMismatch
	}

	if t.AssignWorkers != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM complaint_assignees WHERE complaint_id = $1`, t.ComplaintID); err != nil {
			return nil, fmt.Errorf("clear assignees: %w", err)
		}
		for _, w := range t.AssignWorkers {
			if _, err := tx.Exec(ctx,
				`INSERT INTO complaint_assignees (complaint_id, worker_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				t.ComplaintID, w); err != nil {
				return nil, fmt.Errorf("insert assignee: %w", err)
			}
		}
	}

	c, err := s.getComplaint(ctx, tx, t.ComplaintID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return c, nil
}

// AddInterest inserts the interest row only if the complaint is still a fresh Pending one
func (s *Postgres) AddInterest(ctx context.Context, complaintID, workerID uuid.UUID, freshAfter time.Time) error {
	query := `
		INSERT INTO complaint_interests (complaint_id, worker_id, created_at)
		SELECT c.id, $2, NOW()
		FROM complaints c
		WHERE c.id = $1 AND c.status = 'Pending' AND c.created_at > $3
		ON CONFLICT DO NOTHING
		RETURNING complaint_id
	`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, query, complaintID, workerID, freshAfter).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("insert interest: %w", err)
	}

	// No row: either already interested, or the complaint is gone/not Pending.
	var exists, pending bool
	err = s.db.QueryRow(ctx, `
		SELECT TRUE, (c.status = 'Pending' AND c.created_at > $2)
		FROM complaints c WHERE c.id = $1`, complaintID, freshAfter).Scan(&exists, &pending)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check interest: %w", err)
	}
	if !pending {
		return ErrStatusMismatch
	}
	return nil
}

// ExpireStale is the bulk sweep; the status predicate makes it idempotent
func (s *Postgres) ExpireStale(ctx context.Context, cutoff, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE complaints
		SET status = 'Expired', updated_at = $2
		WHERE status = 'Pending' AND created_at <= $1
		RETURNING id
	`

	rows, err := s.db.Query(ctx, query, cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("expire complaints: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveUser upserts the account fields the core relies on. Rating counters are untouched.
func (s *Postgres) SaveUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, username, role, is_approved)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, role = EXCLUDED.role, is_approved = EXCLUDED.is_approved
	`
	if _, err := s.db.Exec(ctx, query, u.ID, u.Username, string(u.Role), u.IsApproved); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

const userColumns = `id, username, role, is_approved, rating_sum, total_ratings`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Role, &u.IsApproved, &u.RatingSum, &u.TotalRatings); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (s *Postgres) GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id`, ids)
}

func (s *Postgres) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY id`, string(role))
}

func (s *Postgres) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Postgres) SetApproval(ctx context.Context, id uuid.UUID, approved bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET is_approved = $2 WHERE id = $1`, id, approved)
	if err != nil {
		return fmt.Errorf("update approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRating inserts the rating and bumps the worker counters in one transaction
func (s *Postgres) CreateRating(ctx context.Context, r *models.Rating) (models.RatingAggregate, error) {
	agg := models.RatingAggregate{WorkerID: r.WorkerID}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return agg, fmt.Errorf("begin rating: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO ratings (id, complaint_id, worker_id, citizen_id, score, comment, created_at)
		SELECT $1, c.id, $3, $4, $5, $6, $7
		FROM complaints c
		WHERE c.id = $2 AND c.status = 'Completed' AND c.assigned_worker = $3
	`
	tag, err := tx.Exec(ctx, insert, r.ID, r.ComplaintID, r.WorkerID, r.CitizenID, r.Score, r.Comment, r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return agg, ErrDuplicate
		}
		return agg, fmt.Errorf("insert rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return agg, ErrStatusMismatch
	}

	update := `
		UPDATE users SET rating_sum = rating_sum + $2, total_ratings = total_ratings + 1
		WHERE id = $1
		RETURNING rating_sum, total_ratings
	`
	err = tx.QueryRow(ctx, update, r.WorkerID, r.Score).Scan(&agg.Sum, &agg.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return agg, ErrNotFound
	}
	if err != nil {
		return agg, fmt.Errorf("update rating counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return agg, fmt.Errorf("commit rating: %w", err)
	}
	return agg, nil
}

func (s *Postgres) AggregateRatings(ctx context.Context, workerID uuid.UUID) (models.RatingAggregate, error) {
	agg := models.RatingAggregate{WorkerID: workerID}
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(score), 0), COUNT(*) FROM ratings WHERE worker_id = $1`, workerID,
	).Scan(&agg.Sum, &agg.Count)
	if err != nil {
		return agg, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}

func (s *Postgres) SetRatingCounters(ctx context.Context, agg models.RatingAggregate) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET rating_sum = $2, total_ratings = $3 WHERE id = $1`,
		agg.WorkerID, agg.Sum, agg.Count)
	if err != nil {
		return fmt.Errorf("set rating counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListRatings(ctx context.Context) ([]models.Rating, error) {
	query := `
		SELECT id, complaint_id, worker_id, citizen_id, score, COALESCE(comment, ''), created_at
		FROM ratings
		ORDER BY created_at, id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.ID, &r.ComplaintID, &r.WorkerID, &r.CitizenID, &r.Score, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

func (s *Postgres) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, complaint_id, sender_id, receiver_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.Exec(ctx, query, m.ID, m.ComplaintID, m.SenderID, m.ReceiverID, m.Body, m.CreatedAt); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *Postgres) ListMessages(ctx context.Context, complaintID uuid.UUID) ([]models.ChatMessage, error) {
	query := `
		SELECT id, complaint_id, sender_id, receiver_id, body, created_at
		FROM chat_messages
		WHERE complaint_id = $1
		ORDER BY created_at, id
	`

	rows, err := s.db.Query(ctx, query, complaintID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ComplaintID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Postgres) LogActivity(ctx context.Context, a *models.ActivityLog) error {
	query := `
		INSERT INTO complaint_activity (id, complaint_id, actor_id, activity_type, action_description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		a.ID, a.ComplaintID, a.ActorID, a.ActivityType, a.ActionDescription, a.Metadata, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (s *Postgres) ListActivity(ctx context.Context, complaintID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	query := `
		SELECT id, complaint_id, actor_id, activity_type, action_description, COALESCE(metadata, ''), created_at
		FROM complaint_activity
		WHERE complaint_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, complaintID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var logs []models.ActivityLog
	for rows.Next() {
		var log models.ActivityLog
		if err := rows.Scan(&log.ID, &log.ComplaintID, &log.ActorID,
			&log.ActivityType, &log.ActionDescription, &log.Metadata, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// pgxQuerier is satisfied by *pgxpool.Pool and pgx.Tx
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
