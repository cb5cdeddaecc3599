package services

import (
	"context"
	"testing"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRating_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	citizen := f.user(t, models.RoleCitizen, false)
	worker := f.user(t, models.RoleWorker, true)
	c := f.submit(t, citizen)

	_, _, err := f.ratings.Submit(ctx, citizen, c.ID, &models.RatingSubmission{Rating: 4})
	assertKind(t, apperrors.KindInvalidState, err)

	f.complete(t, c, worker)

	_, _, err = f.ratings.Submit(ctx, citizen, c.ID, &models.RatingSubmission{Rating: 6})
	assertKind(t, apperrors.KindValidation, err)
	_, _, err = f.ratings.Submit(ctx, citizen, c.ID, &models.RatingSubmission{Rating: 0})
	assertKind(t, apperrors.KindValidation, err)

	_, _, err = f.ratings.Submit(ctx, f.user(t, models.RoleCitizen, false), c.ID, &models.RatingSubmission{Rating: 3})
	assertKind(t, apperrors.KindForbidden, err)

	r, agg, err := f.ratings.Submit(ctx, citizen, c.ID, &models.RatingSubmission{Rating: 3, Comment: " quick pickup "})
	require.NoError(t, err)
	assert.Equal(t, worker.UserID, r.WorkerID)
	assert.Equal(t, "quick pickup", r.Comment)
	assert.Equal(t, int64(3), agg.Sum)
	assert.Equal(t, int64(1), agg.Count)
	assert.Equal(t, 3.0, agg.Rating)

	_, _, err = f.ratings.Submit(ctx, citizen, c.ID, &models.RatingSubmission{Rating: 5})
	assertKind(t, apperrors.KindConflict, err)

	_, _, err = f.ratings.Submit(ctx, citizen, uuid.New(), &models.RatingSubmission{Rating: 5})
	assertKind(t, apperrors.KindNotFound, err)
}

func TestRating_AggregateMatchesRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	citizen := f.user(t, models.RoleCitizen, false)
	worker := f.user(t, models.RoleWorker, true)

	scores := []int{5, 4, 4, 2, 5, 1}
	sum := 0
	for _, s := range scores {
		c := f.submit(t, citizen)
		f.complete(t, c, worker)
		_, _, err := f.ratings.Submit(ctx, citizen, c.ID, &models.RatingSubmission{Rating: s})
		require.NoError(t, err)
		sum += s
		f.clock.Advance(time.Minute)
	}

	stored, err := f.ratings.WorkerRating(ctx, worker.UserID)
	require.NoError(t, err)
	fromRows, err := f.st.AggregateRatings(ctx, worker.UserID)
	require.NoError(t, err)

	assert.Equal(t, fromRows, stored.RatingAggregate)
	assert.Equal(t, int64(sum), stored.Sum)
	assert.Equal(t, int64(len(scores)), stored.Count)
	assert.InDelta(t, float64(sum)/float64(len(scores)), stored.Mean(), 1e-9)
	assert.Equal(t, 3.5, stored.Rating)
}

func TestRating_WorkerWithoutRatings(t *testing.T) {
	f := newFixture(t)
	worker := f.user(t, models.RoleWorker, true)

	got, err := f.ratings.WorkerRating(context.Background(), worker.UserID)
	require.NoError(t, err)
	assert.Zero(t, got.Count)
	assert.Zero(t, got.Rating)

	_, err = f.ratings.WorkerRating(context.Background(), f.user(t, models.RoleCitizen, false).UserID)
	assertKind(t, apperrors.KindNotFound, err)
}

func TestRating_AuditRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	citizen := f.user(t, models.RoleCitizen, false)
	worker := f.user(t, models.RoleWorker, true)
	admin := f.user(t, models.RoleAdmin, true)

	c := f.submit(t, citizen)
	f.complete(t, c, worker)
	_, _, err := f.ratings.Submit(ctx, citizen, c.ID, &models.RatingSubmission{Rating: 4})
	require.NoError(t, err)

	require.NoError(t, f.st.SetRatingCounters(ctx, models.RatingAggregate{WorkerID: worker.UserID, Sum: 40, Count: 3}))

	repaired, err := f.ratings.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	got, err := f.ratings.WorkerRating(ctx, worker.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Sum)
	assert.Equal(t, int64(1), got.Count)

	repaired, err = f.ratings.Audit(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)

	_, err = f.ratings.Recompute(ctx, citizen, worker.UserID)
	assertKind(t, apperrors.KindForbidden, err)
	got, err = f.ratings.Recompute(ctx, admin, worker.UserID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Rating)
}
