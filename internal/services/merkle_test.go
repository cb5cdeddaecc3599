package services

import (
	"context"
	"testing"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRatings(n int) []models.Rating {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Rating, n)
	for i := range out {
		out[i] = models.Rating{
			ID:          uuid.New(),
			ComplaintID: uuid.New(),
			WorkerID:    uuid.New(),
			CitizenID:   uuid.New(),
			Score:       i%5 + 1,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestMerkle_ProofsVerify(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 8} {
		ms := NewMerkleService(zap.NewNop().Sugar())
		ratings := sampleRatings(n)
		ms.BuildFromRatings(ratings)

		require.Equal(t, n, ms.GetLeafCount())
		for i := 0; i < n; i++ {
			proof, err := ms.GetProof(i)
			require.NoError(t, err)
			assert.True(t, proof.Verified, "n=%d index=%d", n, i)
			assert.Equal(t, RatingLeaf(ratings[i]), proof.LeafHash)
		}
	}
}

func TestMerkle_TamperedLeafFails(t *testing.T) {
	ms := NewMerkleService(zap.NewNop().Sugar())
	ratings := sampleRatings(5)
	ms.BuildFromRatings(ratings)

	proof, err := ms.GetProof(2)
	require.NoError(t, err)

	tampered := ratings[2]
	tampered.Score = tampered.Score%5 + 1
	proof.LeafHash = RatingLeaf(tampered)
	assert.False(t, VerifyProof(proof))
}

func TestMerkle_OutOfRange(t *testing.T) {
	ms := NewMerkleService(zap.NewNop().Sugar())
	ms.BuildFromRatings(nil)

	assert.Empty(t, ms.GetRoot())
	_, err := ms.GetProof(0)
	assert.Error(t, err)
}

func TestIntegrityWorker_Rebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	citizen := f.user(t, models.RoleCitizen, false)
	worker := f.user(t, models.RoleWorker, true)

	c := f.submit(t, citizen)
	f.complete(t, c, worker)
	_, _, err := f.ratings.Submit(ctx, citizen, c.ID, &models.RatingSubmission{Rating: 5})
	require.NoError(t, err)
	require.NoError(t, f.st.SetRatingCounters(ctx, models.RatingAggregate{WorkerID: worker.UserID}))

	ms := NewMerkleService(zap.NewNop().Sugar())
	NewIntegrityWorker(ms, f.ratings, f.st, zap.NewNop().Sugar()).Rebuild(ctx)

	assert.Equal(t, 1, ms.GetLeafCount())
	assert.NotEmpty(t, ms.GetRoot())

	got, err := f.ratings.WorkerRating(ctx, worker.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Sum)
}
