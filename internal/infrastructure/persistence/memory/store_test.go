package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

func newClaim(t *testing.T) *entity.Claim {
	t.Helper()
	claim, err := entity.NewClaim("POL-1", "CUST-1", "", decimal.MustParse("10.00"), time.Now())
	require.NoError(t, err)
	return claim
}

func TestStore_SaveCopiesClaim(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	claim := newClaim(t)
	require.NoError(t, store.Claims().Save(ctx, claim))
	assert.Equal(t, int64(1), claim.Version)

	claim.Description = "mutated"
	loaded, err := store.Claims().Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Description)
}

func TestStore_VersionConflict(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	claim := newClaim(t)
	require.NoError(t, store.Claims().Save(ctx, claim))

	a, _ := store.Claims().Get(ctx, claim.ID)
	b, _ := store.Claims().Get(ctx, claim.ID)
	require.NoError(t, a.StartReview(time.Now()))
	require.NoError(t, store.Claims().Save(ctx, a))

	require.NoError(t, b.StartReview(time.Now()))
	assert.True(t, errors.Is(store.Claims().Save(ctx, b), entity.ErrConflict))
}

func TestStore_SaveUnknownVersionedClaim(t *testing.T) {
	store := NewStore()
	claim := newClaim(t)
	claim.Version = 4
	assert.True(t, errors.Is(store.Claims().Save(context.Background(), claim), entity.ErrNotFound))
}

func TestStore_RecordIfAbsentConcurrent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var stored int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(valid bool) {
			defer wg.Done()
			ok, err := store.Validations().RecordIfAbsent(ctx,
				entity.NewValidationOutcome("c-1", entity.SourcePolicy, valid, "", time.Now()))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&stored, 1)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, int32(1), stored)
	outcomes, err := store.Validations().ListByClaim(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestStore_NestedTransaction(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		return store.WithTransaction(ctx, func(ctx context.Context) error {
			return store.History().Create(ctx, &entity.ClaimHistory{ClaimID: "c-1", Action: "SUBMIT"})
		})
	})
	require.NoError(t, err)

	records, err := store.History().ListByClaim(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
}
