package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/migrations"
	"github.com/garyjia/claims-service/pkg/database"
)

// Runs only when CLAIMS_TEST_POSTGRES_DSN points at a disposable database.
func setupPostgres(t *testing.T) *database.Postgres {
	t.Helper()

	dsn := os.Getenv("CLAIMS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CLAIMS_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pg, err := database.NewPostgres(ctx, database.PostgresConfig{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })

	sqlDB := pg.SQLDB()
	defer sqlDB.Close()
	require.NoError(t, database.NewMigrator(sqlDB, database.DialectPostgres, zap.NewNop()).
		RunMigrations(ctx, migrations.Postgres, "postgres"))
	return pg
}

func TestPostgres_ClaimLifecycle(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	logger := zap.NewNop()

	tx := NewDB(pg.Pool, logger)
	claims := NewClaimRepository(pg.Pool, logger)
	validations := NewValidationRepository(pg.Pool, logger)
	history := NewHistoryRepository(pg.Pool, logger)
	now := time.Now().UTC().Truncate(time.Microsecond)

	claim, err := entity.NewClaim("POL-1", "CUST-PG", "hail", decimal.MustParse("250.00"), now)
	require.NoError(t, err)

	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := claims.Save(ctx, claim); err != nil {
			return err
		}
		return history.Create(ctx, &entity.ClaimHistory{
			ClaimID: claim.ID, NewStatus: string(claim.Status), Action: "SUBMIT", Timestamp: now,
		})
	})
	require.NoError(t, err)

	stale := claim.Clone()
	require.NoError(t, claim.StartReview(now))
	require.NoError(t, claims.Save(ctx, claim))

	require.NoError(t, stale.StartReview(now))
	assert.True(t, errors.Is(claims.Save(ctx, stale), entity.ErrConflict))

	stored, err := validations.RecordIfAbsent(ctx, entity.NewValidationOutcome(claim.ID, entity.SourceCustomer, true, "", now))
	require.NoError(t, err)
	assert.True(t, stored)
	stored, err = validations.RecordIfAbsent(ctx, entity.NewValidationOutcome(claim.ID, entity.SourceCustomer, false, "", now))
	require.NoError(t, err)
	assert.False(t, stored)

	loaded, err := claims.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, "250.00", loaded.ReportedAmount.String())
	assert.Equal(t, claim.Status, loaded.Status)

	records, err := history.ListByClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
