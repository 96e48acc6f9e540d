package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/govalues/decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/workflow"
)

const uniqueViolation = "23505"

// Amounts travel as text so NUMERIC columns keep their exact scale.
const claimColumns = `id, policy_ref, customer_ref, description, reported_amount::text, status,
	approved_amount::text, decision_reason, created_at, last_updated_at, version`

// ClaimRepository implements port.ClaimRepository on postgres
type ClaimRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(pool *pgxpool.Pool, logger *zap.Logger) *ClaimRepository {
	return &ClaimRepository{pool: pool, logger: logger}
}

// Get retrieves a claim by id
func (r *ClaimRepository) Get(ctx context.Context, id string) (*entity.Claim, error) {
	row := executor(ctx, r.pool).QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: claim %s", entity.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.String("claim_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// Save inserts a new claim or updates an existing one under its version
func (r *ClaimRepository) Save(ctx context.Context, claim *entity.Claim) error {
	approved, reason := decisionColumns(claim)

	if claim.Version == 0 {
		_, err := executor(ctx, r.pool).Exec(ctx, `
			INSERT INTO claims (id, policy_ref, customer_ref, description, reported_amount, status,
				approved_amount, decision_reason, created_at, last_updated_at, version)
			VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7::text::numeric, $8, $9, $10, 1)`,
			claim.ID, claim.PolicyRef, claim.CustomerRef, claim.Description,
			claim.ReportedAmount.String(), claim.Status.String(), approved, reason,
			claim.CreatedAt.UTC(), claim.LastUpdatedAt.UTC(),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: claim %s already exists", entity.ErrConflict, claim.ID)
			}
			r.logger.Error("Failed to insert claim", zap.String("claim_id", claim.ID), zap.Error(err))
			return fmt.Errorf("failed to insert claim: %w", err)
		}
		claim.Version = 1
		return nil
	}

	tag, err := executor(ctx, r.pool).Exec(ctx, `
		UPDATE claims
		SET status = $1, approved_amount = $2::text::numeric, decision_reason = $3,
			last_updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6`,
		claim.Status.String(), approved, reason, claim.LastUpdatedAt.UTC(), claim.ID, claim.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update claim", zap.String("claim_id", claim.ID), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.Exists(ctx, claim.ID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: claim %s", entity.ErrNotFound, claim.ID)
		}
		return fmt.Errorf("%w: claim %s was modified concurrently", entity.ErrConflict, claim.ID)
	}

	claim.Version++
	return nil
}

// ListByCustomer returns the claims filed by a customer, oldest first
func (r *ClaimRepository) ListByCustomer(ctx context.Context, customerRef string) ([]*entity.Claim, error) {
	rows, err := executor(ctx, r.pool).Query(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE customer_ref = $1 ORDER BY created_at ASC, id ASC`, customerRef)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.String("customer_ref", customerRef), zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	claims := make([]*entity.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// Exists reports whether a claim with the id is stored
func (r *ClaimRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := executor(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check claim existence: %w", err)
	}
	return exists, nil
}

func scanClaim(row pgx.Row) (*entity.Claim, error) {
	var (
		claim    entity.Claim
		reported string
		status   string
		approved *string
		reason   *string
	)

	err := row.Scan(
		&claim.ID,
		&claim.PolicyRef,
		&claim.CustomerRef,
		&claim.Description,
		&reported,
		&status,
		&approved,
		&reason,
		&claim.CreatedAt,
		&claim.LastUpdatedAt,
		&claim.Version,
	)
	if err != nil {
		return nil, err
	}

	if claim.ReportedAmount, err = decimal.Parse(reported); err != nil {
		return nil, fmt.Errorf("invalid reported amount %q: %w", reported, err)
	}
	if claim.Status, err = workflow.ParseState(status); err != nil {
		return nil, err
	}
	if approved != nil {
		amount, err := decimal.Parse(*approved)
		if err != nil {
			return nil, fmt.Errorf("invalid approved amount %q: %w", *approved, err)
		}
		claim.Decision = &entity.Decision{ApprovedAmount: amount}
		if reason != nil {
			claim.Decision.Reason = *reason
		}
	}
	claim.CreatedAt = claim.CreatedAt.UTC()
	claim.LastUpdatedAt = claim.LastUpdatedAt.UTC()
	return &claim, nil
}

func decisionColumns(claim *entity.Claim) (*string, *string) {
	if claim.Decision == nil {
		return nil, nil
	}
	amount := claim.Decision.ApprovedAmount.String()
	reason := claim.Decision.Reason
	return &amount, &reason
}

var _ port.ClaimRepository = (*ClaimRepository)(nil)
