package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/govalues/decimal"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/workflow"
	"github.com/garyjia/claims-service/internal/infrastructure/persistence/sqlite"
)

const claimColumns = `id, policy_ref, customer_ref, description, reported_amount, status,
	approved_amount, decision_reason, created_at, last_updated_at, version`

// ClaimRepository implements port.ClaimRepository on sqlite
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) *ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a claim by id
func (r *ClaimRepository) Get(ctx context.Context, id string) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := scanClaim(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
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
	if claim.Version == 0 {
		return r.insert(ctx, claim)
	}
	return r.update(ctx, claim)
}

func (r *ClaimRepository) insert(ctx context.Context, claim *entity.Claim) error {
	query := `INSERT INTO claims (` + claimColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	approved, reason := decisionColumns(claim)
	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		claim.ID,
		claim.PolicyRef,
		claim.CustomerRef,
		claim.Description,
		claim.ReportedAmount.String(),
		claim.Status.String(),
		approved,
		reason,
		claim.CreatedAt.UTC(),
		claim.LastUpdatedAt.UTC(),
		1,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: claim %s already exists", entity.ErrConflict, claim.ID)
		}
		r.logger.Error("Failed to insert claim", zap.String("claim_id", claim.ID), zap.Error(err))
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	claim.Version = 1
	r.logger.Debug("Claim inserted", zap.String("claim_id", claim.ID))
	return nil
}

func (r *ClaimRepository) update(ctx context.Context, claim *entity.Claim) error {
	query := `
		UPDATE claims
		SET status = ?, approved_amount = ?, decision_reason = ?, last_updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	approved, reason := decisionColumns(claim)
	exec := sqlite.Executor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		claim.Status.String(),
		approved,
		reason,
		claim.LastUpdatedAt.UTC(),
		claim.ID,
		claim.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update claim", zap.String("claim_id", claim.ID), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
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
	query := `SELECT ` + claimColumns + ` FROM claims WHERE customer_ref = ? ORDER BY created_at ASC, id ASC`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, customerRef)
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
	var count int
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(1) FROM claims WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check claim existence: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*entity.Claim, error) {
	var (
		claim         entity.Claim
		reported      string
		status        string
		approved      sql.NullString
		reason        sql.NullString
		createdAt     time.Time
		lastUpdatedAt time.Time
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
		&createdAt,
		&lastUpdatedAt,
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
	if approved.Valid {
		amount, err := decimal.Parse(approved.String)
		if err != nil {
			return nil, fmt.Errorf("invalid approved amount %q: %w", approved.String, err)
		}
		claim.Decision = &entity.Decision{ApprovedAmount: amount, Reason: reason.String}
	}
	claim.CreatedAt = createdAt.UTC()
	claim.LastUpdatedAt = lastUpdatedAt.UTC()
	return &claim, nil
}

func decisionColumns(claim *entity.Claim) (interface{}, interface{}) {
	if claim.Decision == nil {
		return nil, nil
	}
	return claim.Decision.ApprovedAmount.String(), claim.Decision.Reason
}

var _ port.ClaimRepository = (*ClaimRepository)(nil)
