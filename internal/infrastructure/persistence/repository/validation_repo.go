package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/infrastructure/persistence/sqlite"
)

// ValidationRepository implements port.ValidationRepository on sqlite
type ValidationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewValidationRepository creates a new validation outcome repository
func NewValidationRepository(db *sql.DB, logger *zap.Logger) *ValidationRepository {
	return &ValidationRepository{
		db:     db,
		logger: logger,
	}
}

// RecordIfAbsent inserts the outcome unless its (claim, source) pair is taken
func (r *ValidationRepository) RecordIfAbsent(ctx context.Context, outcome *entity.ValidationOutcome) (bool, error) {
	query := `
		INSERT INTO validation_outcomes (claim_id, source, valid, verdict, detail, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (claim_id, source) DO NOTHING
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		outcome.ClaimID,
		string(outcome.Source),
		outcome.Valid,
		string(outcome.Verdict),
		outcome.Detail,
		outcome.ReceivedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to record validation outcome",
			zap.String("claim_id", outcome.ClaimID),
			zap.String("source", string(outcome.Source)),
			zap.Error(err))
		return false, fmt.Errorf("failed to record validation outcome: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ListByClaim returns the outcomes recorded for a claim
func (r *ValidationRepository) ListByClaim(ctx context.Context, claimID string) ([]*entity.ValidationOutcome, error) {
	query := `
		SELECT claim_id, source, valid, verdict, detail, received_at
		FROM validation_outcomes
		WHERE claim_id = ?
		ORDER BY received_at ASC, source ASC
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to list validation outcomes", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to list validation outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*entity.ValidationOutcome
	for rows.Next() {
		var (
			outcome entity.ValidationOutcome
			source  string
			verdict string
		)
		if err := rows.Scan(
			&outcome.ClaimID,
			&source,
			&outcome.Valid,
			&verdict,
			&outcome.Detail,
			&outcome.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan validation outcome: %w", err)
		}
		if outcome.Source, err = entity.ParseSource(source); err != nil {
			return nil, err
		}
		outcome.Verdict = entity.Verdict(verdict)
		outcome.ReceivedAt = outcome.ReceivedAt.UTC()
		outcomes = append(outcomes, &outcome)
	}
	return outcomes, rows.Err()
}

var _ port.ValidationRepository = (*ValidationRepository)(nil)
