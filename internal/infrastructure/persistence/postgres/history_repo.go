package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository on postgres
type HistoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(pool *pgxpool.Pool, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{pool: pool, logger: logger}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ClaimHistory) error {
	err := executor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO claim_history (claim_id, previous_status, new_status, action, reason, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		history.ClaimID, history.PreviousStatus, history.NewStatus, history.Action,
		history.Reason, history.Timestamp.UTC(),
	).Scan(&history.ID)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// ListByClaim retrieves all history records for a claim in insertion order
func (r *HistoryRepository) ListByClaim(ctx context.Context, claimID string) ([]*entity.ClaimHistory, error) {
	rows, err := executor(ctx, r.pool).Query(ctx, `
		SELECT id, claim_id, previous_status, new_status, action, reason, timestamp
		FROM claim_history
		WHERE claim_id = $1
		ORDER BY id ASC`, claimID)
	if err != nil {
		r.logger.Error("Failed to get history by claim ID", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.ClaimHistory
	for rows.Next() {
		var record entity.ClaimHistory
		if err := rows.Scan(&record.ID, &record.ClaimID, &record.PreviousStatus, &record.NewStatus,
			&record.Action, &record.Reason, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		record.Timestamp = record.Timestamp.UTC()
		records = append(records, &record)
	}
	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
