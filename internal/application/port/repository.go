package port

import (
	"context"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

// ClaimRepository defines persistence operations for Claim.
// Get returns entity.ErrNotFound for unknown ids. Save inserts a claim whose
// Version is zero and otherwise updates it only if the stored version still
// matches, returning entity.ErrConflict when it does not. A successful Save
// advances claim.Version.
type ClaimRepository interface {
	Get(ctx context.Context, id string) (*entity.Claim, error)
	Save(ctx context.Context, claim *entity.Claim) error
	ListByCustomer(ctx context.Context, customerRef string) ([]*entity.Claim, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// ValidationRepository stores the validation audit trail, one outcome per (claim, source)
type ValidationRepository interface {
	// RecordIfAbsent stores the outcome unless one already exists for its
	// claim and source. It reports whether the outcome was stored.
	RecordIfAbsent(ctx context.Context, outcome *entity.ValidationOutcome) (bool, error)
	ListByClaim(ctx context.Context, claimID string) ([]*entity.ValidationOutcome, error)
}

// HistoryRepository defines persistence operations for ClaimHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ClaimHistory) error
	ListByClaim(ctx context.Context, claimID string) ([]*entity.ClaimHistory, error)
}

// TransactionManager defines transaction operations
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
