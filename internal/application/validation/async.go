package validation

import (
	"context"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

// AsyncStrategy performs no lookups at submission. The claim-submitted
// event is the validation request; answers arrive through OutcomeRecorder.
type AsyncStrategy struct {
	logger Logger
}

// NewAsyncStrategy creates the event-driven strategy
func NewAsyncStrategy(logger Logger) *AsyncStrategy {
	if logger == nil {
		logger = nopLogger{}
	}
	return &AsyncStrategy{logger: logger}
}

// Mode reports ModeAsync
func (s *AsyncStrategy) Mode() Mode {
	return ModeAsync
}

// Validate returns no outcomes
func (s *AsyncStrategy) Validate(ctx context.Context, claim *entity.Claim) []*entity.ValidationOutcome {
	s.logger.Info("Validation deferred to claim event consumers", "claim_id", claim.ID)
	return nil
}
