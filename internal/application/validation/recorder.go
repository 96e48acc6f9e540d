package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/event"
)

// ApplyResult describes what happened to one inbound outcome
type ApplyResult string

const (
	ResultRecorded      ApplyResult = OutcomeSuccess
	ResultDuplicate     ApplyResult = OutcomeDuplicate
	ResultNoClaimID     ApplyResult = OutcomeNoClaimID
	ResultClaimNotFound ApplyResult = OutcomeClaimNotFound
)

// OutcomeRecorder applies validation outcomes to the audit store.
// Applying the same (claim, source) outcome twice is a no-op and outcomes
// may arrive in any order. Store errors are returned so the delivery layer
// can leave the message for redelivery.
type OutcomeRecorder struct {
	claims      port.ClaimRepository
	validations port.ValidationRepository
	metrics     *Metrics
	logger      Logger
	now         func() time.Time
}

// NewOutcomeRecorder creates a recorder; metrics and logger may be nil
func NewOutcomeRecorder(claims port.ClaimRepository, validations port.ValidationRepository, metrics *Metrics, logger Logger) *OutcomeRecorder {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &OutcomeRecorder{
		claims:      claims,
		validations: validations,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Apply records one outcome
func (r *OutcomeRecorder) Apply(ctx context.Context, outcome *entity.ValidationOutcome) (ApplyResult, error) {
	source := sourceLabel(outcome.Source)

	claimID := strings.TrimSpace(outcome.ClaimID)
	if claimID == "" {
		r.metrics.RecordOutcome(ctx, source, OutcomeNoClaimID)
		r.logger.Warn("Validation result without claim id received, ignoring", "source", outcome.Source)
		return ResultNoClaimID, nil
	}

	exists, err := r.claims.Exists(ctx, claimID)
	if err != nil {
		r.metrics.RecordOutcome(ctx, source, OutcomeError)
		return "", fmt.Errorf("check claim %s: %w", claimID, err)
	}
	if !exists {
		r.metrics.RecordOutcome(ctx, source, OutcomeClaimNotFound)
		r.logger.Warn("Validation result for unknown claim received, ignoring", "claim_id", claimID, "source", outcome.Source)
		return ResultClaimNotFound, nil
	}

	stored := *outcome
	stored.ClaimID = claimID
	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = r.now().UTC()
	}

	inserted, err := r.validations.RecordIfAbsent(ctx, &stored)
	if err != nil {
		r.metrics.RecordOutcome(ctx, source, OutcomeError)
		return "", fmt.Errorf("record %s outcome for claim %s: %w", outcome.Source, claimID, err)
	}
	if !inserted {
		r.metrics.RecordOutcome(ctx, source, OutcomeDuplicate)
		r.logger.Info("Duplicate validation result ignored", "claim_id", claimID, "source", outcome.Source)
		return ResultDuplicate, nil
	}

	r.metrics.RecordOutcome(ctx, source, OutcomeSuccess)
	r.logger.Info("Validation outcome recorded",
		"claim_id", claimID,
		"source", outcome.Source,
		"verdict", outcome.Verdict,
	)
	return ResultRecorded, nil
}

// ApplyAll records outcomes in order and stops at the first store error
func (r *OutcomeRecorder) ApplyAll(ctx context.Context, outcomes []*entity.ValidationOutcome) error {
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if _, err := r.Apply(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// HandleEvent is a dispatcher handler for validation result events
func (r *OutcomeRecorder) HandleEvent(ctx context.Context, evt *event.Event) error {
	outcome, ok := evt.ValidationOutcome(r.now())
	if !ok {
		return fmt.Errorf("%w: event type %s carries no validation outcome", port.ErrMalformedPayload, evt.Type)
	}
	_, err := r.Apply(ctx, outcome)
	return err
}

// Summary returns the recorded outcomes of one claim
func (r *OutcomeRecorder) Summary(ctx context.Context, claimID string) (*entity.ValidationSummary, error) {
	outcomes, err := r.validations.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes for claim %s: %w", claimID, err)
	}
	return entity.Summarize(claimID, outcomes), nil
}
