package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/govalues/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/application/validation"
	"github.com/garyjia/claims-service/internal/application/workflow"
	"github.com/garyjia/claims-service/internal/domain/entity"
	domainwf "github.com/garyjia/claims-service/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SubmitClaimInput carries the data of a new claim
type SubmitClaimInput struct {
	PolicyRef      string
	CustomerRef    string
	Description    string
	ReportedAmount decimal.Decimal
}

// ClaimService manages the claim lifecycle
type ClaimService interface {
	SubmitClaim(ctx context.Context, input SubmitClaimInput) (*entity.Claim, error)
	StartReview(ctx context.Context, claimID string) (*entity.Claim, error)
	Approve(ctx context.Context, claimID string, amount *decimal.Decimal, reason string) (*entity.Claim, error)
	Reject(ctx context.Context, claimID string, reason string) (*entity.Claim, error)
	Payout(ctx context.Context, claimID string) (*entity.Claim, error)
	GetClaim(ctx context.Context, claimID string) (*entity.Claim, error)
	ListForCustomer(ctx context.Context, customerRef string) ([]*entity.Claim, error)
	GetValidation(ctx context.Context, claimID string) (*entity.ValidationSummary, error)
	GetHistory(ctx context.Context, claimID string) ([]*entity.ClaimHistory, error)
}

type claimServiceImpl struct {
	claimRepo   port.ClaimRepository
	historyRepo port.HistoryRepository
	engine      workflow.LifecycleEngine
	strategy    validation.Strategy
	recorder    *validation.OutcomeRecorder
	logger      Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures the claim service
type Option func(*claimServiceImpl)

// WithTracer sets the tracer service operations are recorded with
func WithTracer(tracer trace.Tracer) Option {
	return func(s *claimServiceImpl) {
		s.tracer = tracer
	}
}

// WithClock overrides the time source used for new claims
func WithClock(now func() time.Time) Option {
	return func(s *claimServiceImpl) {
		s.now = now
	}
}

// NewClaimService creates a new ClaimService
func NewClaimService(
	claimRepo port.ClaimRepository,
	historyRepo port.HistoryRepository,
	engine workflow.LifecycleEngine,
	strategy validation.Strategy,
	recorder *validation.OutcomeRecorder,
	logger Logger,
	opts ...Option,
) ClaimService {
	s := &claimServiceImpl{
		claimRepo:   claimRepo,
		historyRepo: historyRepo,
		engine:      engine,
		strategy:    strategy,
		recorder:    recorder,
		logger:      logger,
		tracer:      noop.NewTracerProvider().Tracer(""),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SubmitClaim creates a claim, validates it with the configured strategy and announces it.
// Validation never fails the submission. If only the announcement fails the
// stored claim is returned together with the error.
func (s *claimServiceImpl) SubmitClaim(ctx context.Context, input SubmitClaimInput) (*entity.Claim, error) {
	ctx, span := s.tracer.Start(ctx, "ClaimService.SubmitClaim",
		trace.WithAttributes(attribute.String("validation.mode", string(s.strategy.Mode()))))
	defer span.End()

	claim, err := entity.NewClaim(input.PolicyRef, input.CustomerRef, input.Description, input.ReportedAmount, s.now())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("claim.id", claim.ID))

	outcomes := s.strategy.Validate(ctx, claim)

	if err := s.engine.Create(ctx, claim); err != nil {
		s.fail(span, err)
		s.logger.Error("Failed to store claim", "error", err, "claim_id", claim.ID)
		return nil, err
	}

	if err := s.recorder.ApplyAll(ctx, outcomes); err != nil {
		s.logger.Error("Failed to record validation outcomes", "error", err, "claim_id", claim.ID)
	}

	if err := s.engine.Emit(ctx, claim); err != nil {
		s.fail(span, err)
		s.logger.Error("Failed to publish claim event", "error", err, "claim_id", claim.ID)
		return claim, err
	}

	s.logger.Info("Claim submitted",
		"claim_id", claim.ID,
		"policy_ref", claim.PolicyRef,
		"customer_ref", claim.CustomerRef,
		"validation_mode", s.strategy.Mode(),
	)
	return claim, nil
}

// StartReview moves a SUBMITTED claim to IN_REVIEW
func (s *claimServiceImpl) StartReview(ctx context.Context, claimID string) (*entity.Claim, error) {
	return s.transition(ctx, claimID, domainwf.TriggerStartReview, func(c *entity.Claim, now time.Time) error {
		return c.StartReview(now)
	})
}

// Approve moves an IN_REVIEW claim to APPROVED
func (s *claimServiceImpl) Approve(ctx context.Context, claimID string, amount *decimal.Decimal, reason string) (*entity.Claim, error) {
	return s.transition(ctx, claimID, domainwf.TriggerApprove, func(c *entity.Claim, now time.Time) error {
		return c.Approve(amount, reason, now)
	})
}

// Reject moves an IN_REVIEW claim to REJECTED
func (s *claimServiceImpl) Reject(ctx context.Context, claimID string, reason string) (*entity.Claim, error) {
	return s.transition(ctx, claimID, domainwf.TriggerReject, func(c *entity.Claim, now time.Time) error {
		return c.Reject(reason, now)
	})
}

// Payout moves an APPROVED claim to PAID_OUT
func (s *claimServiceImpl) Payout(ctx context.Context, claimID string) (*entity.Claim, error) {
	return s.transition(ctx, claimID, domainwf.TriggerPayout, func(c *entity.Claim, now time.Time) error {
		return c.Payout(now)
	})
}

// GetClaim retrieves a claim by id
func (s *claimServiceImpl) GetClaim(ctx context.Context, claimID string) (*entity.Claim, error) {
	claim, err := s.claimRepo.Get(ctx, claimID)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			s.logger.Error("Failed to get claim", "error", err, "claim_id", claimID)
		}
		return nil, err
	}
	return claim, nil
}

// ListForCustomer returns a customer's claims
func (s *claimServiceImpl) ListForCustomer(ctx context.Context, customerRef string) ([]*entity.Claim, error) {
	if strings.TrimSpace(customerRef) == "" {
		return nil, fmt.Errorf("%w: customer reference is required", entity.ErrInvalidArgument)
	}

	claims, err := s.claimRepo.ListByCustomer(ctx, customerRef)
	if err != nil {
		s.logger.Error("Failed to list claims", "error", err, "customer_ref", customerRef)
		return nil, err
	}
	return claims, nil
}

// GetValidation returns the recorded validation outcomes of a claim
func (s *claimServiceImpl) GetValidation(ctx context.Context, claimID string) (*entity.ValidationSummary, error) {
	if _, err := s.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}
	return s.recorder.Summary(ctx, claimID)
}

// GetHistory returns the transition audit trail of a claim
func (s *claimServiceImpl) GetHistory(ctx context.Context, claimID string) ([]*entity.ClaimHistory, error) {
	if _, err := s.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByClaim(ctx, claimID)
}

func (s *claimServiceImpl) transition(ctx context.Context, claimID string, trigger domainwf.Trigger, apply workflow.ApplyFunc) (*entity.Claim, error) {
	ctx, span := s.tracer.Start(ctx, "ClaimService."+strings.ToLower(trigger.String()),
		trace.WithAttributes(attribute.String("claim.id", claimID)))
	defer span.End()

	claim, err := s.engine.Transition(ctx, claimID, trigger, apply)
	if err != nil {
		s.fail(span, err)
		switch {
		case errors.Is(err, entity.ErrNotFound),
			errors.Is(err, entity.ErrInvalidState),
			errors.Is(err, entity.ErrInvalidArgument),
			errors.Is(err, entity.ErrConflict):
			s.logger.Warn("Claim transition refused", "claim_id", claimID, "trigger", trigger, "error", err)
		default:
			s.logger.Error("Claim transition failed", "claim_id", claimID, "trigger", trigger, "error", err)
		}
		return claim, err
	}

	s.logger.Info("Claim transitioned", "claim_id", claim.ID, "trigger", trigger, "status", claim.Status)
	return claim, nil
}

func (s *claimServiceImpl) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
