package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
)

const (
	DefaultPolicyTimeout   = 2 * time.Second
	DefaultCustomerTimeout = 2 * time.Second
)

// SyncStrategy calls the policy and customer services concurrently while a
// claim is submitted. Each call has its own deadline.
type SyncStrategy struct {
	policies        port.PolicyLookup
	customers       port.CustomerLookup
	policyTimeout   time.Duration
	customerTimeout time.Duration
	metrics         *Metrics
	logger          Logger
	tracer          trace.Tracer
	now             func() time.Time
}

// SyncOption configures a SyncStrategy
type SyncOption func(*SyncStrategy)

// WithTimeouts sets the per-lookup deadlines; zero keeps the default
func WithTimeouts(policy, customer time.Duration) SyncOption {
	return func(s *SyncStrategy) {
		if policy > 0 {
			s.policyTimeout = policy
		}
		if customer > 0 {
			s.customerTimeout = customer
		}
	}
}

// WithMetrics sets the instruments lookups are counted with
func WithMetrics(metrics *Metrics) SyncOption {
	return func(s *SyncStrategy) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger Logger) SyncOption {
	return func(s *SyncStrategy) {
		s.logger = logger
	}
}

// WithTracer sets the tracer lookups are recorded with
func WithTracer(tracer trace.Tracer) SyncOption {
	return func(s *SyncStrategy) {
		s.tracer = tracer
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncStrategy) {
		s.now = now
	}
}

// NewSyncStrategy creates the call-and-wait strategy
func NewSyncStrategy(policies port.PolicyLookup, customers port.CustomerLookup, opts ...SyncOption) *SyncStrategy {
	s := &SyncStrategy{
		policies:        policies,
		customers:       customers,
		policyTimeout:   DefaultPolicyTimeout,
		customerTimeout: DefaultCustomerTimeout,
		metrics:         NopMetrics(),
		logger:          nopLogger{},
		tracer:          noop.NewTracerProvider().Tracer(""),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports ModeSync
func (s *SyncStrategy) Mode() Mode {
	return ModeSync
}

// Validate runs both lookups concurrently and waits for both answers or deadlines
func (s *SyncStrategy) Validate(ctx context.Context, claim *entity.Claim) []*entity.ValidationOutcome {
	ctx, span := s.tracer.Start(ctx, "validation.sync",
		trace.WithAttributes(attribute.String("claim.id", claim.ID)))
	defer span.End()

	var policyOutcome, customerOutcome *entity.ValidationOutcome

	var g errgroup.Group
	g.Go(func() error {
		policyOutcome = s.checkPolicy(ctx, claim)
		return nil
	})
	g.Go(func() error {
		customerOutcome = s.checkCustomer(ctx, claim)
		return nil
	})
	_ = g.Wait()

	span.SetAttributes(
		attribute.String("validation.policy", string(policyOutcome.Verdict)),
		attribute.String("validation.customer", string(customerOutcome.Verdict)),
	)

	return []*entity.ValidationOutcome{policyOutcome, customerOutcome}
}

func (s *SyncStrategy) checkPolicy(ctx context.Context, claim *entity.Claim) *entity.ValidationOutcome {
	ctx, span := s.tracer.Start(ctx, "validation.policy_lookup",
		trace.WithAttributes(attribute.String("policy.ref", claim.PolicyRef)))
	defer span.End()

	summary, err := callWithTimeout(ctx, s.policyTimeout, func(ctx context.Context) (*entity.PolicySummary, error) {
		return s.policies.PolicyByID(ctx, claim.PolicyRef)
	})
	now := s.now()

	switch {
	case errors.Is(err, port.ErrLookupNotFound):
		s.metrics.RecordLookup(ctx, sourceLabel(entity.SourcePolicy), LookupNotFound)
		s.logger.Warn("Policy service did not return a policy", "claim_id", claim.ID, "policy_ref", claim.PolicyRef)
		return entity.NewValidationOutcome(claim.ID, entity.SourcePolicy, false, "policy not found", now)
	case err != nil:
		s.metrics.RecordLookup(ctx, sourceLabel(entity.SourcePolicy), LookupUnavailable)
		span.RecordError(err)
		span.SetStatus(codes.Error, "policy lookup failed")
		s.logger.Warn("Policy lookup failed", "claim_id", claim.ID, "policy_ref", claim.PolicyRef, "error", err)
		return entity.UnknownOutcome(claim.ID, entity.SourcePolicy, err.Error(), now)
	}

	s.metrics.RecordLookup(ctx, sourceLabel(entity.SourcePolicy), LookupFound)
	covered := summary.CoversAt(claim.CreatedAt)
	detail := fmt.Sprintf("policy %s status %s", summary.PolicyNumber, summary.Status)
	s.logger.Info("Policy service returned policy",
		"claim_id", claim.ID,
		"policy_number", summary.PolicyNumber,
		"covered", covered,
	)
	return entity.NewValidationOutcome(claim.ID, entity.SourcePolicy, covered, detail, now)
}

func (s *SyncStrategy) checkCustomer(ctx context.Context, claim *entity.Claim) *entity.ValidationOutcome {
	ctx, span := s.tracer.Start(ctx, "validation.customer_lookup",
		trace.WithAttributes(attribute.String("customer.ref", claim.CustomerRef)))
	defer span.End()

	valid, err := callWithTimeout(ctx, s.customerTimeout, func(ctx context.Context) (bool, error) {
		return s.customers.IsCustomerValid(ctx, claim.CustomerRef)
	})
	now := s.now()

	switch {
	case errors.Is(err, port.ErrLookupNotFound):
		s.metrics.RecordLookup(ctx, sourceLabel(entity.SourceCustomer), LookupInvalidOrNotFound)
		s.logger.Warn("Customer service does not know customer", "claim_id", claim.ID, "customer_ref", claim.CustomerRef)
		return entity.NewValidationOutcome(claim.ID, entity.SourceCustomer, false, "customer not found", now)
	case err != nil:
		s.metrics.RecordLookup(ctx, sourceLabel(entity.SourceCustomer), LookupUnavailable)
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer lookup failed")
		s.logger.Warn("Customer lookup failed", "claim_id", claim.ID, "customer_ref", claim.CustomerRef, "error", err)
		return entity.UnknownOutcome(claim.ID, entity.SourceCustomer, err.Error(), now)
	case valid:
		s.metrics.RecordLookup(ctx, sourceLabel(entity.SourceCustomer), LookupValid)
	default:
		s.metrics.RecordLookup(ctx, sourceLabel(entity.SourceCustomer), LookupInvalidOrNotFound)
		s.logger.Warn("Customer service reports invalid customer data", "claim_id", claim.ID, "customer_ref", claim.CustomerRef)
	}

	return entity.NewValidationOutcome(claim.ID, entity.SourceCustomer, valid, "", now)
}

// callWithTimeout returns when fn returns or the deadline passes, whichever
// comes first, so a lookup that ignores its context cannot stall submission.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, fmt.Errorf("%w: lookup panic: %v", port.ErrLookupUnavailable, r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", port.ErrLookupUnavailable, ctx.Err())
	}
}

func sourceLabel(source entity.Source) string {
	return strings.ToLower(string(source))
}
