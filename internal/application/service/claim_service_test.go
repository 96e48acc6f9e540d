package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/claims-service/internal/application/dispatcher"
	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/application/validation"
	"github.com/garyjia/claims-service/internal/application/workflow"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/event"
	domainwf "github.com/garyjia/claims-service/internal/domain/workflow"
	"github.com/garyjia/claims-service/internal/infrastructure/persistence/memory"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockPolicyLookup struct {
	policyByIDFunc func(ctx context.Context, policyRef string) (*entity.PolicySummary, error)
}

func (m *mockPolicyLookup) PolicyByID(ctx context.Context, policyRef string) (*entity.PolicySummary, error) {
	if m.policyByIDFunc != nil {
		return m.policyByIDFunc(ctx, policyRef)
	}
	return &entity.PolicySummary{ID: policyRef, PolicyNumber: policyRef, Status: entity.PolicyStatusActive}, nil
}

type mockCustomerLookup struct {
	isCustomerValidFunc func(ctx context.Context, customerRef string) (bool, error)
}

func (m *mockCustomerLookup) IsCustomerValid(ctx context.Context, customerRef string) (bool, error) {
	if m.isCustomerValidFunc != nil {
		return m.isCustomerValidFunc(ctx, customerRef)
	}
	return true, nil
}

type testEnv struct {
	store      *memory.Store
	dispatcher dispatcher.Dispatcher
	recorder   *validation.OutcomeRecorder
	service    ClaimService
	events     []event.Type
}

func newTestEnv(t *testing.T, strategy validation.Strategy) *testEnv {
	t.Helper()

	env := &testEnv{
		store:      memory.NewStore(),
		dispatcher: dispatcher.NewDispatcher(),
	}
	env.dispatcher.SubscribeAll(workflow.LifecycleEventTypes(), "collector", func(_ context.Context, evt *event.Event) error {
		env.events = append(env.events, evt.Type)
		return nil
	})

	engine := workflow.NewEngine(env.store.Claims(), env.store.History(), env.store, workflow.WithDispatcher(env.dispatcher))
	env.recorder = validation.NewOutcomeRecorder(env.store.Claims(), env.store.Validations(), nil, &mockLogger{})
	if strategy == nil {
		strategy = validation.NewAsyncStrategy(&mockLogger{})
	}
	env.service = NewClaimService(env.store.Claims(), env.store.History(), engine, strategy, env.recorder, &mockLogger{})
	return env
}

func submitInput(amount string) SubmitClaimInput {
	return SubmitClaimInput{
		PolicyRef:      "p1",
		CustomerRef:    "c1",
		Description:    "water damage",
		ReportedAmount: decimal.MustParse(amount),
	}
}

func amountOf(s string) *decimal.Decimal {
	d := decimal.MustParse(s)
	return &d
}

func TestSubmitClaim_CreatesSubmittedClaim(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	claim, err := env.service.SubmitClaim(ctx, submitInput("500.00"))

	require.NoError(t, err)
	assert.NotEmpty(t, claim.ID)
	assert.Equal(t, domainwf.StateSubmitted, claim.Status)
	assert.Equal(t, "500.00", claim.ReportedAmount.String())
	assert.Nil(t, claim.Decision)
	assert.False(t, claim.IsApproved())
	assert.Equal(t, []event.Type{event.TypeClaimSubmitted}, env.events)

	stored, err := env.service.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, stored.ID)
}

func TestSubmitClaim_RejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name  string
		input SubmitClaimInput
	}{
		{"negative amount", submitInput("-1")},
		{"blank policy", SubmitClaimInput{CustomerRef: "c1", Description: "x", ReportedAmount: decimal.One}},
		{"blank customer", SubmitClaimInput{PolicyRef: "p1", Description: "x", ReportedAmount: decimal.One}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim, err := env.service.SubmitClaim(context.Background(), tt.input)
			assert.Nil(t, claim)
			assert.ErrorIs(t, err, entity.ErrInvalidArgument)
		})
	}
	assert.Empty(t, env.events)
}

func TestLifecycle_ApproveAndPayout(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	claim, err := env.service.SubmitClaim(ctx, submitInput("500.00"))
	require.NoError(t, err)

	claim, err = env.service.StartReview(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateInReview, claim.Status)

	claim, err = env.service.Approve(ctx, claim.ID, amountOf("450.00"), "partial")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateApproved, claim.Status)
	require.NotNil(t, claim.Decision)
	assert.Equal(t, "450.00", claim.Decision.ApprovedAmount.String())
	assert.Equal(t, "partial", claim.Decision.Reason)

	claim, err = env.service.Payout(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePaidOut, claim.Status)
	assert.True(t, claim.IsApproved())

	assert.Equal(t, []event.Type{
		event.TypeClaimSubmitted,
		event.TypeClaimInReview,
		event.TypeClaimApproved,
		event.TypeClaimPaidOut,
	}, env.events)

	history, err := env.service.GetHistory(ctx, claim.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "SUBMITTED", history[0].NewStatus)
	assert.Equal(t, "APPROVED", history[3].PreviousStatus)
	assert.Equal(t, "PAID_OUT", history[3].NewStatus)
}

func TestLifecycle_Reject(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	claim, err := env.service.SubmitClaim(ctx, submitInput("80"))
	require.NoError(t, err)
	_, err = env.service.StartReview(ctx, claim.ID)
	require.NoError(t, err)

	claim, err = env.service.Reject(ctx, claim.ID, "not covered")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateRejected, claim.Status)
	require.NotNil(t, claim.Decision)
	assert.True(t, claim.Decision.ApprovedAmount.IsZero())
	assert.False(t, claim.IsApproved())

	_, err = env.service.Payout(ctx, claim.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestApprove_RequiresReview(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	claim, err := env.service.SubmitClaim(ctx, submitInput("100"))
	require.NoError(t, err)

	_, err = env.service.Approve(ctx, claim.ID, amountOf("100"), "x")
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	stored, err := env.service.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSubmitted, stored.Status)
	assert.Nil(t, stored.Decision)
	assert.Equal(t, []event.Type{event.TypeClaimSubmitted}, env.events)
}

func TestApprove_RejectsBadAmount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	claim, err := env.service.SubmitClaim(ctx, submitInput("100"))
	require.NoError(t, err)
	_, err = env.service.StartReview(ctx, claim.ID)
	require.NoError(t, err)

	_, err = env.service.Approve(ctx, claim.ID, amountOf("-1"), "x")
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)

	_, err = env.service.Approve(ctx, claim.ID, nil, "x")
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)

	stored, err := env.service.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateInReview, stored.Status)
}

func TestTransitions_UnknownClaim(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.service.StartReview(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = env.service.GetClaim(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = env.service.GetValidation(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = env.service.GetHistory(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSubmitClaim_SyncValidationRecordsOutcomes(t *testing.T) {
	strategy := validation.NewSyncStrategy(&mockPolicyLookup{}, &mockCustomerLookup{
		isCustomerValidFunc: func(context.Context, string) (bool, error) {
			return false, nil
		},
	})
	env := newTestEnv(t, strategy)
	ctx := context.Background()

	claim, err := env.service.SubmitClaim(ctx, submitInput("500.00"))
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSubmitted, claim.Status)

	summary, err := env.service.GetValidation(ctx, claim.ID)
	require.NoError(t, err)
	assert.True(t, summary.Complete)
	assert.Equal(t, entity.VerdictValid, summary.Policy.Verdict)
	assert.Equal(t, entity.VerdictInvalid, summary.Customer.Verdict)
}

func TestSubmitClaim_PolicyTimeoutIsAdvisory(t *testing.T) {
	strategy := validation.NewSyncStrategy(
		&mockPolicyLookup{
			policyByIDFunc: func(ctx context.Context, _ string) (*entity.PolicySummary, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
		&mockCustomerLookup{},
		validation.WithTimeouts(20*time.Millisecond, time.Second),
	)
	env := newTestEnv(t, strategy)
	ctx := context.Background()

	start := time.Now()
	claim, err := env.service.SubmitClaim(ctx, submitInput("500.00"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domainwf.StateSubmitted, claim.Status)

	summary, err := env.service.GetValidation(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VerdictUnknown, summary.Policy.Verdict)
	assert.Equal(t, entity.VerdictValid, summary.Customer.Verdict)
}

func TestSubmitClaim_AsyncOutcomesArriveLater(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	claim, err := env.service.SubmitClaim(ctx, submitInput("500.00"))
	require.NoError(t, err)

	summary, err := env.service.GetValidation(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ValidationPending, summary.State)

	require.NoError(t, env.recorder.HandleEvent(ctx, event.NewValidationResultEvent(claim.ID, entity.SourcePolicy, true, "")))
	require.NoError(t, env.recorder.HandleEvent(ctx, event.NewValidationResultEvent(claim.ID, entity.SourcePolicy, false, "late duplicate")))

	summary, err = env.service.GetValidation(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ValidationRecorded, summary.State)
	assert.False(t, summary.Complete)
	assert.Equal(t, entity.VerdictValid, summary.Policy.Verdict)

	stored, err := env.service.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSubmitted, stored.Status)
}

func TestSubmitClaim_PublishFailureReturnsStoredClaim(t *testing.T) {
	env := newTestEnv(t, nil)
	env.dispatcher.Subscribe(event.TypeClaimSubmitted, "broken-broker", func(context.Context, *event.Event) error {
		return errors.New("connection refused")
	})
	ctx := context.Background()

	claim, err := env.service.SubmitClaim(ctx, submitInput("500.00"))

	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrPublishFailure)
	require.NotNil(t, claim)

	stored, getErr := env.service.GetClaim(ctx, claim.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domainwf.StateSubmitted, stored.Status)
}

func TestListForCustomer(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.service.SubmitClaim(ctx, submitInput("1"))
	require.NoError(t, err)
	_, err = env.service.SubmitClaim(ctx, submitInput("2"))
	require.NoError(t, err)

	claims, err := env.service.ListForCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, claims, 2)

	claims, err = env.service.ListForCustomer(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, claims)

	_, err = env.service.ListForCustomer(ctx, " ")
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)
}
