package event

import (
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

func TestType_Classification(t *testing.T) {
	tests := []struct {
		eventType  Type
		lifecycle  bool
		validation bool
		passed     bool
	}{
		{TypeClaimSubmitted, true, false, false},
		{TypeClaimPaidOut, true, false, false},
		{TypeCustomerValidationPassed, false, true, true},
		{TypeCustomerValidationFailed, false, true, false},
		{TypePolicyEvaluationPassed, false, true, true},
		{TypePolicyEvaluationFailed, false, true, false},
		{Type("SOMETHING_ELSE"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType.String(), func(t *testing.T) {
			assert.Equal(t, tt.lifecycle, tt.eventType.IsClaimLifecycle())
			assert.Equal(t, tt.validation, tt.eventType.IsValidationResult())
			assert.Equal(t, tt.lifecycle || tt.validation, tt.eventType.IsValid())
			assert.Equal(t, tt.passed, tt.eventType.Passed())
		})
	}
}

func TestValidationResultType(t *testing.T) {
	assert.Equal(t, TypeCustomerValidationPassed, ValidationResultType(entity.SourceCustomer, true))
	assert.Equal(t, TypeCustomerValidationFailed, ValidationResultType(entity.SourceCustomer, false))
	assert.Equal(t, TypePolicyEvaluationPassed, ValidationResultType(entity.SourcePolicy, true))
	assert.Equal(t, TypePolicyEvaluationFailed, ValidationResultType(entity.SourcePolicy, false))
}

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	evt := NewEvent(TypeClaimSubmitted, "claim-1", nil)

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, "claim-1", evt.ClaimID)
	assert.False(t, evt.Timestamp.Before(before))

	linked := NewEventWithCorrelation(TypeClaimInReview, "claim-1", nil, evt.CorrelationID)
	assert.NotEqual(t, evt.ID, linked.ID)
	assert.Equal(t, evt.CorrelationID, linked.CorrelationID)
}

func TestNewClaimEvent_SnapshotIsIndependent(t *testing.T) {
	claim, err := entity.NewClaim("p-1", "c-1", "", decimal.MustParse("10"), time.Now())
	require.NoError(t, err)

	evt := NewClaimEvent(TypeClaimSubmitted, claim)
	claim.Description = "changed"

	assert.Equal(t, "", evt.Claim.Description)
	assert.Equal(t, "SUBMITTED", evt.GetPayloadString("status"))
}

func TestEvent_ValidationOutcome(t *testing.T) {
	now := time.Now()

	t.Run("payload answer", func(t *testing.T) {
		evt := NewValidationResultEvent("claim-1", entity.SourcePolicy, false, "expired")
		outcome, ok := evt.ValidationOutcome(now)
		require.True(t, ok)
		assert.Equal(t, entity.SourcePolicy, outcome.Source)
		assert.Equal(t, entity.VerdictInvalid, outcome.Verdict)
		assert.Equal(t, "expired", outcome.Detail)
	})

	t.Run("type decides when payload is silent", func(t *testing.T) {
		evt := NewEvent(TypeCustomerValidationPassed, "claim-1", nil)
		outcome, ok := evt.ValidationOutcome(now)
		require.True(t, ok)
		assert.True(t, outcome.Valid)
		assert.Equal(t, entity.SourceCustomer, outcome.Source)
	})

	t.Run("lifecycle events carry no outcome", func(t *testing.T) {
		_, ok := NewEvent(TypeClaimApproved, "claim-1", nil).ValidationOutcome(now)
		assert.False(t, ok)
	})
}
