package event

import "github.com/garyjia/claims-service/internal/domain/entity"

// Type identifies the type of domain event
type Type string

// Claim lifecycle events, one per transition
const (
	TypeClaimSubmitted Type = "CLAIM_SUBMITTED"
	TypeClaimInReview  Type = "CLAIM_IN_REVIEW"
	TypeClaimApproved  Type = "CLAIM_APPROVED"
	TypeClaimRejected  Type = "CLAIM_REJECTED"
	TypeClaimPaidOut   Type = "CLAIM_PAID_OUT"
)

// Validation result events produced by the customer and policy services
const (
	TypeCustomerValidationPassed Type = "CUSTOMER_VALIDATION_PASSED"
	TypeCustomerValidationFailed Type = "CUSTOMER_VALIDATION_FAILED"
	TypePolicyEvaluationPassed   Type = "POLICY_EVALUATION_PASSED"
	TypePolicyEvaluationFailed   Type = "POLICY_EVALUATION_FAILED"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	return t.IsClaimLifecycle() || t.IsValidationResult()
}

// IsClaimLifecycle reports whether the type is emitted on a claim transition
func (t Type) IsClaimLifecycle() bool {
	switch t {
	case TypeClaimSubmitted,
		TypeClaimInReview,
		TypeClaimApproved,
		TypeClaimRejected,
		TypeClaimPaidOut:
		return true
	default:
		return false
	}
}

// IsValidationResult reports whether the type carries a validation outcome
func (t Type) IsValidationResult() bool {
	_, ok := validationSources[t]
	return ok
}

// ValidationSource returns the service a validation result type comes from
func (t Type) ValidationSource() (entity.Source, bool) {
	s, ok := validationSources[t]
	return s, ok
}

// Passed reports whether a validation result type signals success
func (t Type) Passed() bool {
	return t == TypeCustomerValidationPassed || t == TypePolicyEvaluationPassed
}

var validationSources = map[Type]entity.Source{
	TypeCustomerValidationPassed: entity.SourceCustomer,
	TypeCustomerValidationFailed: entity.SourceCustomer,
	TypePolicyEvaluationPassed:   entity.SourcePolicy,
	TypePolicyEvaluationFailed:   entity.SourcePolicy,
}

// ValidationResultType returns the result type for a source and answer
func ValidationResultType(source entity.Source, valid bool) Type {
	switch {
	case source == entity.SourceCustomer && valid:
		return TypeCustomerValidationPassed
	case source == entity.SourceCustomer:
		return TypeCustomerValidationFailed
	case valid:
		return TypePolicyEvaluationPassed
	default:
		return TypePolicyEvaluationFailed
	}
}
