package entity

import (
	"fmt"
	"time"
)

// Source identifies which external service produced a validation outcome
type Source string

const (
	SourcePolicy   Source = "POLICY"
	SourceCustomer Source = "CUSTOMER"
)

// IsValid returns true if the source is known
func (s Source) IsValid() bool {
	return s == SourcePolicy || s == SourceCustomer
}

// ParseSource converts a stored source string into a Source
func ParseSource(value string) (Source, error) {
	s := Source(value)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown validation source %q", ErrInvalidArgument, value)
	}
	return s, nil
}

// Verdict is the tri-state result of one validation
type Verdict string

const (
	VerdictValid   Verdict = "VALID"
	VerdictInvalid Verdict = "INVALID"
	// VerdictUnknown means the lookup failed or timed out
	VerdictUnknown Verdict = "UNKNOWN"
)

// VerdictOf maps a boolean answer to a verdict
func VerdictOf(valid bool) Verdict {
	if valid {
		return VerdictValid
	}
	return VerdictInvalid
}

// ValidationOutcome is one recorded answer from the policy or customer service.
// Outcomes are advisory and never change a claim's status.
type ValidationOutcome struct {
	ClaimID    string    `json:"claim_id"`
	Source     Source    `json:"source"`
	Valid      bool      `json:"valid"`
	Verdict    Verdict   `json:"verdict"`
	Detail     string    `json:"detail,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewValidationOutcome builds an outcome from a VALID/INVALID answer
func NewValidationOutcome(claimID string, source Source, valid bool, detail string, receivedAt time.Time) *ValidationOutcome {
	return &ValidationOutcome{
		ClaimID:    claimID,
		Source:     source,
		Valid:      valid,
		Verdict:    VerdictOf(valid),
		Detail:     detail,
		ReceivedAt: receivedAt.UTC(),
	}
}

// UnknownOutcome builds an outcome for a lookup that produced no answer
func UnknownOutcome(claimID string, source Source, detail string, receivedAt time.Time) *ValidationOutcome {
	return &ValidationOutcome{
		ClaimID:    claimID,
		Source:     source,
		Verdict:    VerdictUnknown,
		Detail:     detail,
		ReceivedAt: receivedAt.UTC(),
	}
}

// ValidationState is the per-claim validation sub-state
type ValidationState string

const (
	ValidationPending  ValidationState = "PENDING_VALIDATION"
	ValidationRecorded ValidationState = "VALIDATION_RECORDED"
)

// ValidationSummary collects the recorded outcomes of one claim
type ValidationSummary struct {
	ClaimID  string             `json:"claim_id"`
	State    ValidationState    `json:"state"`
	Policy   *ValidationOutcome `json:"policy,omitempty"`
	Customer *ValidationOutcome `json:"customer,omitempty"`
	Complete bool               `json:"complete"`
}

// Summarize folds outcomes of one claim into a summary.
// The first outcome seen for a source wins.
func Summarize(claimID string, outcomes []*ValidationOutcome) *ValidationSummary {
	summary := &ValidationSummary{ClaimID: claimID, State: ValidationPending}
	for _, o := range outcomes {
		if o == nil || o.ClaimID != claimID {
			continue
		}
		switch o.Source {
		case SourcePolicy:
			if summary.Policy == nil {
				summary.Policy = o
			}
		case SourceCustomer:
			if summary.Customer == nil {
				summary.Customer = o
			}
		}
	}
	if summary.Policy != nil || summary.Customer != nil {
		summary.State = ValidationRecorded
	}
	summary.Complete = summary.Policy != nil && summary.Customer != nil
	return summary
}
