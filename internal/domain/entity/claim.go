package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/garyjia/claims-service/internal/domain/workflow"
)

// Claim is an insurance claim moving through the review lifecycle
type Claim struct {
	ID             string          `json:"id"`
	PolicyRef      string          `json:"policy_ref"`
	CustomerRef    string          `json:"customer_ref"`
	Description    string          `json:"description"`
	ReportedAmount decimal.Decimal `json:"reported_amount"`
	Status         workflow.State  `json:"status"`
	Decision       *Decision       `json:"decision,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastUpdatedAt  time.Time       `json:"last_updated_at"`
	// Version is managed by the store and compared on every save
	Version int64 `json:"version"`
}

// Decision is set once a claim is approved or rejected
type Decision struct {
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	Reason         string          `json:"reason"`
}

// NewClaim creates a SUBMITTED claim with a fresh id
func NewClaim(policyRef, customerRef, description string, reportedAmount decimal.Decimal, now time.Time) (*Claim, error) {
	policyRef = strings.TrimSpace(policyRef)
	customerRef = strings.TrimSpace(customerRef)

	if policyRef == "" {
		return nil, fmt.Errorf("%w: policy reference is required", ErrInvalidArgument)
	}
	if customerRef == "" {
		return nil, fmt.Errorf("%w: customer reference is required", ErrInvalidArgument)
	}
	if reportedAmount.IsNeg() {
		return nil, fmt.Errorf("%w: reported amount must not be negative", ErrInvalidArgument)
	}

	now = now.UTC()
	return &Claim{
		ID:             uuid.NewString(),
		PolicyRef:      policyRef,
		CustomerRef:    customerRef,
		Description:    description,
		ReportedAmount: reportedAmount,
		Status:         workflow.StateSubmitted,
		CreatedAt:      now,
		LastUpdatedAt:  now,
	}, nil
}

// StartReview moves a SUBMITTED claim to IN_REVIEW
func (c *Claim) StartReview(now time.Time) error {
	return c.fire(workflow.TriggerStartReview, now)
}

// Approve moves an IN_REVIEW claim to APPROVED with the given amount.
// The state is checked before the amount.
func (c *Claim) Approve(amount *decimal.Decimal, reason string, now time.Time) error {
	if err := c.guard(workflow.TriggerApprove); err != nil {
		return err
	}
	if amount == nil {
		return fmt.Errorf("%w: approved amount is required", ErrInvalidArgument)
	}
	if amount.IsNeg() {
		return fmt.Errorf("%w: approved amount must not be negative", ErrInvalidArgument)
	}

	if err := c.fire(workflow.TriggerApprove, now); err != nil {
		return err
	}
	c.Decision = &Decision{ApprovedAmount: *amount, Reason: reason}
	return nil
}

// Reject moves an IN_REVIEW claim to REJECTED with a zero approved amount
func (c *Claim) Reject(reason string, now time.Time) error {
	if err := c.fire(workflow.TriggerReject, now); err != nil {
		return err
	}
	c.Decision = &Decision{ApprovedAmount: decimal.Zero, Reason: reason}
	return nil
}

// Payout moves an APPROVED claim to PAID_OUT
func (c *Claim) Payout(now time.Time) error {
	return c.fire(workflow.TriggerPayout, now)
}

// IsApproved reports whether the claim carries a positive approval decision
func (c *Claim) IsApproved() bool {
	return c.Status == workflow.StateApproved || c.Status == workflow.StatePaidOut
}

// AllowedActions lists the triggers the claim's status permits, in name order
func (c *Claim) AllowedActions() []workflow.Trigger {
	return workflow.NewClaimMachine(c.Status).PermittedTriggers()
}

// Clone returns a deep copy of the claim
func (c *Claim) Clone() *Claim {
	clone := *c
	if c.Decision != nil {
		d := *c.Decision
		clone.Decision = &d
	}
	return &clone
}

func (c *Claim) guard(trigger workflow.Trigger) error {
	if !workflow.NewClaimMachine(c.Status).CanFire(trigger) {
		return c.invalidState(trigger)
	}
	return nil
}

func (c *Claim) fire(trigger workflow.Trigger, now time.Time) error {
	machine := workflow.NewClaimMachine(c.Status)
	if err := machine.Fire(context.Background(), trigger); err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			return c.invalidState(trigger)
		}
		return err
	}

	c.Status = machine.State()
	c.touch(now)
	return nil
}

func (c *Claim) invalidState(trigger workflow.Trigger) error {
	return fmt.Errorf("%w: cannot %s claim %s in status %s", ErrInvalidState, strings.ToLower(trigger.String()), c.ID, c.Status)
}

// touch never moves LastUpdatedAt backwards
func (c *Claim) touch(now time.Time) {
	now = now.UTC()
	if now.Before(c.LastUpdatedAt) {
		now = c.LastUpdatedAt
	}
	c.LastUpdatedAt = now
}
