package workflow

import (
	"context"
	"time"

	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/event"
	domainwf "github.com/garyjia/claims-service/internal/domain/workflow"
)

// ApplyFunc runs a domain transition on a freshly loaded claim
type ApplyFunc func(claim *entity.Claim, now time.Time) error

// LifecycleEngine persists claim transitions and announces them.
// Every transition reloads the claim from the store; nothing is cached.
type LifecycleEngine interface {
	// Create stores a new claim and its first history entry
	Create(ctx context.Context, claim *entity.Claim) error

	// Transition loads the claim, applies the change, saves it under the
	// optimistic lock and emits the lifecycle event. When only the emit
	// fails, the saved claim is returned together with the error.
	Transition(ctx context.Context, claimID string, trigger domainwf.Trigger, apply ApplyFunc) (*entity.Claim, error)

	// Emit announces the claim's current status
	Emit(ctx context.Context, claim *entity.Claim) error
}

// EventTypeFor returns the lifecycle event announcing a status
func EventTypeFor(state domainwf.State) (event.Type, bool) {
	switch state {
	case domainwf.StateSubmitted:
		return event.TypeClaimSubmitted, true
	case domainwf.StateInReview:
		return event.TypeClaimInReview, true
	case domainwf.StateApproved:
		return event.TypeClaimApproved, true
	case domainwf.StateRejected:
		return event.TypeClaimRejected, true
	case domainwf.StatePaidOut:
		return event.TypeClaimPaidOut, true
	default:
		return "", false
	}
}

// LifecycleEventTypes lists every lifecycle event type
func LifecycleEventTypes() []event.Type {
	return []event.Type{
		event.TypeClaimSubmitted,
		event.TypeClaimInReview,
		event.TypeClaimApproved,
		event.TypeClaimRejected,
		event.TypeClaimPaidOut,
	}
}
