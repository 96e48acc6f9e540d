package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/claims-service/internal/application/dispatcher"
	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/event"
	domainwf "github.com/garyjia/claims-service/internal/domain/workflow"
)

// engineImpl is the concrete implementation of LifecycleEngine
type engineImpl struct {
	claimRepo   port.ClaimRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	now         func() time.Time
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher lifecycle events are sent through
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(
	claimRepo port.ClaimRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) LifecycleEngine {
	e := &engineImpl{
		claimRepo:   claimRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create stores a new claim and its first history entry
func (e *engineImpl) Create(ctx context.Context, claim *entity.Claim) error {
	return e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.claimRepo.Save(txCtx, claim); err != nil {
			return fmt.Errorf("save claim: %w", err)
		}

		history := &entity.ClaimHistory{
			ClaimID:   claim.ID,
			NewStatus: claim.Status.String(),
			Action:    "SUBMIT",
			Timestamp: claim.CreatedAt,
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history record: %w", err)
		}

		return nil
	})
}

// Transition loads, applies, saves and announces one transition
func (e *engineImpl) Transition(ctx context.Context, claimID string, trigger domainwf.Trigger, apply ApplyFunc) (*entity.Claim, error) {
	var claim *entity.Claim

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.claimRepo.Get(txCtx, claimID)
		if err != nil {
			return err
		}

		previous := current.Status
		if err := apply(current, e.now()); err != nil {
			return err
		}

		if err := e.claimRepo.Save(txCtx, current); err != nil {
			return err
		}

		history := &entity.ClaimHistory{
			ClaimID:        current.ID,
			PreviousStatus: previous.String(),
			NewStatus:      current.Status.String(),
			Action:         trigger.String(),
			Timestamp:      current.LastUpdatedAt,
		}
		if current.Decision != nil && (trigger == domainwf.TriggerApprove || trigger == domainwf.TriggerReject) {
			history.Reason = current.Decision.Reason
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history record: %w", err)
		}

		claim = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.Emit(ctx, claim); err != nil {
		return claim, err
	}

	return claim, nil
}

// Emit announces the claim's current status through the dispatcher
func (e *engineImpl) Emit(ctx context.Context, claim *entity.Claim) error {
	if e.dispatcher == nil {
		return nil
	}

	eventType, ok := EventTypeFor(claim.Status)
	if !ok {
		return fmt.Errorf("no lifecycle event for status %s", claim.Status)
	}

	if err := e.dispatcher.Dispatch(ctx, event.NewClaimEvent(eventType, claim)); err != nil {
		if errors.Is(err, port.ErrPublishFailure) {
			return err
		}
		return fmt.Errorf("%w: %v", port.ErrPublishFailure, err)
	}

	return nil
}
