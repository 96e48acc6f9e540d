// Package memory keeps claims, validation outcomes and history in process memory.
// It backs the "memory" database driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
)

type outcomeKey struct {
	claimID string
	source  entity.Source
}

// Store implements the claim, validation and history repositories plus
// the transaction manager over maps guarded by one lock.
type Store struct {
	mu       sync.RWMutex
	claims   map[string]*entity.Claim
	outcomes map[outcomeKey]*entity.ValidationOutcome
	order    []outcomeKey
	history  []*entity.ClaimHistory
	nextID   int64

	// txMu serialises transactions; there is no rollback.
	txMu sync.Mutex
}

type txMarker struct{}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		claims:   make(map[string]*entity.Claim),
		outcomes: make(map[outcomeKey]*entity.ValidationOutcome),
	}
}

// Claims returns the store as a claim repository
func (s *Store) Claims() port.ClaimRepository { return claimRepo{s} }

// Validations returns the store as a validation repository
func (s *Store) Validations() port.ValidationRepository { return validationRepo{s} }

// History returns the store as a history repository
func (s *Store) History() port.HistoryRepository { return historyRepo{s} }

// WithTransaction runs fn while holding the transaction lock.
// Nested calls reuse the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txMarker{}, true))
}

type claimRepo struct{ s *Store }

func (r claimRepo) Get(_ context.Context, id string) (*entity.Claim, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	claim, ok := r.s.claims[id]
	if !ok {
		return nil, fmt.Errorf("%w: claim %s", entity.ErrNotFound, id)
	}
	return claim.Clone(), nil
}

func (r claimRepo) Save(_ context.Context, claim *entity.Claim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.claims[claim.ID]
	switch {
	case claim.Version == 0 && ok:
		return fmt.Errorf("%w: claim %s already exists", entity.ErrConflict, claim.ID)
	case claim.Version != 0 && !ok:
		return fmt.Errorf("%w: claim %s", entity.ErrNotFound, claim.ID)
	case ok && stored.Version != claim.Version:
		return fmt.Errorf("%w: claim %s was modified concurrently", entity.ErrConflict, claim.ID)
	}

	claim.Version++
	r.s.claims[claim.ID] = claim.Clone()
	return nil
}

func (r claimRepo) ListByCustomer(_ context.Context, customerRef string) ([]*entity.Claim, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	claims := make([]*entity.Claim, 0)
	for _, c := range r.s.claims {
		if c.CustomerRef == customerRef {
			claims = append(claims, c.Clone())
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].ID < claims[j].ID
		}
		return claims[i].CreatedAt.Before(claims[j].CreatedAt)
	})
	return claims, nil
}

func (r claimRepo) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.claims[id]
	return ok, nil
}

type validationRepo struct{ s *Store }

func (r validationRepo) RecordIfAbsent(_ context.Context, outcome *entity.ValidationOutcome) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := outcomeKey{claimID: outcome.ClaimID, source: outcome.Source}
	if _, ok := r.s.outcomes[key]; ok {
		return false, nil
	}
	stored := *outcome
	r.s.outcomes[key] = &stored
	r.s.order = append(r.s.order, key)
	return true, nil
}

func (r validationRepo) ListByClaim(_ context.Context, claimID string) ([]*entity.ValidationOutcome, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var outcomes []*entity.ValidationOutcome
	for _, key := range r.s.order {
		if key.claimID == claimID {
			o := *r.s.outcomes[key]
			outcomes = append(outcomes, &o)
		}
	}
	return outcomes, nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(_ context.Context, history *entity.ClaimHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextID++
	history.ID = r.s.nextID
	record := *history
	r.s.history = append(r.s.history, &record)
	return nil
}

func (r historyRepo) ListByClaim(_ context.Context, claimID string) ([]*entity.ClaimHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var records []*entity.ClaimHistory
	for _, h := range r.s.history {
		if h.ClaimID == claimID {
			record := *h
			records = append(records, &record)
		}
	}
	return records, nil
}

var _ port.TransactionManager = (*Store)(nil)
