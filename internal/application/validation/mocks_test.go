package validation

import (
	"context"
	"sync"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

type mockPolicyLookup struct {
	policyByIDFunc func(ctx context.Context, policyRef string) (*entity.PolicySummary, error)
}

func (m *mockPolicyLookup) PolicyByID(ctx context.Context, policyRef string) (*entity.PolicySummary, error) {
	return m.policyByIDFunc(ctx, policyRef)
}

type mockCustomerLookup struct {
	isCustomerValidFunc func(ctx context.Context, customerRef string) (bool, error)
}

func (m *mockCustomerLookup) IsCustomerValid(ctx context.Context, customerRef string) (bool, error) {
	return m.isCustomerValidFunc(ctx, customerRef)
}

type mockClaimRepo struct {
	existsFunc func(ctx context.Context, id string) (bool, error)
}

func (m *mockClaimRepo) Get(ctx context.Context, id string) (*entity.Claim, error) {
	return nil, entity.ErrNotFound
}

func (m *mockClaimRepo) Save(ctx context.Context, claim *entity.Claim) error {
	return nil
}

func (m *mockClaimRepo) ListByCustomer(ctx context.Context, customerRef string) ([]*entity.Claim, error) {
	return nil, nil
}

func (m *mockClaimRepo) Exists(ctx context.Context, id string) (bool, error) {
	return m.existsFunc(ctx, id)
}

// fakeValidationRepo keeps outcomes in memory keyed by claim and source
type fakeValidationRepo struct {
	mu       sync.Mutex
	outcomes map[string]*entity.ValidationOutcome
	order    []string
	err      error
}

func newFakeValidationRepo() *fakeValidationRepo {
	return &fakeValidationRepo{outcomes: make(map[string]*entity.ValidationOutcome)}
}

func (f *fakeValidationRepo) RecordIfAbsent(ctx context.Context, outcome *entity.ValidationOutcome) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	key := outcome.ClaimID + "/" + string(outcome.Source)
	if _, ok := f.outcomes[key]; ok {
		return false, nil
	}
	stored := *outcome
	f.outcomes[key] = &stored
	f.order = append(f.order, key)
	return true, nil
}

func (f *fakeValidationRepo) ListByClaim(ctx context.Context, claimID string) ([]*entity.ValidationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.ValidationOutcome
	for _, key := range f.order {
		if o := f.outcomes[key]; o.ClaimID == claimID {
			out = append(out, o)
		}
	}
	return out, f.err
}

func (f *fakeValidationRepo) get(claimID string, source entity.Source) *entity.ValidationOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[claimID+"/"+string(source)]
}

type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}
