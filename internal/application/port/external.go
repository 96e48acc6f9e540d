package port

import (
	"context"
	"errors"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

var (
	// ErrLookupNotFound is returned when the remote service does not know the reference
	ErrLookupNotFound = errors.New("lookup: not found")

	// ErrLookupUnavailable is returned on transport errors, timeouts and unexpected responses
	ErrLookupUnavailable = errors.New("lookup: service unavailable")
)

// PolicyLookup fetches policy data from the policy service
type PolicyLookup interface {
	PolicyByID(ctx context.Context, policyRef string) (*entity.PolicySummary, error)
}

// CustomerLookup asks the customer service whether a customer's data is usable
type CustomerLookup interface {
	IsCustomerValid(ctx context.Context, customerRef string) (bool, error)
}
