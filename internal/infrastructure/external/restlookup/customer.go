package restlookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
)

// CustomerClient calls GET {base}/customers/{id}/valid, which answers with a JSON boolean
type CustomerClient struct {
	*client
}

// NewCustomerClient creates a customer lookup. httpClient may be nil.
func NewCustomerClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*CustomerClient, error) {
	c, err := newClient(cfg, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("customer client: %w", err)
	}
	return &CustomerClient{client: c}, nil
}

// IsCustomerValid asks whether the customer's data is usable for claims
func (c *CustomerClient) IsCustomerValid(ctx context.Context, customerRef string) (bool, error) {
	var valid *bool
	if err := c.getJSON(ctx, "/customers/"+url.PathEscape(customerRef)+"/valid", &valid); err != nil {
		return false, err
	}
	if valid == nil {
		return false, fmt.Errorf("%w: empty customer validation response", port.ErrLookupUnavailable)
	}

	c.logger.Info("Customer validation result",
		zap.String("customer_ref", customerRef),
		zap.Bool("valid", *valid))
	return *valid, nil
}

var _ port.CustomerLookup = (*CustomerClient)(nil)
