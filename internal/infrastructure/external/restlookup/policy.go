package restlookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
)

// policyResponse is the policy service's JSON view of a policy
type policyResponse struct {
	ID           string `json:"id"`
	PolicyNumber string `json:"policyNumber"`
	ProductCode  string `json:"productCode"`
	Status       string `json:"status"`
	ValidFrom    string `json:"validFrom"`
	ValidTo      string `json:"validTo"`
}

// PolicyClient calls GET {base}/policies/{id}
type PolicyClient struct {
	*client
}

// NewPolicyClient creates a policy lookup. httpClient may be nil.
func NewPolicyClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*PolicyClient, error) {
	c, err := newClient(cfg, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("policy client: %w", err)
	}
	return &PolicyClient{client: c}, nil
}

// PolicyByID fetches a policy summary
func (c *PolicyClient) PolicyByID(ctx context.Context, policyRef string) (*entity.PolicySummary, error) {
	var resp policyResponse
	if err := c.getJSON(ctx, "/policies/"+url.PathEscape(policyRef), &resp); err != nil {
		return nil, err
	}

	validFrom, err := entity.ParsePolicyDate(resp.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid validFrom %q", port.ErrLookupUnavailable, resp.ValidFrom)
	}
	validTo, err := entity.ParsePolicyDate(resp.ValidTo)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid validTo %q", port.ErrLookupUnavailable, resp.ValidTo)
	}

	c.logger.Info("Policy service returned policy",
		zap.String("policy_ref", policyRef),
		zap.String("policy_number", resp.PolicyNumber))

	return &entity.PolicySummary{
		ID:           resp.ID,
		PolicyNumber: resp.PolicyNumber,
		ProductCode:  resp.ProductCode,
		Status:       resp.Status,
		ValidFrom:    validFrom,
		ValidTo:      validTo,
	}, nil
}

var _ port.PolicyLookup = (*PolicyClient)(nil)
