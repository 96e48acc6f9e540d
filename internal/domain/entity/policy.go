package entity

import (
	"strings"
	"time"
)

// PolicyStatusActive is the only status under which a policy covers claims
const PolicyStatusActive = "ACTIVE"

// PolicySummary is what the policy service reports about one policy.
// ValidFrom and ValidTo are calendar dates; nil means unbounded.
type PolicySummary struct {
	ID           string     `json:"id"`
	PolicyNumber string     `json:"policy_number"`
	ProductCode  string     `json:"product_code"`
	Status       string     `json:"status"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
}

// CoversAt reports whether the policy is active and t falls within its validity dates
func (p *PolicySummary) CoversAt(t time.Time) bool {
	if p == nil || !strings.EqualFold(p.Status, PolicyStatusActive) {
		return false
	}
	day := t.UTC().Truncate(24 * time.Hour)
	if p.ValidFrom != nil && day.Before(p.ValidFrom.UTC().Truncate(24*time.Hour)) {
		return false
	}
	if p.ValidTo != nil && day.After(p.ValidTo.UTC().Truncate(24*time.Hour)) {
		return false
	}
	return true
}

// ParsePolicyDate parses an ISO calendar date, returning nil for blank input
func ParsePolicyDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
