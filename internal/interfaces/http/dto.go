package http

import (
	"encoding/json"
	"time"

	"github.com/govalues/decimal"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

// SubmitClaimRequest is the body of POST /claims
type SubmitClaimRequest struct {
	PolicyID       string      `json:"policyId" binding:"required"`
	CustomerID     string      `json:"customerId" binding:"required"`
	Description    string      `json:"description" binding:"required"`
	ReportedAmount json.Number `json:"reportedAmount" binding:"required"`
}

// ApproveClaimRequest is the body of POST /claims/:id/approve
type ApproveClaimRequest struct {
	ApprovedAmount *json.Number `json:"approvedAmount"`
	Reason         string       `json:"reason"`
}

// RejectClaimRequest is the body of POST /claims/:id/reject
type RejectClaimRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ClaimResponse is the JSON view of a claim
type ClaimResponse struct {
	ID             string       `json:"id"`
	PolicyID       string       `json:"policyId"`
	CustomerID     string       `json:"customerId"`
	Description    string       `json:"description"`
	ReportedAmount json.Number  `json:"reportedAmount"`
	Status         string       `json:"status"`
	Approved       bool         `json:"approved"`
	ApprovedAmount *json.Number `json:"approvedAmount"`
	DecisionReason *string      `json:"decisionReason"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastUpdatedAt  time.Time    `json:"lastUpdatedAt"`
	Version        int64        `json:"version"`
	AllowedActions []string     `json:"allowedActions"`
}

// OutcomeResponse is the JSON view of one validation outcome
type OutcomeResponse struct {
	Source     string    `json:"source"`
	Verdict    string    `json:"verdict"`
	Valid      bool      `json:"valid"`
	Detail     string    `json:"detail,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ValidationResponse is the JSON view of a claim's validation outcomes
type ValidationResponse struct {
	ClaimID  string           `json:"claimId"`
	State    string           `json:"state"`
	Complete bool             `json:"complete"`
	Policy   *OutcomeResponse `json:"policy"`
	Customer *OutcomeResponse `json:"customer"`
}

// HistoryResponse is one entry of a claim's transition log
type HistoryResponse struct {
	PreviousStatus string    `json:"previousStatus,omitempty"`
	NewStatus      string    `json:"newStatus"`
	Action         string    `json:"action"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// parseAmount converts a JSON number into a decimal amount
func parseAmount(field string, n json.Number) (decimal.Decimal, error) {
	d, err := decimal.Parse(n.String())
	if err != nil {
		return decimal.Decimal{}, badRequest("%s must be a decimal number", field)
	}
	return d, nil
}

func toClaimResponse(c *entity.Claim) ClaimResponse {
	resp := ClaimResponse{
		ID:             c.ID,
		PolicyID:       c.PolicyRef,
		CustomerID:     c.CustomerRef,
		Description:    c.Description,
		ReportedAmount: json.Number(c.ReportedAmount.String()),
		Status:         c.Status.String(),
		Approved:       c.IsApproved(),
		CreatedAt:      c.CreatedAt,
		LastUpdatedAt:  c.LastUpdatedAt,
		Version:        c.Version,
		AllowedActions: make([]string, 0, 2),
	}
	for _, trigger := range c.AllowedActions() {
		resp.AllowedActions = append(resp.AllowedActions, trigger.String())
	}
	if c.Decision != nil {
		amount := json.Number(c.Decision.ApprovedAmount.String())
		reason := c.Decision.Reason
		resp.ApprovedAmount = &amount
		resp.DecisionReason = &reason
	}
	return resp
}

func toOutcomeResponse(o *entity.ValidationOutcome) *OutcomeResponse {
	if o == nil {
		return nil
	}
	return &OutcomeResponse{
		Source:     string(o.Source),
		Verdict:    string(o.Verdict),
		Valid:      o.Valid,
		Detail:     o.Detail,
		ReceivedAt: o.ReceivedAt,
	}
}

func toValidationResponse(s *entity.ValidationSummary) ValidationResponse {
	return ValidationResponse{
		ClaimID:  s.ClaimID,
		State:    string(s.State),
		Complete: s.Complete,
		Policy:   toOutcomeResponse(s.Policy),
		Customer: toOutcomeResponse(s.Customer),
	}
}

func toHistoryResponse(entries []*entity.ClaimHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			PreviousStatus: h.PreviousStatus,
			NewStatus:      h.NewStatus,
			Action:         h.Action,
			Reason:         h.Reason,
			Timestamp:      h.Timestamp,
		})
	}
	return out
}
