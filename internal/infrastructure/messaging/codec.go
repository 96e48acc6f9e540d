// Package messaging encodes claim lifecycle events for the broker and turns
// inbound validation results back into domain events.
package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/event"
)

// Default stream names
const (
	TopicClaimEvents     = "claims.claim-events"
	TopicCustomerResults = "customers.customer-validation-events"
	TopicPolicyResults   = "policies.policy-evaluation-events"
	DefaultConsumerGroup = "claims-service"
)

// ClaimEventMessage is the wire form of a claim lifecycle event
type ClaimEventMessage struct {
	EventID        string    `json:"eventId"`
	EventType      string    `json:"eventType"`
	OccurredAt     time.Time `json:"occurredAt"`
	ClaimID        string    `json:"claimId"`
	PolicyID       string    `json:"policyId"`
	CustomerID     string    `json:"customerId"`
	Description    string    `json:"description"`
	ReportedAmount string    `json:"reportedAmount"`
	Status         string    `json:"status"`
	Approved       bool      `json:"approved"`
	ApprovedAmount *string   `json:"approvedAmount"`
	DecisionReason *string   `json:"decisionReason"`
	CreatedAt      time.Time `json:"createdAt"`
	LastUpdatedAt  time.Time `json:"lastUpdatedAt"`
	CorrelationID  string    `json:"correlationId,omitempty"`
}

// EncodeClaimEvent renders a lifecycle event and its claim snapshot as JSON
func EncodeClaimEvent(evt *event.Event) ([]byte, error) {
	if evt == nil || evt.Claim == nil {
		return nil, fmt.Errorf("lifecycle event without claim snapshot")
	}
	if !evt.Type.IsClaimLifecycle() {
		return nil, fmt.Errorf("event type %s is not a claim lifecycle event", evt.Type)
	}

	claim := evt.Claim
	msg := ClaimEventMessage{
		EventID:        evt.ID,
		EventType:      evt.Type.String(),
		OccurredAt:     evt.Timestamp.UTC(),
		ClaimID:        claim.ID,
		PolicyID:       claim.PolicyRef,
		CustomerID:     claim.CustomerRef,
		Description:    claim.Description,
		ReportedAmount: claim.ReportedAmount.String(),
		Status:         claim.Status.String(),
		Approved:       claim.IsApproved(),
		CreatedAt:      claim.CreatedAt.UTC(),
		LastUpdatedAt:  claim.LastUpdatedAt.UTC(),
		CorrelationID:  evt.CorrelationID,
	}
	if claim.Decision != nil {
		amount := claim.Decision.ApprovedAmount.String()
		reason := claim.Decision.Reason
		msg.ApprovedAmount = &amount
		msg.DecisionReason = &reason
	}
	return json.Marshal(msg)
}

// ValidationResultMessage is the wire form of a result published by the
// customer or policy service. Valid may be carried under the generic key or
// the producer-specific one.
type ValidationResultMessage struct {
	EventID           string `json:"eventId"`
	EventType         string `json:"eventType"`
	ClaimID           string `json:"claimId"`
	Source            string `json:"source"`
	Valid             *bool  `json:"valid"`
	CustomerDataValid *bool  `json:"customerDataValid"`
	CoverageValid     *bool  `json:"coverageValid"`
	Reason            string `json:"reason"`
	CorrelationID     string `json:"correlationId"`
}

// DecodeValidationResult parses an inbound result into a validation result event.
// A missing claim id is not an error here; the recorder counts and drops it.
func DecodeValidationResult(data []byte) (*event.Event, error) {
	var msg ValidationResultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrMalformedPayload, err)
	}

	eventType := event.Type(strings.ToUpper(strings.TrimSpace(msg.EventType)))
	source, ok := eventType.ValidationSource()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported event type %q", port.ErrMalformedPayload, msg.EventType)
	}
	if msg.Source != "" && !strings.EqualFold(msg.Source, string(source)) {
		return nil, fmt.Errorf("%w: source %q does not match event type %s", port.ErrMalformedPayload, msg.Source, eventType)
	}

	valid := eventType.Passed()
	switch {
	case msg.Valid != nil:
		valid = *msg.Valid
	case source == entity.SourceCustomer && msg.CustomerDataValid != nil:
		valid = *msg.CustomerDataValid
	case source == entity.SourcePolicy && msg.CoverageValid != nil:
		valid = *msg.CoverageValid
	}

	evt := event.NewEventWithCorrelation(eventType, strings.TrimSpace(msg.ClaimID), map[string]interface{}{
		event.KeySource: string(source),
		event.KeyValid:  valid,
		event.KeyDetail: msg.Reason,
	}, msg.CorrelationID)
	if msg.EventID != "" {
		evt.ID = msg.EventID
	}
	return evt, nil
}

// EncodeValidationResult renders a validation result event, as the
// customer and policy services publish it.
func EncodeValidationResult(evt *event.Event) ([]byte, error) {
	source, ok := evt.Type.ValidationSource()
	if !ok {
		return nil, fmt.Errorf("event type %s is not a validation result", evt.Type)
	}
	valid := evt.GetPayloadBool(event.KeyValid)
	msg := ValidationResultMessage{
		EventID:       evt.ID,
		EventType:     evt.Type.String(),
		ClaimID:       evt.ClaimID,
		Source:        string(source),
		Valid:         &valid,
		Reason:        evt.GetPayloadString(event.KeyDetail),
		CorrelationID: evt.CorrelationID,
	}
	return json.Marshal(msg)
}
