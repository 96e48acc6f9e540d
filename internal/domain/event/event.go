package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

// Payload keys carried by validation result events
const (
	KeySource = "source"
	KeyValid  = "valid"
	KeyDetail = "detail"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ClaimID       string                 `json:"claim_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`

	// Claim is the post-transition snapshot for lifecycle events
	Claim *entity.Claim `json:"-"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, claimID string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		ClaimID:       claimID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, claimID string, payload map[string]interface{}, correlationID string) *Event {
	evt := NewEvent(eventType, claimID, payload)
	if correlationID != "" {
		evt.CorrelationID = correlationID
	}
	return evt
}

// NewClaimEvent creates a lifecycle event carrying a copy of the claim
func NewClaimEvent(eventType Type, claim *entity.Claim) *Event {
	evt := NewEvent(eventType, claim.ID, map[string]interface{}{
		"status": claim.Status.String(),
	})
	evt.Claim = claim.Clone()
	return evt
}

// NewValidationResultEvent creates an inbound validation result event.
// claimID may be empty; such events are dropped by the recorder.
func NewValidationResultEvent(claimID string, source entity.Source, valid bool, detail string) *Event {
	return NewEvent(ValidationResultType(source, valid), claimID, map[string]interface{}{
		KeySource: string(source),
		KeyValid:  valid,
		KeyDetail: detail,
	})
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// ValidationOutcome converts a validation result event into an outcome.
// The event type decides the source and answer when the payload omits them.
func (e *Event) ValidationOutcome(receivedAt time.Time) (*entity.ValidationOutcome, bool) {
	source, ok := e.Type.ValidationSource()
	if !ok {
		return nil, false
	}
	valid := e.Type.Passed()
	if _, present := e.Payload[KeyValid]; present {
		valid = e.GetPayloadBool(KeyValid)
	}
	return entity.NewValidationOutcome(e.ClaimID, source, valid, e.GetPayloadString(KeyDetail), receivedAt), true
}
