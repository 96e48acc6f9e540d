package port

import (
	"context"
	"errors"
)

var (
	// ErrPublishFailure is returned when an event could not be handed to the broker
	ErrPublishFailure = errors.New("event publish failed")

	// ErrMalformedPayload is returned when an inbound message cannot be decoded
	ErrMalformedPayload = errors.New("malformed event payload")
)

// EventPublisher hands encoded events to the message broker.
// key orders events for the same claim.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}
