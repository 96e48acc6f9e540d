package messaging

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/dispatcher"
	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/event"
)

// ClaimEventPublisher is a dispatcher handler that sends lifecycle events to
// the broker, keyed by claim id.
type ClaimEventPublisher struct {
	publisher port.EventPublisher
	topic     string
	logger    *zap.Logger
}

// NewClaimEventPublisher creates the lifecycle event handler
func NewClaimEventPublisher(publisher port.EventPublisher, topic string, logger *zap.Logger) *ClaimEventPublisher {
	if topic == "" {
		topic = TopicClaimEvents
	}
	return &ClaimEventPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// Register subscribes the publisher to the given lifecycle event types
func (p *ClaimEventPublisher) Register(d dispatcher.Dispatcher, types []event.Type) {
	d.SubscribeAll(types, "claim-event-publisher", p.Handle)
}

// Handle encodes and publishes one lifecycle event
func (p *ClaimEventPublisher) Handle(ctx context.Context, evt *event.Event) error {
	payload, err := EncodeClaimEvent(evt)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", port.ErrPublishFailure, evt.Type, err)
	}

	if err := p.publisher.Publish(ctx, p.topic, evt.ClaimID, payload); err != nil {
		p.logger.Error("Failed to publish claim event",
			zap.String("topic", p.topic),
			zap.String("claim_id", evt.ClaimID),
			zap.String("event_type", evt.Type.String()),
			zap.Error(err))
		if errors.Is(err, port.ErrPublishFailure) {
			return err
		}
		return fmt.Errorf("%w: %v", port.ErrPublishFailure, err)
	}

	p.logger.Info("Published claim event",
		zap.String("topic", p.topic),
		zap.String("claim_id", evt.ClaimID),
		zap.String("event_type", evt.Type.String()),
		zap.String("event_id", evt.ID))
	return nil
}

// LogPublisher stands in for a broker when messaging is disabled. It only logs.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that drops payloads after logging them
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event and reports success
func (p *LogPublisher) Publish(_ context.Context, topic, key string, payload []byte) error {
	p.logger.Debug("Event not sent, messaging disabled",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int("bytes", len(payload)))
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error {
	return nil
}

var _ port.EventPublisher = (*LogPublisher)(nil)
