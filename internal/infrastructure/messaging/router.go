package messaging

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/dispatcher"
	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/application/validation"
)

// Router decodes inbound validation results and hands them to the dispatcher.
// Malformed messages stop here; everything else is the handlers' business.
type Router struct {
	dispatcher dispatcher.Dispatcher
	metrics    *validation.Metrics
	labels     map[string]string
	logger     *zap.Logger
}

// NewRouter creates a router. labels maps topic names to the source label
// malformed messages are counted under.
func NewRouter(d dispatcher.Dispatcher, metrics *validation.Metrics, labels map[string]string, logger *zap.Logger) *Router {
	if labels == nil {
		labels = map[string]string{
			TopicCustomerResults: "customer",
			TopicPolicyResults:   "policy",
		}
	}
	if metrics == nil {
		metrics = validation.NopMetrics()
	}
	return &Router{
		dispatcher: d,
		metrics:    metrics,
		labels:     labels,
		logger:     logger,
	}
}

// Route processes one message. The returned error is nil or wraps
// port.ErrMalformedPayload when the message can be acknowledged; any other
// error means it should be delivered again.
func (r *Router) Route(ctx context.Context, topic string, data []byte) error {
	evt, err := DecodeValidationResult(data)
	if err != nil {
		r.metrics.RecordOutcome(ctx, r.label(topic), validation.OutcomeMalformed)
		r.logger.Warn("Dropping malformed validation result",
			zap.String("topic", topic),
			zap.Int("bytes", len(data)),
			zap.Error(err))
		return err
	}

	if err := r.dispatcher.Dispatch(ctx, evt); err != nil {
		if errors.Is(err, port.ErrMalformedPayload) {
			r.metrics.RecordOutcome(ctx, r.label(topic), validation.OutcomeMalformed)
		}
		r.logger.Error("Failed to handle validation result",
			zap.String("topic", topic),
			zap.String("claim_id", evt.ClaimID),
			zap.String("event_type", evt.Type.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// Acknowledge reports whether a message routed with err can be acknowledged
func Acknowledge(err error) bool {
	return err == nil || errors.Is(err, port.ErrMalformedPayload)
}

func (r *Router) label(topic string) string {
	if l, ok := r.labels[topic]; ok {
		return l
	}
	return strings.ToLower(topic)
}
