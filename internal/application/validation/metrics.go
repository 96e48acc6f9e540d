package validation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Outcome labels for recorded validation results
const (
	OutcomeSuccess       = "success"
	OutcomeDuplicate     = "duplicate"
	OutcomeNoClaimID     = "no_claim_id"
	OutcomeClaimNotFound = "claim_not_found"
	OutcomeMalformed     = "malformed"
	OutcomeError         = "error"
)

// Result labels for synchronous lookups
const (
	LookupFound             = "found"
	LookupNotFound          = "not_found"
	LookupValid             = "valid"
	LookupInvalidOrNotFound = "invalid_or_not_found"
	LookupUnavailable       = "unavailable"
)

// Instrument names
const (
	MetricOutcomes = "claims.validation.outcomes"
	MetricLookups  = "claims.validation.lookups"
)

// Metrics counts validation results by source
type Metrics struct {
	outcomes metric.Int64Counter
	lookups  metric.Int64Counter
}

// NewMetrics creates the validation instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	outcomes, err := meter.Int64Counter(MetricOutcomes,
		metric.WithDescription("Asynchronous validation results by source and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricOutcomes, err)
	}

	lookups, err := meter.Int64Counter(MetricLookups,
		metric.WithDescription("Synchronous lookups by source and result"))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricLookups, err)
	}

	return &Metrics{outcomes: outcomes, lookups: lookups}, nil
}

// NopMetrics returns instruments that record nothing
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(""))
	return m
}

// RecordOutcome counts one result delivered by source
func (m *Metrics) RecordOutcome(ctx context.Context, source, outcome string) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

// RecordLookup counts one synchronous lookup against source
func (m *Metrics) RecordLookup(ctx context.Context, source, result string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("result", result),
	))
}
