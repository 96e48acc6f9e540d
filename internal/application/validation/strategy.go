// Package validation orchestrates the policy and customer checks of a claim.
// A Strategy is chosen once at startup: the synchronous strategy calls both
// services while the claim is submitted, the asynchronous strategy relies on
// the claim-submitted event and the results arriving later through the
// OutcomeRecorder. Outcomes are advisory and never change a claim's status.
package validation

import (
	"context"
	"fmt"

	"github.com/garyjia/claims-service/internal/domain/entity"
)

// Mode selects the validation strategy
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// ParseMode converts a configuration value into a Mode
func ParseMode(value string) (Mode, error) {
	switch m := Mode(value); m {
	case ModeSync, ModeAsync:
		return m, nil
	default:
		return "", fmt.Errorf("unknown validation mode %q", value)
	}
}

// Strategy validates a newly built claim
type Strategy interface {
	// Mode reports which strategy this is
	Mode() Mode

	// Validate runs before the claim is stored. It never fails the
	// submission; lookups that produce no answer become UNKNOWN outcomes.
	// The asynchronous strategy returns no outcomes.
	Validate(ctx context.Context, claim *entity.Claim) []*entity.ValidationOutcome
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
