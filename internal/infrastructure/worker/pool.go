// Package worker runs the stream consumers that feed inbound validation
// results into the dispatcher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultStopTimeout bounds how long Stop waits for consumers that are
// parked in a blocking read.
const DefaultStopTimeout = 10 * time.Second

// Consumer is a broker read loop. Start must return once the loop is
// running; Stop blocks until it has exited.
type Consumer interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// State is where a consumer is in its lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateFailed  State = "failed"
	StateStopped State = "stopped"
)

// Status is a point-in-time view of one consumer.
type Status struct {
	Name  string
	State State
	Err   error
	Since time.Time
}

type member struct {
	consumer Consumer
	status   Status
}

// Pool owns the stream consumers of one process. Consumers that fail to
// start are reported through Statuses instead of stopping the rest.
type Pool struct {
	logger      *zap.Logger
	stopTimeout time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	members []*member
	running bool
	cancel  context.CancelFunc
}

// NewPool creates an empty pool. A non-positive stopTimeout uses
// DefaultStopTimeout.
func NewPool(stopTimeout time.Duration, logger *zap.Logger) *Pool {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Pool{
		logger:      logger,
		stopTimeout: stopTimeout,
		now:         time.Now,
	}
}

// Add registers a consumer. Consumers cannot join a running pool.
func (p *Pool) Add(c Consumer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("cannot add consumer %s to a running pool", c.Name())
	}
	for _, m := range p.members {
		if m.consumer.Name() == c.Name() {
			return fmt.Errorf("consumer %s already registered", c.Name())
		}
	}

	p.members = append(p.members, &member{
		consumer: c,
		status:   Status{Name: c.Name(), State: StateIdle, Since: p.now()},
	})
	p.logger.Info("Stream consumer registered",
		zap.String("consumer", c.Name()),
		zap.Int("total_consumers", len(p.members)))
	return nil
}

// Start launches every consumer under a shared context. The returned
// error names each consumer that could not start.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("consumer pool already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	var failed []string
	for _, m := range p.members {
		if err := m.consumer.Start(runCtx); err != nil {
			p.logger.Error("Failed to start stream consumer",
				zap.String("consumer", m.status.Name),
				zap.Error(err))
			m.status = Status{Name: m.status.Name, State: StateFailed, Err: err, Since: p.now()}
			failed = append(failed, m.status.Name)
			continue
		}
		m.status = Status{Name: m.status.Name, State: StateRunning, Since: p.now()}
	}

	p.logger.Info("Consumer pool started",
		zap.Int("running", len(p.members)-len(failed)),
		zap.Int("failed", len(failed)))

	if len(failed) > 0 {
		return fmt.Errorf("failed to start consumers: %s", strings.Join(failed, ", "))
	}
	return nil
}

// Stop cancels the shared context and stops the running consumers in
// parallel. It gives up after the stop timeout; consumers still draining
// at that point keep their running state.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancel
	var active []*member
	for _, m := range p.members {
		if m.status.State == StateRunning {
			active = append(active, m)
		}
	}
	p.mu.Unlock()

	cancel()

	errs := make([]error, len(active))
	var g errgroup.Group
	for i, m := range active {
		g.Go(func() error {
			errs[i] = m.consumer.Stop()
			p.settle(m, errs[i])
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.stopTimeout):
		return fmt.Errorf("consumers did not stop within %s", p.stopTimeout)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("stop consumers: %w", err)
	}
	p.logger.Info("Consumer pool stopped", zap.Int("count", len(active)))
	return nil
}

func (p *Pool) settle(m *member, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.logger.Error("Failed to stop stream consumer",
			zap.String("consumer", m.status.Name),
			zap.Error(err))
		m.status = Status{Name: m.status.Name, State: StateFailed, Err: err, Since: p.now()}
		return
	}
	m.status = Status{Name: m.status.Name, State: StateStopped, Since: p.now()}
}

// Len returns the number of registered consumers.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

// Statuses returns one entry per consumer in registration order.
func (p *Pool) Statuses() []Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Status, len(p.members))
	for i, m := range p.members {
		out[i] = m.status
	}
	return out
}

// Health summarizes the pool for the readiness report. An empty pool is
// healthy: sync validation never reads the result streams.
func (p *Pool) Health() (bool, string) {
	statuses := p.Statuses()
	if len(statuses) == 0 {
		return true, "no consumers"
	}

	var problems []string
	running := 0
	for _, s := range statuses {
		switch s.State {
		case StateRunning:
			running++
		case StateFailed:
			problems = append(problems, fmt.Sprintf("%s failed: %v", s.Name, s.Err))
		default:
			problems = append(problems, fmt.Sprintf("%s %s", s.Name, s.State))
		}
	}
	if len(problems) > 0 {
		return false, strings.Join(problems, "; ")
	}
	return true, fmt.Sprintf("%d/%d consumers running", running, len(statuses))
}
