package container

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/dispatcher"
	"github.com/garyjia/claims-service/internal/application/validation"
	"github.com/garyjia/claims-service/internal/application/workflow"
	"github.com/garyjia/claims-service/internal/infrastructure/worker"
	"github.com/garyjia/claims-service/internal/observability"
)

const instrumentationName = "github.com/garyjia/claims-service"

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Observability
	tracing  *observability.Tracing
	metering *observability.Metering

	// Infrastructure
	store     *StoreBundle
	lookups   *LookupBundle
	messaging *MessagingBundle

	// Application
	metrics    *validation.Metrics
	strategy   validation.Strategy
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.Pool

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option customizes a container before Start
type Option func(*Container)

// WithMeterProvider records metrics through mp instead of the configured
// exporter. The caller owns mp's shutdown.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Container) {
		c.metering = observability.WrapMeterProvider(mp)
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Tracing and metrics
// 2. Store and repositories
// 3. Remote lookups (sync mode only)
// 4. Broker client and publisher
// 5. Validation strategy
// 6. Event dispatcher and application services
// 7. Workers
// A failed step releases whatever was already initialized.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		init func() error
	}{
		{"telemetry", c.initTelemetry},
		{"store", c.initStore},
		{"lookups", c.initLookups},
		{"messaging", c.initMessaging},
		{"validation strategy", c.initStrategy},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}

	for _, step := range steps {
		if err := step.init(); err != nil {
			c.logger.Error("Container initialization failed", zap.String("step", step.name), zap.Error(err))
			_ = c.teardown()
			c.closed.Store(true)
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully",
		zap.String("validation_mode", string(c.strategy.Mode())),
		zap.String("database", c.config.Database.Driver),
		zap.String("messaging", c.config.Messaging.Driver))

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases initialized components in reverse order of Start
func (c *Container) teardown() error {
	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers
	if c.workers != nil {
		if err := c.workers.Stop(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 2: Close dispatcher
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close publisher and broker client
	if c.messaging != nil {
		if err := c.messaging.Publisher.Close(); err != nil {
			c.logger.Error("Failed to close publisher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
		if c.messaging.Redis != nil {
			if err := c.messaging.Redis.Close(); err != nil {
				c.logger.Error("Failed to close redis client", zap.Error(err))
				errs = append(errs, fmt.Errorf("close redis: %w", err))
			}
		}
		c.logger.Info("Messaging closed")
	}

	// Step 4: Close lookup connections
	if c.lookups != nil {
		if err := c.lookups.Close(); err != nil {
			c.logger.Error("Failed to close lookups", zap.Error(err))
			errs = append(errs, fmt.Errorf("close lookups: %w", err))
		} else {
			c.logger.Info("Lookups closed")
		}
	}

	// Step 5: Close database
	if c.store != nil && c.store.Close != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	// Step 6: Flush spans and measurements
	if c.tracing != nil {
		if err := c.tracing.Shutdown(context.Background()); err != nil {
			c.logger.Error("Failed to shut down tracing", zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	if c.metering != nil {
		if err := c.metering.Shutdown(context.Background()); err != nil {
			c.logger.Error("Failed to shut down metrics", zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
		}
	}

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, health ComponentHealth) {
		status.Components[name] = health
		if !health.Healthy {
			status.Overall = false
		}
	}

	// Check database
	switch {
	case c.store == nil:
		set("database", ComponentHealth{Healthy: false, Message: "not initialized"})
	case c.store.Ping == nil:
		set("database", ComponentHealth{Healthy: true, Message: c.config.Database.Driver})
	default:
		if err := c.store.Ping(ctx); err != nil {
			set("database", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true, Message: c.config.Database.Driver})
		}
	}

	// Check broker
	if c.messaging != nil && c.messaging.Redis != nil {
		if err := c.messaging.Redis.Ping(ctx).Err(); err != nil {
			set("messaging", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("messaging", ComponentHealth{Healthy: true, Message: MessagingRedis})
		}
	}

	// Check workers
	if c.workers != nil {
		healthy, message := c.workers.Health()
		set("workers", ComponentHealth{Healthy: healthy, Message: message})
	} else {
		set("workers", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	// Check event routing
	if c.dispatcher != nil {
		set("events", c.eventRoutingHealth())
	}

	// Check services
	if c.services != nil {
		set("services", ComponentHealth{Healthy: true, Message: "validation mode: " + string(c.strategy.Mode())})
	} else {
		set("services", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	return status
}

// eventRoutingHealth reports event types that would be dispatched to no handler
func (c *Container) eventRoutingHealth() ComponentHealth {
	required := workflow.LifecycleEventTypes()
	if c.strategy != nil && c.strategy.Mode() == validation.ModeAsync {
		required = append(required, ValidationResultTypes()...)
	}

	var missing []string
	for _, t := range required {
		if len(c.dispatcher.ListHandlers(t)) == 0 {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return ComponentHealth{Healthy: false, Message: "no handler for " + strings.Join(missing, ", ")}
	}
	return ComponentHealth{Healthy: true, Message: fmt.Sprintf("%d event types routed", len(required))}
}

func (c *Container) initTelemetry() error {
	cfg := c.config.Tracing
	tracing, err := observability.New(c.ctx, observability.Config{
		Enabled:     cfg.Enabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
		SampleRatio: cfg.SampleRatio,
	}, c.logger)
	if err != nil {
		return err
	}
	c.tracing = tracing

	if c.metering == nil {
		metering, err := observability.NewMetering(c.ctx, observability.MetricsConfig{
			Enabled:     c.config.Metrics.Enabled,
			ServiceName: cfg.ServiceName,
			Endpoint:    c.config.Metrics.Endpoint,
			Insecure:    c.config.Metrics.Insecure,
			Interval:    c.config.Metrics.Interval,
		}, c.logger)
		if err != nil {
			return err
		}
		c.metering = metering
	}

	metrics, err := validation.NewMetrics(c.Meter())
	if err != nil {
		return err
	}
	c.metrics = metrics
	return nil
}

func (c *Container) initStore() error {
	store, err := ProvideStore(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.store = store
	return nil
}

// initLookups creates the remote clients; async mode never calls them
func (c *Container) initLookups() error {
	if c.config.Validation.Mode == string(validation.ModeAsync) {
		return nil
	}
	lookups, err := ProvideLookups(c.config, c.telemetry(), c.logger)
	if err != nil {
		return err
	}
	c.lookups = lookups
	return nil
}

func (c *Container) initMessaging() error {
	bundle, err := ProvideMessaging(c.ctx, &c.config.Messaging, c.logger)
	if err != nil {
		return err
	}
	c.messaging = bundle
	return nil
}

func (c *Container) initStrategy() error {
	strategy, err := ProvideStrategy(&c.config.Validation, c.lookups, c.metrics, c.Tracer(), c.logger)
	if err != nil {
		return err
	}
	c.strategy = strategy
	return nil
}

// initServices creates the dispatcher and the services subscribed to it
func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	services, err := ProvideServices(&ServiceDeps{
		Store:      c.store,
		Strategy:   c.strategy,
		Metrics:    c.metrics,
		Dispatcher: c.dispatcher,
		Publisher:  c.messaging.Publisher,
		Topic:      c.config.Messaging.ClaimEventsStream,
		Tracer:     c.Tracer(),
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Mode:       validation.Mode(c.config.Validation.Mode),
		Messaging:  &c.config.Messaging,
		Redis:      c.messaging.Redis,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.Start(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

func (c *Container) telemetry() Telemetry {
	return Telemetry{
		Provider:   c.tracing.Provider(),
		Propagator: c.tracing.Propagator(),
	}
}

// Getters for accessing container components

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Metering returns the meter provider owner.
func (c *Container) Metering() *observability.Metering {
	return c.metering
}

// Meter returns the service meter, a no-op one before Start.
func (c *Container) Meter() metric.Meter {
	if c.metering == nil {
		return metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	return c.metering.Meter(instrumentationName)
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Pool {
	return c.workers
}

// Tracing returns the tracer provider owner.
func (c *Container) Tracing() *observability.Tracing {
	return c.tracing
}

// Tracer returns the service tracer, a no-op one before Start.
func (c *Container) Tracer() trace.Tracer {
	if c.tracing == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return c.tracing.Tracer(instrumentationName)
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service and validation Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Warn(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
