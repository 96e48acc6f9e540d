package container

import (
	"context"
	"fmt"
	"net/http"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/garyjia/claims-service/internal/application/dispatcher"
	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/application/service"
	"github.com/garyjia/claims-service/internal/application/validation"
	"github.com/garyjia/claims-service/internal/application/workflow"
	"github.com/garyjia/claims-service/internal/domain/event"
	"github.com/garyjia/claims-service/internal/infrastructure/external/grpclookup"
	"github.com/garyjia/claims-service/internal/infrastructure/external/restlookup"
	"github.com/garyjia/claims-service/internal/infrastructure/messaging"
	"github.com/garyjia/claims-service/internal/infrastructure/messaging/redisstream"
	"github.com/garyjia/claims-service/internal/infrastructure/persistence/memory"
	"github.com/garyjia/claims-service/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/claims-service/internal/infrastructure/persistence/repository"
	"github.com/garyjia/claims-service/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/claims-service/internal/infrastructure/worker"
	"github.com/garyjia/claims-service/migrations"
	"github.com/garyjia/claims-service/pkg/database"
)

// StoreBundle holds the repositories and transaction manager of one backend.
type StoreBundle struct {
	Claims      port.ClaimRepository
	Validations port.ValidationRepository
	History     port.HistoryRepository
	TxManager   port.TransactionManager

	// Ping checks the backend; nil for the in-memory store
	Ping func(ctx context.Context) error

	// Close releases the backend; nil for the in-memory store
	Close func() error
}

// LookupBundle holds the remote service lookups.
type LookupBundle struct {
	Policies  port.PolicyLookup
	Customers port.CustomerLookup
	closers   []func() error
}

// Close releases lookup connections
func (b *LookupBundle) Close() error {
	var firstErr error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MessagingBundle holds the broker client and the outbound publisher.
type MessagingBundle struct {
	Redis     *goredis.Client
	Publisher port.EventPublisher
}

// Telemetry carries what the providers need to instrument clients.
type Telemetry struct {
	Provider   trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// ProvideStore opens the configured database, runs pending migrations and
// creates the repositories.
func ProvideStore(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case DriverSQLite:
		return provideSQLite(ctx, cfg, logger)
	case DriverPostgres:
		return providePostgres(ctx, cfg, logger)
	case DriverMemory:
		logger.Warn("Using in-memory store, claims are lost on restart")
		store := memory.NewStore()
		return &StoreBundle{
			Claims:      store.Claims(),
			Validations: store.Validations(),
			History:     store.History(),
			TxManager:   store,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func provideSQLite(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db.DB, database.DialectSQLite, logger)
	if err := migrator.RunMigrations(ctx, migrations.SQLite, "sqlite"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &StoreBundle{
		Claims:      repository.NewClaimRepository(db.DB, logger),
		Validations: repository.NewValidationRepository(db.DB, logger),
		History:     repository.NewHistoryRepository(db.DB, logger),
		TxManager:   sqlite.NewDB(db.DB, logger),
		Ping:        db.PingContext,
		Close:       db.Close,
	}, nil
}

func providePostgres(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	pg, err := database.NewPostgres(ctx, database.PostgresConfig{
		DSN:             cfg.DSN,
		MaxConns:        int32(cfg.MaxOpenConns),
		MinConns:        int32(cfg.MaxIdleConns),
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	sqlDB := pg.SQLDB()
	migrator := database.NewMigrator(sqlDB, database.DialectPostgres, logger)
	migrateErr := migrator.RunMigrations(ctx, migrations.Postgres, "postgres")
	_ = sqlDB.Close()
	if migrateErr != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", migrateErr)
	}

	return &StoreBundle{
		Claims:      postgres.NewClaimRepository(pg.Pool, logger),
		Validations: postgres.NewValidationRepository(pg.Pool, logger),
		History:     postgres.NewHistoryRepository(pg.Pool, logger),
		TxManager:   postgres.NewDB(pg.Pool, logger),
		Ping:        pg.Pool.Ping,
		Close:       pg.Close,
	}, nil
}

// ProvideLookups creates the policy and customer lookups for the configured transport.
func ProvideLookups(cfg *Config, tel Telemetry, logger *zap.Logger) (*LookupBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Validation.Transport {
	case TransportREST:
		httpClient := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tel.Provider),
				otelhttp.WithPropagators(tel.Propagator)),
		}
		policies, err := restlookup.NewPolicyClient(restlookup.Config{
			BaseURL:       cfg.Policy.BaseURL,
			CallerService: cfg.CallerService,
		}, httpClient, logger)
		if err != nil {
			return nil, err
		}
		customers, err := restlookup.NewCustomerClient(restlookup.Config{
			BaseURL:       cfg.Customer.BaseURL,
			CallerService: cfg.CallerService,
		}, httpClient, logger)
		if err != nil {
			return nil, err
		}
		return &LookupBundle{Policies: policies, Customers: customers}, nil

	case TransportGRPC:
		opts := []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler(
				otelgrpc.WithTracerProvider(tel.Provider),
				otelgrpc.WithPropagators(tel.Propagator))),
		}
		policies, err := grpclookup.NewPolicyClient(grpclookup.Config{
			Addr:          cfg.Policy.GRPCAddr,
			CallerService: cfg.CallerService,
			Method:        cfg.Policy.GRPCMethod,
		}, logger, opts...)
		if err != nil {
			return nil, err
		}
		customers, err := grpclookup.NewCustomerClient(grpclookup.Config{
			Addr:          cfg.Customer.GRPCAddr,
			CallerService: cfg.CallerService,
			Method:        cfg.Customer.GRPCMethod,
		}, logger, opts...)
		if err != nil {
			_ = policies.Close()
			return nil, err
		}
		return &LookupBundle{
			Policies:  policies,
			Customers: customers,
			closers:   []func() error{policies.Close, customers.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown lookup transport %q", cfg.Validation.Transport)
	}
}

// ProvideMessaging connects to the broker and creates the outbound publisher.
func ProvideMessaging(ctx context.Context, cfg *MessagingConfig, logger *zap.Logger) (*MessagingBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("messaging config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case MessagingRedis:
		rdb, err := redisstream.NewClient(ctx, redisstream.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &MessagingBundle{
			Redis:     rdb,
			Publisher: redisstream.NewPublisher(rdb, cfg.StreamMaxLen, logger),
		}, nil
	case MessagingNoop:
		return &MessagingBundle{Publisher: messaging.NewLogPublisher(logger)}, nil
	default:
		return nil, fmt.Errorf("unknown messaging driver %q", cfg.Driver)
	}
}

// ProvideStrategy creates the configured validation strategy. lookups may
// be nil in async mode.
func ProvideStrategy(cfg *ValidationConfig, lookups *LookupBundle, metrics *validation.Metrics, tracer trace.Tracer, logger *zap.Logger) (validation.Strategy, error) {
	mode, err := validation.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	validationLogger := &zapLoggerAdapter{logger: logger}
	if mode == validation.ModeAsync {
		return validation.NewAsyncStrategy(validationLogger), nil
	}

	if lookups == nil {
		return nil, fmt.Errorf("lookups are required for sync validation")
	}
	return validation.NewSyncStrategy(lookups.Policies, lookups.Customers,
		validation.WithTimeouts(cfg.PolicyTimeout, cfg.CustomerTimeout),
		validation.WithMetrics(metrics),
		validation.WithLogger(validationLogger),
		validation.WithTracer(tracer),
	), nil
}

// ProvideDispatcher creates the event dispatcher.
// Returns dispatcher.Dispatcher implementation.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Create dispatcher logger adapter
	dispatcherLogger := &dispatcherLoggerAdapter{logger: logger}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(dispatcherLogger),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Store      *StoreBundle
	Strategy   validation.Strategy
	Metrics    *validation.Metrics
	Dispatcher dispatcher.Dispatcher
	Publisher  port.EventPublisher
	Topic      string
	Tracer     trace.Tracer
	Logger     *zap.Logger
}

// ServiceBundle groups the application services.
type ServiceBundle struct {
	Claims   service.ClaimService
	Engine   workflow.LifecycleEngine
	Recorder *validation.OutcomeRecorder
}

// ProvideServices creates the lifecycle engine, the outcome recorder and the
// claim service, and subscribes the outbound publisher and the recorder to
// the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	engine := workflow.NewEngine(
		deps.Store.Claims,
		deps.Store.History,
		deps.Store.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
	)

	recorder := validation.NewOutcomeRecorder(deps.Store.Claims, deps.Store.Validations, deps.Metrics, serviceLogger)

	publisher := messaging.NewClaimEventPublisher(deps.Publisher, deps.Topic, deps.Logger)
	publisher.Register(deps.Dispatcher, workflow.LifecycleEventTypes())
	deps.Dispatcher.SubscribeAll(ValidationResultTypes(), "outcome-recorder", recorder.HandleEvent)

	opts := []service.Option{}
	if deps.Tracer != nil {
		opts = append(opts, service.WithTracer(deps.Tracer))
	}

	claims := service.NewClaimService(
		deps.Store.Claims,
		deps.Store.History,
		engine,
		deps.Strategy,
		recorder,
		serviceLogger,
		opts...,
	)

	return &ServiceBundle{
		Claims:   claims,
		Engine:   engine,
		Recorder: recorder,
	}, nil
}

// ValidationResultTypes lists the inbound validation result event types
func ValidationResultTypes() []event.Type {
	return []event.Type{
		event.TypeCustomerValidationPassed,
		event.TypeCustomerValidationFailed,
		event.TypePolicyEvaluationPassed,
		event.TypePolicyEvaluationFailed,
	}
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Mode       validation.Mode
	Messaging  *MessagingConfig
	Redis      *goredis.Client
	Dispatcher dispatcher.Dispatcher
	Metrics    *validation.Metrics
	Logger     *zap.Logger
}

// ProvideWorkers creates the background workers. Inbound validation results
// are only consumed in async mode; sync mode records its outcomes while the
// claim is submitted and must not join the consumer group.
// Returns a *worker.Pool with its consumers added but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Pool, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if deps.Mode != validation.ModeAsync {
		return worker.NewPool(0, deps.Logger), nil
	}
	if deps.Redis == nil {
		return nil, fmt.Errorf("redis client is required for async validation")
	}
	if deps.Messaging == nil {
		return nil, fmt.Errorf("messaging config is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	cfg := deps.Messaging
	pool := worker.NewPool(2*cfg.Block, deps.Logger)
	router := messaging.NewRouter(deps.Dispatcher, deps.Metrics, map[string]string{
		cfg.CustomerResultsStream: "customer",
		cfg.PolicyResultsStream:   "policy",
	}, deps.Logger)

	consumer := redisstream.NewConsumer(deps.Redis, redisstream.ConsumerConfig{
		Streams:     []string{cfg.CustomerResultsStream, cfg.PolicyResultsStream},
		Group:       cfg.ConsumerGroup,
		Consumer:    cfg.ConsumerName,
		Block:       cfg.Block,
		ReclaimIdle: cfg.ReclaimIdle,
	}, router.Route, messaging.Acknowledge, deps.Logger)
	if err := pool.Add(consumer); err != nil {
		return nil, err
	}

	return pool, nil
}
