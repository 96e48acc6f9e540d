// Package container provides dependency injection and lifecycle management
// for the claims service.
package container

import (
	"fmt"
	"time"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Lookup transports
const (
	TransportREST = "rest"
	TransportGRPC = "grpc"
)

// Messaging drivers
const (
	MessagingRedis = "redis"
	MessagingNoop  = "noop"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Validation strategy and lookup transport
	Validation ValidationConfig

	// Remote services
	Policy   RemoteConfig
	Customer RemoteConfig

	// CallerService identifies this service to the remote services
	CallerService string

	// Messaging configuration
	Messaging MessagingConfig

	// Tracing configuration
	Tracing TracingConfig

	// Metrics configuration
	Metrics MetricsConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite, postgres or memory
	Driver string

	// Path to SQLite database file
	Path string

	// DSN is the PostgreSQL connection string
	DSN string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// ValidationConfig holds validation settings.
type ValidationConfig struct {
	// Mode is sync or async
	Mode string

	// Transport is rest or grpc, used in sync mode
	Transport string

	// Per-lookup deadlines
	PolicyTimeout   time.Duration
	CustomerTimeout time.Duration
}

// RemoteConfig addresses one remote service.
type RemoteConfig struct {
	BaseURL    string
	GRPCAddr   string
	GRPCMethod string
}

// MessagingConfig holds broker settings.
type MessagingConfig struct {
	// Driver is redis or noop
	Driver string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Stream names
	ClaimEventsStream     string
	CustomerResultsStream string
	PolicyResultsStream   string

	// Consumer group membership
	ConsumerGroup string
	ConsumerName  string

	// Block is how long one read waits for new entries
	Block time.Duration

	// ReclaimIdle is how long a failed entry waits before redelivery
	ReclaimIdle time.Duration

	// StreamMaxLen caps the claim events stream, approximately
	StreamMaxLen int64
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// MetricsConfig holds OpenTelemetry metric export settings.
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// AllowedOrigins for CORS
	AllowedOrigins []string

	// GRPCPort serves the claims gRPC API; zero disables it
	GRPCPort int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/claims.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Validation: ValidationConfig{
			Mode:            "sync",
			Transport:       TransportREST,
			PolicyTimeout:   2 * time.Second,
			CustomerTimeout: 2 * time.Second,
		},
		Policy: RemoteConfig{
			BaseURL:  "http://localhost:8081",
			GRPCAddr: "localhost:9191",
		},
		Customer: RemoteConfig{
			BaseURL:  "http://localhost:8082",
			GRPCAddr: "localhost:9192",
		},
		CallerService: "claims-service",
		Messaging: MessagingConfig{
			Driver:                MessagingNoop,
			RedisAddr:             "localhost:6379",
			ClaimEventsStream:     "claims.claim-events",
			CustomerResultsStream: "customers.customer-validation-events",
			PolicyResultsStream:   "policies.policy-evaluation-events",
			ConsumerGroup:         "claims-service",
			ConsumerName:          "claims-service",
			Block:                 2 * time.Second,
			ReclaimIdle:           time.Minute,
			StreamMaxLen:          100000,
		},
		Tracing: TracingConfig{
			ServiceName: "claims-service",
			SampleRatio: 1.0,
		},
		Metrics: MetricsConfig{
			Interval: time.Minute,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	// Validate database configuration
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	// Validate messaging configuration
	switch c.Messaging.Driver {
	case MessagingRedis:
		if c.Messaging.RedisAddr == "" {
			return fmt.Errorf("messaging.redis_addr is required")
		}
	case MessagingNoop:
	default:
		return fmt.Errorf("unknown messaging driver %q", c.Messaging.Driver)
	}

	// Validate validation configuration
	switch c.Validation.Mode {
	case "sync":
		if c.Validation.Transport != TransportREST && c.Validation.Transport != TransportGRPC {
			return fmt.Errorf("unknown lookup transport %q", c.Validation.Transport)
		}
	case "async":
		if c.Messaging.Driver != MessagingRedis {
			return fmt.Errorf("async validation requires the redis messaging driver")
		}
	default:
		return fmt.Errorf("unknown validation mode %q", c.Validation.Mode)
	}

	return nil
}
