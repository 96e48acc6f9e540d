package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. CLAIMS_SERVER_PORT
const EnvPrefix = "CLAIMS"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig     `mapstructure:"server"`
	Database      DatabaseConfig   `mapstructure:"database"`
	Validation    ValidationConfig `mapstructure:"validation"`
	Policy        RemoteConfig     `mapstructure:"policy"`
	Customer      RemoteConfig     `mapstructure:"customer"`
	CallerService string           `mapstructure:"caller_service"`
	Messaging     MessagingConfig  `mapstructure:"messaging"`
	Tracing       TracingConfig    `mapstructure:"tracing"`
	Metrics       MetricsConfig    `mapstructure:"metrics"`
	Logger        LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	// GRPCPort serves the claims gRPC API; zero disables it
	GRPCPort int `mapstructure:"grpc_port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ValidationConfig selects how claims are checked against the policy and customer services
type ValidationConfig struct {
	Mode            string        `mapstructure:"mode"`
	Transport       string        `mapstructure:"transport"`
	PolicyTimeout   time.Duration `mapstructure:"policy_timeout"`
	CustomerTimeout time.Duration `mapstructure:"customer_timeout"`
}

// RemoteConfig addresses one remote service
type RemoteConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	GRPCAddr string `mapstructure:"grpc_addr"`
	// GRPCMethod overrides the full RPC name
	GRPCMethod string `mapstructure:"grpc_method"`
}

// MessagingConfig holds broker configuration
type MessagingConfig struct {
	Driver                string        `mapstructure:"driver"`
	RedisAddr             string        `mapstructure:"redis_addr"`
	RedisPassword         string        `mapstructure:"redis_password"`
	RedisDB               int           `mapstructure:"redis_db"`
	ClaimEventsStream     string        `mapstructure:"claim_events_stream"`
	CustomerResultsStream string        `mapstructure:"customer_results_stream"`
	PolicyResultsStream   string        `mapstructure:"policy_results_stream"`
	ConsumerGroup         string        `mapstructure:"consumer_group"`
	ConsumerName          string        `mapstructure:"consumer_name"`
	Block                 time.Duration `mapstructure:"block"`
	ReclaimIdle           time.Duration `mapstructure:"reclaim_idle"`
	StreamMaxLen          int64         `mapstructure:"stream_max_len"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Environment string  `mapstructure:"environment"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// MetricsConfig holds OpenTelemetry metric export configuration
type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Insecure bool          `mapstructure:"insecure"`
	Interval time.Duration `mapstructure:"interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file, a .env file next to
// the working directory, and CLAIMS_* environment variables, in rising priority.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.grpc_port", 0)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/claims.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Validation defaults
	v.SetDefault("validation.mode", "sync")
	v.SetDefault("validation.transport", "rest")
	v.SetDefault("validation.policy_timeout", 2*time.Second)
	v.SetDefault("validation.customer_timeout", 2*time.Second)

	// Remote services
	v.SetDefault("policy.base_url", "http://localhost:8081")
	v.SetDefault("policy.grpc_addr", "localhost:9191")
	v.SetDefault("customer.base_url", "http://localhost:8082")
	v.SetDefault("customer.grpc_addr", "localhost:9192")
	v.SetDefault("caller_service", "claims-service")

	// Messaging defaults
	v.SetDefault("messaging.driver", "noop")
	v.SetDefault("messaging.redis_addr", "localhost:6379")
	v.SetDefault("messaging.claim_events_stream", "claims.claim-events")
	v.SetDefault("messaging.customer_results_stream", "customers.customer-validation-events")
	v.SetDefault("messaging.policy_results_stream", "policies.policy-evaluation-events")
	v.SetDefault("messaging.consumer_group", "claims-service")
	v.SetDefault("messaging.block", 2*time.Second)
	v.SetDefault("messaging.reclaim_idle", time.Minute)
	v.SetDefault("messaging.stream_max_len", 100000)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "claims-service")
	v.SetDefault("tracing.sample_ratio", 1.0)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.interval", time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional variable names that do not follow the prefix scheme
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("messaging.redis_addr", EnvPrefix+"_MESSAGING_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("messaging.redis_password", EnvPrefix+"_MESSAGING_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("tracing.endpoint", EnvPrefix+"_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Validation.Mode = strings.ToLower(strings.TrimSpace(c.Validation.Mode))
	c.Validation.Transport = strings.ToLower(strings.TrimSpace(c.Validation.Transport))
	c.Messaging.Driver = strings.ToLower(strings.TrimSpace(c.Messaging.Driver))
	if c.Messaging.ConsumerName == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "claims-service"
		}
		c.Messaging.ConsumerName = host
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port must be between 0 and 65535")
	}
	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		return fmt.Errorf("server.grpc_port must differ from server.port")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or memory, got %q", c.Database.Driver)
	}

	switch c.Messaging.Driver {
	case "redis":
		if c.Messaging.RedisAddr == "" {
			return fmt.Errorf("messaging.redis_addr is required for redis")
		}
		if c.Messaging.ConsumerGroup == "" {
			return fmt.Errorf("messaging.consumer_group is required for redis")
		}
	case "noop":
	default:
		return fmt.Errorf("messaging.driver must be redis or noop, got %q", c.Messaging.Driver)
	}

	switch c.Validation.Mode {
	case "sync":
		if err := c.validateTransport(); err != nil {
			return err
		}
	case "async":
		if c.Messaging.Driver != "redis" {
			return fmt.Errorf("validation.mode=async requires messaging.driver=redis")
		}
	default:
		return fmt.Errorf("validation.mode must be sync or async, got %q", c.Validation.Mode)
	}

	return nil
}

func (c *Config) validateTransport() error {
	switch c.Validation.Transport {
	case "rest":
		if c.Policy.BaseURL == "" || c.Customer.BaseURL == "" {
			return fmt.Errorf("policy.base_url and customer.base_url are required for rest transport")
		}
	case "grpc":
		if c.Policy.GRPCAddr == "" || c.Customer.GRPCAddr == "" {
			return fmt.Errorf("policy.grpc_addr and customer.grpc_addr are required for grpc transport")
		}
	default:
		return fmt.Errorf("validation.transport must be rest or grpc, got %q", c.Validation.Transport)
	}
	if c.Validation.PolicyTimeout <= 0 || c.Validation.CustomerTimeout <= 0 {
		return fmt.Errorf("validation timeouts must be positive")
	}
	return nil
}
