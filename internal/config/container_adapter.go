package config

import (
	"github.com/garyjia/claims-service/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Validation: container.ValidationConfig{
			Mode:            c.Validation.Mode,
			Transport:       c.Validation.Transport,
			PolicyTimeout:   c.Validation.PolicyTimeout,
			CustomerTimeout: c.Validation.CustomerTimeout,
		},
		Policy: container.RemoteConfig{
			BaseURL:    c.Policy.BaseURL,
			GRPCAddr:   c.Policy.GRPCAddr,
			GRPCMethod: c.Policy.GRPCMethod,
		},
		Customer: container.RemoteConfig{
			BaseURL:    c.Customer.BaseURL,
			GRPCAddr:   c.Customer.GRPCAddr,
			GRPCMethod: c.Customer.GRPCMethod,
		},
		CallerService: c.CallerService,
		Messaging: container.MessagingConfig{
			Driver:                c.Messaging.Driver,
			RedisAddr:             c.Messaging.RedisAddr,
			RedisPassword:         c.Messaging.RedisPassword,
			RedisDB:               c.Messaging.RedisDB,
			ClaimEventsStream:     c.Messaging.ClaimEventsStream,
			CustomerResultsStream: c.Messaging.CustomerResultsStream,
			PolicyResultsStream:   c.Messaging.PolicyResultsStream,
			ConsumerGroup:         c.Messaging.ConsumerGroup,
			ConsumerName:          c.Messaging.ConsumerName,
			Block:                 c.Messaging.Block,
			ReclaimIdle:           c.Messaging.ReclaimIdle,
			StreamMaxLen:          c.Messaging.StreamMaxLen,
		},
		Tracing: container.TracingConfig{
			Enabled:     c.Tracing.Enabled,
			ServiceName: c.Tracing.ServiceName,
			Environment: c.Tracing.Environment,
			Endpoint:    c.Tracing.Endpoint,
			Insecure:    c.Tracing.Insecure,
			SampleRatio: c.Tracing.SampleRatio,
		},
		Metrics: container.MetricsConfig{
			Enabled:  c.Metrics.Enabled,
			Endpoint: c.Metrics.Endpoint,
			Insecure: c.Metrics.Insecure,
			Interval: c.Metrics.Interval,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			AllowedOrigins: c.Server.AllowedOrigins,
			GRPCPort:       c.Server.GRPCPort,
		},
	}
}
