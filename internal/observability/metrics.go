package observability

import (
	"context"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.uber.org/zap"
)

// MetricsConfig selects how instruments are exported
type MetricsConfig struct {
	Enabled     bool
	ServiceName string
	// Endpoint is an OTLP/HTTP collector address; empty writes to Writer
	Endpoint string
	Insecure bool
	// Interval between exports; zero means one minute
	Interval time.Duration
	// Writer receives JSON metric batches when no endpoint is set; nil means stdout
	Writer io.Writer
}

// Metering owns the meter provider. A disabled Metering hands out no-op meters.
type Metering struct {
	provider metric.MeterProvider
	shutdown func(context.Context) error
}

// NewMetering builds the meter provider described by cfg
func NewMetering(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*Metering, error) {
	if !cfg.Enabled {
		return &Metering{
			provider: noop.NewMeterProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "claims-service"
	}

	exporter, err := buildMetricExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(resource.NewSchemaless(semconv.ServiceNameKey.String(serviceName))),
	)

	logger.Info("otel metrics initialized",
		zap.String("service", serviceName),
		zap.String("endpoint", cfg.Endpoint),
		zap.Duration("interval", interval))

	return &Metering{provider: mp, shutdown: mp.Shutdown}, nil
}

// WrapMeterProvider adopts a provider built elsewhere. Shutdown is left to its owner.
func WrapMeterProvider(mp metric.MeterProvider) *Metering {
	return &Metering{provider: mp, shutdown: func(context.Context) error { return nil }}
}

func buildMetricExporter(ctx context.Context, cfg MetricsConfig) (sdkmetric.Exporter, error) {
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []stdoutmetric.Option{}
	if cfg.Writer != nil {
		opts = append(opts, stdoutmetric.WithWriter(cfg.Writer))
	}
	return stdoutmetric.New(opts...)
}

// Provider returns the meter provider
func (m *Metering) Provider() metric.MeterProvider {
	return m.provider
}

// Meter returns a named meter
func (m *Metering) Meter(name string) metric.Meter {
	return m.provider.Meter(name)
}

// Shutdown flushes pending measurements
func (m *Metering) Shutdown(ctx context.Context) error {
	return m.shutdown(ctx)
}
