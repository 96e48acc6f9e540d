package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/claims-service/internal/config"
	"github.com/garyjia/claims-service/internal/container"
	grpcapi "github.com/garyjia/claims-service/internal/interfaces/grpc"
	httpapi "github.com/garyjia/claims-service/internal/interfaces/http"
	"github.com/garyjia/claims-service/pkg/utils"
)

const version = "1.0.0"

func main() {
	configPath := "configs/config.yaml"
	if p := os.Getenv("CLAIMS_CONFIG"); p != "" {
		configPath = p
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Claims service exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting claims service",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
		zap.String("validation_mode", cfg.Validation.Mode),
		zap.String("database_driver", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start container: %w", err)
	}

	health := func(ctx context.Context) (bool, interface{}) {
		status := c.Health(ctx)
		return status.Overall, status.Components
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ServiceName:     cfg.Tracing.ServiceName,
	}, c.Services().Claims, health, logger,
		httpapi.WithTracing(c.Tracing().Provider(), c.Tracing().Propagator()))

	var rpc *grpcapi.Server
	if cfg.Server.GRPCPort > 0 {
		rpc, err = grpcapi.NewServer(grpcapi.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.GRPCPort,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, c.Services().Claims, logger,
			grpcapi.WithTracing(c.Tracing().Provider(), c.Tracing().Propagator()),
			grpcapi.WithMeter(c.Meter()))
		if err != nil {
			_ = c.Close()
			return fmt.Errorf("create grpc server: %w", err)
		}
	}

	// Serves until a signal arrives or a listener fails, then drains in-flight requests
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	if rpc != nil {
		g.Go(func() error { return rpc.Start(gctx) })
	}

	serveErr := g.Wait()

	logger.Info("Shutting down claims service...")
	if err := c.Close(); err != nil {
		logger.Error("Container shutdown error", zap.Error(err))
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
