// Package grpc serves the claims API over gRPC, alongside the HTTP adapter.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/garyjia/claims-service/internal/application/service"
)

// Instrument names
const (
	MetricRequests = "claims.server.requests"
	MetricLatency  = "claims.server.latency"
)

// ServerConfig holds gRPC server configuration
type ServerConfig struct {
	Host string
	Port int
	// ShutdownTimeout bounds the graceful stop before connections are cut
	ShutdownTimeout time.Duration
}

// Server is the gRPC server adapter
type Server struct {
	config   ServerConfig
	server   *grpc.Server
	handlers *Handlers
	logger   *zap.Logger

	tracerProvider trace.TracerProvider
	propagator     propagation.TextMapPropagator
	meter          metric.Meter

	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// Option configures the server
type Option func(*Server)

// WithTracing records a server span per RPC
func WithTracing(tp trace.TracerProvider, propagator propagation.TextMapPropagator) Option {
	return func(s *Server) {
		s.tracerProvider = tp
		s.propagator = propagator
	}
}

// WithMeter records request counts and latencies on meter
func WithMeter(meter metric.Meter) Option {
	return func(s *Server) {
		s.meter = meter
	}
}

// NewServer creates a gRPC server with ClaimsService registered
func NewServer(config ServerConfig, claims service.ClaimService, logger *zap.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		config:   config,
		handlers: NewHandlers(claims, logger),
		logger:   logger,
		meter:    metricnoop.NewMeterProvider().Meter(""),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.requests, err = s.meter.Int64Counter(MetricRequests,
		metric.WithDescription("Claims RPCs by method and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricRequests, err)
	}
	s.latency, err = s.meter.Float64Histogram(MetricLatency,
		metric.WithDescription("Claims RPC latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create %s histogram: %w", MetricLatency, err)
	}

	serverOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(s.observe)}
	if s.tracerProvider != nil {
		otelOpts := []otelgrpc.Option{otelgrpc.WithTracerProvider(s.tracerProvider)}
		if s.propagator != nil {
			otelOpts = append(otelOpts, otelgrpc.WithPropagators(s.propagator))
		}
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler(otelOpts...)))
	}

	s.server = grpc.NewServer(serverOpts...)
	s.server.RegisterService(&ClaimsServiceDesc, s.handlers)
	return s, nil
}

// observe counts every RPC by outcome and records its latency
func (s *Server) observe(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	method := attribute.String("method", info.FullMethod)
	s.requests.Add(ctx, 1, metric.WithAttributes(method, attribute.String("outcome", status.Code(err).String())))
	s.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(method))

	s.logger.Info("gRPC request",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("latency", time.Since(start)))
	return resp, err
}

// Serve accepts connections on lis until Stop is called
func (s *Server) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Start serves until ctx is done or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.logger.Info("Starting gRPC server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("gRPC server shutdown requested")
		s.Stop()
		return nil
	case err := <-errCh:
		s.logger.Error("gRPC server error", zap.Error(err))
		return err
	}
}

// Stop drains in-flight RPCs, cutting them off after the shutdown timeout
func (s *Server) Stop() {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.server.Stop()
	}
	s.logger.Info("gRPC server stopped")
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// ClaimsServiceDesc registers ClaimsServer implementations with a grpc.Server
var ClaimsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClaimsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodSubmitClaim, submitRequestDesc, ClaimsServer.SubmitClaim),
		unary(MethodGetClaim, claimIDRequestDesc, ClaimsServer.GetClaim),
		unary(MethodListClaimsForCustomer, listRequestDesc, ClaimsServer.ListClaimsForCustomer),
		unary(MethodApproveClaim, approveRequestDesc, ClaimsServer.ApproveClaim),
		unary(MethodRejectClaim, rejectRequestDesc, ClaimsServer.RejectClaim),
		unary(MethodMarkClaimPaidOut, claimIDRequestDesc, ClaimsServer.MarkClaimPaidOut),
		unary(MethodStartReview, claimIDRequestDesc, ClaimsServer.StartReview),
	},
	Metadata: "claims.proto",
}

type rpcFunc func(ClaimsServer, context.Context, *dynamicpb.Message) (*dynamicpb.Message, error)

// unary adapts a ClaimsServer method to a grpc.MethodDesc, decoding the
// request into a dynamic message of type in
func unary(name string, in protoreflect.MessageDescriptor, call rpcFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			req := dynamicpb.NewMessage(in)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ClaimsServer), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ClaimsServer), ctx, req.(*dynamicpb.Message))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}
