// Package grpclookup implements the policy and customer lookups over gRPC.
package grpclookup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/garyjia/claims-service/internal/application/port"
	"github.com/garyjia/claims-service/internal/domain/entity"
)

const (
	GetPolicyMethod           = "/policies.PolicyService/GetPolicy"
	IsCustomerDataValidMethod = "/customers.CustomerService/IsCustomerDataValid"

	callerMetadataKey = "x-caller-service"
)

// Config holds the address of one gRPC service
type Config struct {
	Addr          string
	CallerService string
	// Method overrides the full RPC name when the server uses another proto package
	Method string
}

type conn struct {
	cc     *grpc.ClientConn
	method string
	caller string
	logger *zap.Logger
}

func dial(cfg Config, defaultMethod string, logger *zap.Logger, opts ...grpc.DialOption) (*conn, error) {
	if cfg.Addr == "" {
		return nil, errors.New("grpc address is required")
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	cc, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", cfg.Addr, err)
	}
	method := cfg.Method
	if method == "" {
		method = defaultMethod
	}
	return &conn{cc: cc, method: method, caller: cfg.CallerService, logger: logger}, nil
}

func (c *conn) invoke(ctx context.Context, req, resp *dynamicpb.Message) error {
	if c.caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, callerMetadataKey, c.caller)
	}
	if err := c.cc.Invoke(ctx, c.method, req, resp); err != nil {
		return mapStatus(err)
	}
	return nil
}

// Close releases the connection
func (c *conn) Close() error {
	return c.cc.Close()
}

// mapStatus folds gRPC status codes onto the lookup error kinds
func mapStatus(err error) error {
	switch status.Code(err) {
	case codes.NotFound, codes.InvalidArgument:
		return fmt.Errorf("%w: %v", port.ErrLookupNotFound, err)
	default:
		return fmt.Errorf("%w: %v", port.ErrLookupUnavailable, err)
	}
}

// PolicyClient calls PolicyService.GetPolicy
type PolicyClient struct {
	*conn
}

// NewPolicyClient creates a policy lookup. Without dial options the
// connection is plaintext.
func NewPolicyClient(cfg Config, logger *zap.Logger, opts ...grpc.DialOption) (*PolicyClient, error) {
	c, err := dial(cfg, GetPolicyMethod, logger, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("Initialized gRPC policy client", zap.String("addr", cfg.Addr), zap.String("method", c.method))
	return &PolicyClient{conn: c}, nil
}

// PolicyByID fetches a policy summary
func (c *PolicyClient) PolicyByID(ctx context.Context, policyRef string) (*entity.PolicySummary, error) {
	req := dynamicpb.NewMessage(getPolicyRequestDesc)
	req.Set(getPolicyRequestDesc.Fields().ByName("policy_id"), protoreflect.ValueOfString(policyRef))
	resp := dynamicpb.NewMessage(getPolicyResponseDesc)

	if err := c.invoke(ctx, req, resp); err != nil {
		c.logger.Warn("gRPC policy lookup failed", zap.String("policy_ref", policyRef), zap.Error(err))
		return nil, err
	}

	policyField := getPolicyResponseDesc.Fields().ByName("policy")
	if !resp.Has(policyField) {
		c.logger.Warn("gRPC policy response without policy", zap.String("policy_ref", policyRef))
		return nil, port.ErrLookupNotFound
	}
	return policyFromMessage(resp.Get(policyField).Message())
}

func policyFromMessage(m protoreflect.Message) (*entity.PolicySummary, error) {
	get := func(name protoreflect.Name) string {
		return m.Get(policyDesc.Fields().ByName(name)).String()
	}

	validFrom, err := entity.ParsePolicyDate(get("valid_from"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid valid_from: %v", port.ErrLookupUnavailable, err)
	}
	validTo, err := entity.ParsePolicyDate(get("valid_to"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid valid_to: %v", port.ErrLookupUnavailable, err)
	}

	return &entity.PolicySummary{
		ID:           get("id"),
		PolicyNumber: get("policy_number"),
		ProductCode:  get("product_code"),
		Status:       get("status"),
		ValidFrom:    validFrom,
		ValidTo:      validTo,
	}, nil
}

// CustomerClient calls CustomerService.IsCustomerDataValid
type CustomerClient struct {
	*conn
}

// NewCustomerClient creates a customer lookup. Without dial options the
// connection is plaintext.
func NewCustomerClient(cfg Config, logger *zap.Logger, opts ...grpc.DialOption) (*CustomerClient, error) {
	c, err := dial(cfg, IsCustomerDataValidMethod, logger, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("Initialized gRPC customer client", zap.String("addr", cfg.Addr), zap.String("method", c.method))
	return &CustomerClient{conn: c}, nil
}

// IsCustomerValid asks whether the customer's data is usable for claims.
// The customer reference travels in the customer_number field.
func (c *CustomerClient) IsCustomerValid(ctx context.Context, customerRef string) (bool, error) {
	req := dynamicpb.NewMessage(customerRequestDesc)
	req.Set(customerRequestDesc.Fields().ByName("customer_number"), protoreflect.ValueOfString(customerRef))
	resp := dynamicpb.NewMessage(customerResponseDesc)

	if err := c.invoke(ctx, req, resp); err != nil {
		c.logger.Warn("gRPC customer lookup failed", zap.String("customer_ref", customerRef), zap.Error(err))
		return false, err
	}

	valid := resp.Get(customerResponseDesc.Fields().ByName("valid")).Bool()
	c.logger.Info("Customer validation result via gRPC",
		zap.String("customer_ref", customerRef),
		zap.Bool("valid", valid))
	return valid, nil
}

var (
	_ port.PolicyLookup   = (*PolicyClient)(nil)
	_ port.CustomerLookup = (*CustomerClient)(nil)
)
