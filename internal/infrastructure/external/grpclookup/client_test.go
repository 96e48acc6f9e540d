package grpclookup

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/garyjia/claims-service/internal/application/port"
)

type handlerFunc func(method string, stream grpc.ServerStream) error

// startServer runs a gRPC server on an in-memory listener and returns the
// dial options that reach it.
func startServer(t *testing.T, handle handlerFunc) []grpc.DialOption {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ interface{}, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		return handle(method, stream)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

func policyHandler(t *testing.T, policy map[string]string, failWith error) handlerFunc {
	return func(method string, stream grpc.ServerStream) error {
		assert.Equal(t, GetPolicyMethod, method)

		req := dynamicpb.NewMessage(getPolicyRequestDesc)
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		md, _ := metadata.FromIncomingContext(stream.Context())
		assert.Equal(t, []string{"claims-service"}, md.Get(callerMetadataKey))

		if failWith != nil {
			return failWith
		}

		resp := dynamicpb.NewMessage(getPolicyResponseDesc)
		if policy != nil {
			p := dynamicpb.NewMessage(policyDesc)
			for name, value := range policy {
				p.Set(policyDesc.Fields().ByName(protoreflect.Name(name)), protoreflect.ValueOfString(value))
			}
			resp.Set(getPolicyResponseDesc.Fields().ByName("policy"), protoreflect.ValueOfMessage(p))
		}
		return stream.SendMsg(resp)
	}
}

func TestPolicyClient_PolicyByID(t *testing.T) {
	opts := startServer(t, policyHandler(t, map[string]string{
		"id":            "p-1",
		"policy_number": "PN-7",
		"product_code":  "HOME",
		"status":        "ACTIVE",
		"valid_from":    "2026-01-01",
		"valid_to":      "2026-12-31",
	}, nil))

	client, err := NewPolicyClient(Config{Addr: "passthrough:///bufnet", CallerService: "claims-service"}, zap.NewNop(), opts...)
	require.NoError(t, err)
	defer client.Close()

	summary, err := client.PolicyByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "PN-7", summary.PolicyNumber)
	assert.Equal(t, "ACTIVE", summary.Status)
	assert.True(t, summary.CoversAt(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, summary.CoversAt(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPolicyClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		policy  map[string]string
		fail    error
		wantErr error
	}{
		{"not found status", nil, status.Error(codes.NotFound, "policy not found"), port.ErrLookupNotFound},
		{"invalid argument", nil, status.Error(codes.InvalidArgument, "bad id"), port.ErrLookupNotFound},
		{"internal", nil, status.Error(codes.Internal, "boom"), port.ErrLookupUnavailable},
		{"empty response", nil, nil, port.ErrLookupNotFound},
		{"bad date", map[string]string{"status": "ACTIVE", "valid_from": "soon"}, nil, port.ErrLookupUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := startServer(t, policyHandler(t, tt.policy, tt.fail))
			client, err := NewPolicyClient(Config{Addr: "passthrough:///bufnet", CallerService: "claims-service"}, zap.NewNop(), opts...)
			require.NoError(t, err)
			defer client.Close()

			_, err = client.PolicyByID(context.Background(), "p-1")
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCustomerClient_IsCustomerValid(t *testing.T) {
	for _, want := range []bool{true, false} {
		opts := startServer(t, func(method string, stream grpc.ServerStream) error {
			assert.Equal(t, IsCustomerDataValidMethod, method)

			req := dynamicpb.NewMessage(customerRequestDesc)
			if err := stream.RecvMsg(req); err != nil {
				return err
			}
			assert.Equal(t, "c-1", req.Get(customerRequestDesc.Fields().ByName("customer_number")).String())

			resp := dynamicpb.NewMessage(customerResponseDesc)
			resp.Set(customerResponseDesc.Fields().ByName("valid"), protoreflect.ValueOfBool(want))
			return stream.SendMsg(resp)
		})

		client, err := NewCustomerClient(Config{Addr: "passthrough:///bufnet"}, zap.NewNop(), opts...)
		require.NoError(t, err)

		valid, err := client.IsCustomerValid(context.Background(), "c-1")
		require.NoError(t, err)
		assert.Equal(t, want, valid)
		_ = client.Close()
	}
}

func TestCustomerClient_DeadlineIsUnavailable(t *testing.T) {
	opts := startServer(t, func(_ string, stream grpc.ServerStream) error {
		<-stream.Context().Done()
		return stream.Context().Err()
	})
	client, err := NewCustomerClient(Config{Addr: "passthrough:///bufnet"}, zap.NewNop(), opts...)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.IsCustomerValid(ctx, "c-1")
	assert.True(t, errors.Is(err, port.ErrLookupUnavailable))
}

func TestDial_RequiresAddress(t *testing.T) {
	_, err := NewPolicyClient(Config{}, zap.NewNop())
	assert.Error(t, err)
}
