package container

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/govalues/decimal"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/dispatcher"
	"github.com/garyjia/claims-service/internal/application/service"
	"github.com/garyjia/claims-service/internal/application/validation"
	"github.com/garyjia/claims-service/internal/application/workflow"
	"github.com/garyjia/claims-service/internal/domain/entity"
	"github.com/garyjia/claims-service/internal/domain/event"
	domainwf "github.com/garyjia/claims-service/internal/domain/workflow"
	"github.com/garyjia/claims-service/internal/infrastructure/worker"
	"github.com/garyjia/claims-service/internal/observability/metricstest"
)

func newRemoteServices(t *testing.T) (policyURL, customerURL string) {
	t.Helper()

	policies := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/policies/POL-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"POL-1","policyNumber":"P-0001","productCode":"HOME","status":"ACTIVE","validFrom":"2000-01-01","validTo":"2999-12-31"}`))
	}))
	t.Cleanup(policies.Close)

	customers := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/CUST-1/valid" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`true`))
	}))
	t.Cleanup(customers.Close)

	return policies.URL, customers.URL
}

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Database.Driver = DriverMemory
	cfg.Policy.BaseURL, cfg.Customer.BaseURL = newRemoteServices(t)
	return cfg
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	cfg := DefaultConfig()
	_, err = NewContainer(cfg, nil)
	assert.Error(t, err)

	cfg.Validation.Mode = "async"
	_, err = NewContainer(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestContainer_SyncLifecycle(t *testing.T) {
	reader := metricstest.New()
	c, err := NewContainer(testConfig(t), zap.NewNop(), WithMeterProvider(reader.Provider()))
	require.NoError(t, err)
	assert.False(t, c.Ready())

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx))

	claims := c.Services().Claims
	claim, err := claims.SubmitClaim(ctx, service.SubmitClaimInput{
		PolicyRef:      "POL-1",
		CustomerRef:    "CUST-1",
		Description:    "Water damage",
		ReportedAmount: decimal.MustParse("1250.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateSubmitted, claim.Status)

	summary, err := claims.GetValidation(ctx, claim.ID)
	require.NoError(t, err)
	assert.True(t, summary.Complete)
	assert.Equal(t, entity.VerdictValid, summary.Policy.Verdict)
	assert.Equal(t, entity.VerdictValid, summary.Customer.Verdict)

	_, err = claims.StartReview(ctx, claim.ID)
	require.NoError(t, err)
	amount := decimal.MustParse("1000.00")
	approved, err := claims.Approve(ctx, claim.ID, &amount, "covered")
	require.NoError(t, err)
	assert.True(t, approved.IsApproved())

	history, err := claims.GetHistory(ctx, claim.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	publishers := c.Dispatcher().ListHandlers(event.TypeClaimApproved)
	require.Len(t, publishers, 1)
	assert.Equal(t, "claim-event-publisher", publishers[0].Name)
	recorders := c.Dispatcher().ListHandlers(event.TypePolicyEvaluationFailed)
	require.Len(t, recorders, 1)
	assert.Equal(t, "outcome-recorder", recorders[0].Name)

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.True(t, health.Components["events"].Healthy)
	assert.Equal(t, 0, c.Workers().Len())
	assert.Equal(t, "no consumers", health.Components["workers"].Message)

	assert.Equal(t, int64(1), reader.Count(t, validation.MetricLookups,
		attribute.String("source", "policy"), attribute.String("result", validation.LookupFound)))

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestContainer_SQLiteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = DriverSQLite
	cfg.Database.Path = ":memory:"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	claim, err := c.Services().Claims.SubmitClaim(context.Background(), service.SubmitClaimInput{
		PolicyRef:      "POL-UNKNOWN",
		CustomerRef:    "CUST-1",
		ReportedAmount: decimal.MustParse("10"),
	})
	require.NoError(t, err)

	summary, err := c.Services().Claims.GetValidation(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VerdictInvalid, summary.Policy.Verdict)
	assert.Equal(t, entity.VerdictValid, summary.Customer.Verdict)

	assert.True(t, c.Health(context.Background()).Components["database"].Healthy)
}

func TestContainer_StartFailureReleasesComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policy.BaseURL = "::not a url"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookups")
	assert.False(t, c.Ready())
}

func TestProvideStrategy_AsyncNeedsNoLookups(t *testing.T) {
	strategy, err := ProvideStrategy(&ValidationConfig{Mode: "async"}, nil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "async", string(strategy.Mode()))

	_, err = ProvideStrategy(&ValidationConfig{Mode: "sync"}, nil, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestProvideWorkers_ConsumesOnlyInAsyncMode(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := DefaultConfig().Messaging
	cfg.Driver = MessagingRedis

	deps := &WorkerDeps{
		Mode:       validation.ModeSync,
		Messaging:  &cfg,
		Redis:      rdb,
		Dispatcher: dispatcher.NewDispatcher(),
		Logger:     zap.NewNop(),
	}

	pool, err := ProvideWorkers(deps)
	require.NoError(t, err)
	assert.Equal(t, 0, pool.Len(), "sync mode must not join the consumer group")

	deps.Mode = validation.ModeAsync
	pool, err = ProvideWorkers(deps)
	require.NoError(t, err)
	require.Equal(t, 1, pool.Len())
	statuses := pool.Statuses()
	assert.Equal(t, cfg.ConsumerGroup+"/"+cfg.ConsumerName, statuses[0].Name)
	assert.Equal(t, worker.StateIdle, statuses[0].State)

	deps.Redis = nil
	_, err = ProvideWorkers(deps)
	assert.Error(t, err)
}

func TestContainer_EventRoutingHealth(t *testing.T) {
	c := &Container{
		dispatcher: dispatcher.NewDispatcher(),
		strategy:   validation.NewAsyncStrategy(nil),
	}

	health := c.eventRoutingHealth()
	assert.False(t, health.Healthy)
	assert.Contains(t, health.Message, string(event.TypeClaimSubmitted))
	assert.Contains(t, health.Message, string(event.TypePolicyEvaluationFailed))

	noop := func(context.Context, *event.Event) error { return nil }
	c.dispatcher.SubscribeAll(workflow.LifecycleEventTypes(), "publisher", noop)
	c.dispatcher.SubscribeAll(ValidationResultTypes(), "recorder", noop)

	health = c.eventRoutingHealth()
	assert.True(t, health.Healthy)
	assert.Equal(t, "9 event types routed", health.Message)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("claim_id", "c-1", 42, "skipped", "error", errors.New("boom"), "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "claim_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Second, cfg.Validation.PolicyTimeout)
}
