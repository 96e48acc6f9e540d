package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	tr, err := New(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)

	_, span := tr.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestNew_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(context.Background(), Config{Enabled: true, ServiceName: "claims-test", Writer: &buf}, zap.NewNop())
	require.NoError(t, err)

	_, span := tr.Tracer("test").Start(context.Background(), "claims.submit")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "claims.submit")
	assert.NotNil(t, tr.Propagator())
}

func TestNewMetering_DisabledIsNoop(t *testing.T) {
	m, err := NewMetering(context.Background(), MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)

	counter, err := m.Meter("test").Int64Counter("claims.test")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestNewMetering_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	m, err := NewMetering(context.Background(), MetricsConfig{Enabled: true, ServiceName: "claims-test", Writer: &buf}, zap.NewNop())
	require.NoError(t, err)

	counter, err := m.Meter("test").Int64Counter("claims.validation.outcomes")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "claims.validation.outcomes")
}
