package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "nexusd", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	ctx, span := StartSpan(ctx, "test.operation")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, TraceID(ctx))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

// recordingTracer installs an in-memory tracer for the duration of a test.
func recordingTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := tracer.Load()
	setTracer(provider.Tracer(instrumentationName))
	t.Cleanup(func() {
		tracer.Store(prev)
		_ = provider.Shutdown(context.Background())
	})
	return rec
}

func TestStartAdminSpan(t *testing.T) {
	rec := recordingTracer(t)

	ctx, span := StartAdminSpan(context.Background(), SpanNexusCreate,
		NexusName("vol-1"), NexusSize(64<<20), ChildURI("loopback:///disk0"))
	assert.NotEmpty(t, TraceID(ctx))
	RecordError(ctx, errors.New("size mismatch"))
	RecordError(ctx, nil)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, SpanNexusCreate, got.Name())
	assert.Equal(t, "Error", got.Status().Code.String())
	assert.Equal(t, "size mismatch", got.Status().Description)

	attrs := map[string]any{}
	for _, kv := range got.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "vol-1", attrs[AttrNexusName])
	assert.Equal(t, int64(64<<20), attrs[AttrNexusSize])
	assert.Equal(t, "loopback:///disk0", attrs[AttrChildURI])
}

func TestStartRequestSpan(t *testing.T) {
	rec := recordingTracer(t)

	_, span := StartRequestSpan(context.Background(), "POST /api/v1/nexuses", "10.0.0.5:51234")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, SpanAdminRequest, ended[0].Name())
	assert.Equal(t, "server", ended[0].SpanKind().String())
}

func TestNexusSizeClamps(t *testing.T) {
	assert.Equal(t, int64(1<<63-1), NexusSize(^uint64(0)).Value.AsInt64())
}

func TestParseProfileTypes(t *testing.T) {
	types, err := parseProfileTypes([]string{"cpu", "inuse_space", "mutex_count"})
	require.NoError(t, err)
	assert.Len(t, types, 3)

	_, err = parseProfileTypes([]string{"cpu", "heap"})
	assert.ErrorContains(t, err, `"heap"`)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}
