package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// enabledConfig points the exporter at a non-routable endpoint. The batch
// exporter connects lazily, so setup still succeeds.
func enabledConfig(sampleRate float64) Config {
	return Config{
		ServiceName:    "storefront",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:0",
		SampleRate:     sampleRate,
		Enabled:        true,
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	cfg := DefaultConfig("storefront")
	cfg.Enabled = false

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown, "disabled tracing still returns a shutdown func")

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Enabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), enabledConfig(1.0))
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "global provider should be the SDK provider")

	// Shutdown may report an export error since the endpoint is unreachable.
	_ = shutdown(context.Background())
}

func TestInitTracer_SampleRates(t *testing.T) {
	for _, rate := range []float64{0.0, 0.5} {
		shutdown, err := InitTracer(context.Background(), enabledConfig(rate))
		require.NoError(t, err)
		_ = shutdown(context.Background())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("storefront")

	assert.Equal(t, "storefront", cfg.ServiceName)
	assert.False(t, cfg.Enabled, "tracing is opt-in")
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}

func TestTracer(t *testing.T) {
	tracer := Tracer("orders")
	require.NotNil(t, tracer)

	// Without an SDK provider installed the span may be a no-op; starting
	// and ending it just must not panic.
	_, span := tracer.Start(context.Background(), "CreateOrder")
	span.End()
}
