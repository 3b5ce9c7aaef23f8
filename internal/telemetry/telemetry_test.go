package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chauffeurline/fareengine/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "fareengine-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestInit_EnabledInstallsProviders(t *testing.T) {
	ctx := context.Background()

	// The gRPC exporters connect lazily, so no collector is needed.
	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "fareengine-test",
		OTLPEndpoint: "127.0.0.1:1",
		Enabled:      true,
		SampleRatio:  5,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider.TracerProvider)
	assert.NotNil(t, provider.MeterProvider)

	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = provider.Shutdown(shutdownCtx)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("APP_ENV", "")

	cfg := telemetry.ConfigFromEnv("fareengine-api", "1.4.0")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.SampleRatio)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "fareengine-api", cfg.ServiceName)
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}
