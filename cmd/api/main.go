// Package main provides the entrypoint for the fare engine API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/api"
	"github.com/chauffeurline/fareengine/internal/api/middleware"
	"github.com/chauffeurline/fareengine/internal/app"
	"github.com/chauffeurline/fareengine/internal/auth"
	"github.com/chauffeurline/fareengine/internal/fare"
	"github.com/chauffeurline/fareengine/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fareengine-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting fare engine API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()

	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Float64("sample_ratio", telemetryCfg.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http metrics")
	}
	fareMetrics, err := fare.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize fare metrics")
	}

	components, err := app.Build(ctx, app.ConfigFromEnv(), app.Options{
		Logger:  log,
		Metrics: fareMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble services")
	}
	defer func() {
		if closeErr := components.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close services")
		}
	}()

	routerCfg := api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         httpMetrics,
		Quoter:          components.Quoter,
		Pricing:         components.Pricing,
		Classifier:      components.Classifier,
		Registry:        components.Registry,
		ReadinessChecks: components.ReadinessChecks(),
		RequireTLS:      os.Getenv("REQUIRE_TLS") == "true",
	}

	if key := os.Getenv("OPS_JWT_SIGNING_KEY"); key != "" {
		tokens, tokenErr := auth.NewTokenService(auth.TokenConfig{SigningKey: key})
		if tokenErr != nil {
			log.Fatal().Err(tokenErr).Msg("failed to initialize ops token service")
		}
		routerCfg.TokenValidator = tokens
	} else {
		log.Warn().Msg("OPS_JWT_SIGNING_KEY not set - ops endpoints will reject every request")
	}

	router := api.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
