// Package api provides the HTTP API for the fare engine.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/api/handler"
	"github.com/chauffeurline/fareengine/internal/api/middleware"
	"github.com/chauffeurline/fareengine/internal/fare"
	"github.com/chauffeurline/fareengine/internal/geo"
	"github.com/chauffeurline/fareengine/internal/pricing"
	"github.com/chauffeurline/fareengine/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Quoter computes quotes for POST /v1/quotes:compute.
	Quoter fare.QuoteComputer

	// Pricing serves the pricing table and eligibility lookups.
	Pricing *pricing.Service

	// Classifier answers zone lookups (default: London catalogue).
	Classifier *geo.Classifier

	// Registry reports distance provider health on /v1/ops/status (optional).
	Registry *resilience.Registry

	// ReadinessChecks gate /v1/ops/ready (optional).
	ReadinessChecks map[string]handler.Pinger

	// TokenValidator guards ops endpoints. Nil rejects every ops request.
	TokenValidator middleware.TokenValidator

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "fareengine-api"
	}
	if cfg.Pricing == nil {
		cfg.Pricing = pricing.NewService(pricing.ServiceConfig{Logger: cfg.Logger})
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Pricing:   cfg.Pricing,
		Registry:  cfg.Registry,
		Checks:    cfg.ReadinessChecks,
	})
	quoteHandler := handler.NewQuoteHandler(cfg.Quoter, cfg.Logger)
	eligibilityHandler := handler.NewEligibilityHandler(cfg.Pricing)
	zoneHandler := handler.NewZoneHandler(cfg.Classifier)
	pricingHandler := handler.NewPricingHandler(cfg.Pricing, cfg.Logger)

	opsAuth := middleware.OpsAuth(cfg.TokenValidator)

	quoteRateLimit := middleware.RateLimitByIP(middleware.QuoteRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	adminRateLimit := middleware.RateLimitBySubject(middleware.AdminRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(opsAuth).Get("/status", opsHandler.SystemStatus)
		})

		// Quote computation fans out to distance providers.
		if cfg.Quoter != nil {
			r.With(quoteRateLimit, middleware.RequireJSON).Post("/quotes:compute", quoteHandler.ComputeQuote)
		}

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.With(middleware.RequireJSON).Post("/eligibility:check", eligibilityHandler.CheckEligibility)
			r.Get("/zones:classify", zoneHandler.ClassifyZone)
			r.Get("/pricing", pricingHandler.GetPricing)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(opsAuth)
			r.Use(adminRateLimit)
			r.Post("/pricing:reload", pricingHandler.ReloadPricing)
		})
	})

	return r
}
