// Package app assembles the fare engine's long-lived components from the
// environment so the API, worker and CLI share one wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/api/handler"
	"github.com/chauffeurline/fareengine/internal/database"
	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/distance/googlemaps"
	"github.com/chauffeurline/fareengine/internal/distance/openrouteservice"
	"github.com/chauffeurline/fareengine/internal/fare"
	"github.com/chauffeurline/fareengine/internal/geo"
	"github.com/chauffeurline/fareengine/internal/pricing"
	"github.com/chauffeurline/fareengine/internal/provider/resilience"
)

// Config holds the environment-derived settings shared by all binaries.
type Config struct {
	GoogleMapsAPIKey string
	ORSAPIKey        string

	// RedisAddr enables the shared distance cache when set.
	RedisAddr string

	DistanceCacheTTL time.Duration
	PricingCacheTTL  time.Duration

	// Timezone is where the night window is evaluated.
	Timezone string

	// MaxLegConcurrency bounds concurrent leg lookups per quote.
	MaxLegConcurrency int

	Database database.Config
}

// ConfigFromEnv reads GOOGLE_MAPS_API_KEY, ORS_API_KEY, REDIS_ADDR,
// DISTANCE_CACHE_TTL, PRICING_CACHE_TTL, PRICING_TIMEZONE,
// QUOTE_LEG_CONCURRENCY and the database variables.
func ConfigFromEnv() Config {
	return Config{
		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		ORSAPIKey:         os.Getenv("ORS_API_KEY"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		DistanceCacheTTL:  durationEnv("DISTANCE_CACHE_TTL", 6*time.Hour),
		PricingCacheTTL:   durationEnv("PRICING_CACHE_TTL", 5*time.Minute),
		Timezone:          stringEnv("PRICING_TIMEZONE", fare.DefaultTimezone),
		MaxLegConcurrency: intEnv("QUOTE_LEG_CONCURRENCY", 4),
		Database:          database.ConfigFromEnv(),
	}
}

// Components are the assembled services. Optional parts are nil when not
// configured.
type Components struct {
	Registry    *resilience.Registry
	Classifier  *geo.Classifier
	Distance    *distance.Service
	PricingRepo pricing.Repository
	Pricing     *pricing.Service
	Quoter      *fare.Quoter

	DB          *pgxpool.Pool
	Redis       *redis.Client
	SharedCache *distance.RedisCache
}

// Options carries process-level collaborators into Build.
type Options struct {
	Logger  zerolog.Logger
	Metrics *fare.Metrics

	// Provider replaces the configured distance providers (optional, used by tests).
	Provider distance.Provider
}

// Build assembles the components. A database that is configured but
// unreachable is an error; missing provider keys are only logged.
func Build(ctx context.Context, cfg Config, opts Options) (*Components, error) {
	log := opts.Logger
	c := &Components{
		Registry:   resilience.NewRegistry(),
		Classifier: geo.DefaultClassifier(),
	}

	if cfg.Database.Enabled() {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		c.DB = pool

		repo := pricing.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("ensure pricing schema: %w", err)
		}
		c.PricingRepo = repo
		log.Info().Msg("pricing repository connected")
	} else {
		log.Warn().Msg("no database configured - serving embedded fallback pricing")
	}

	c.Pricing = pricing.NewService(pricing.ServiceConfig{
		Repository: c.PricingRepo,
		Logger:     log,
		CacheTTL:   cfg.PricingCacheTTL,
	})

	provider := opts.Provider
	if provider == nil {
		var err error
		provider, err = c.providers(cfg, log)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	var shared distance.Cache
	if cfg.RedisAddr != "" {
		c.Redis = distance.NewRedis(cfg.RedisAddr)
		c.SharedCache = distance.NewRedisCache(c.Redis, "")
		shared = c.SharedCache
		log.Info().Str("addr", cfg.RedisAddr).Msg("shared distance cache enabled")
	}

	c.Distance = distance.NewService(distance.ServiceConfig{
		Provider:    provider,
		Logger:      log,
		CacheTTL:    cfg.DistanceCacheTTL,
		SharedCache: shared,
	})

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	c.Quoter, err = fare.NewQuoter(fare.QuoterConfig{
		Aggregator: fare.NewAggregator(fare.AggregatorConfig{
			Resolver:       c.Distance,
			Classifier:     c.Classifier,
			Logger:         log,
			MaxConcurrency: cfg.MaxLegConcurrency,
			Metrics:        opts.Metrics,
		}),
		Pricing:  c.Pricing,
		Location: loc,
		Metrics:  opts.Metrics,
		Logger:   log,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// providers builds the distance chain: Google Maps first since it handles
// addresses, then OpenRouteService for geocoded legs.
func (c *Components) providers(cfg Config, log zerolog.Logger) (distance.Provider, error) {
	var chain []distance.Provider

	if cfg.GoogleMapsAPIKey != "" {
		gm, err := googlemaps.NewClient(googlemaps.ClientConfig{
			APIKey:   cfg.GoogleMapsAPIKey,
			Registry: c.Registry,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("create google maps client: %w", err)
		}
		chain = append(chain, gm)
	}
	if cfg.ORSAPIKey != "" {
		chain = append(chain, openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.ORSAPIKey,
			Registry: c.Registry,
			Logger:   log,
		}))
	}

	if len(chain) == 0 {
		log.Warn().Msg("no distance provider configured - legs will be unresolved")
	}
	return distance.NewFallbackProvider(log, chain...), nil
}

// ReadinessChecks returns the dependencies the readiness probe pings.
func (c *Components) ReadinessChecks() map[string]handler.Pinger {
	checks := make(map[string]handler.Pinger)
	if c.DB != nil {
		checks["database"] = c.DB
	}
	if c.SharedCache != nil {
		checks["redis"] = c.SharedCache
	}
	return checks
}

// Close releases the database pool and Redis client.
func (c *Components) Close() error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		c.DB.Close()
	}
	return errors.Join(errs...)
}
