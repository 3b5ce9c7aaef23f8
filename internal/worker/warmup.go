package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

// WarmupJob pre-resolves frequently quoted legs so the shared distance
// cache is hot before customers ask for them.
type WarmupJob struct {
	config   WarmupConfig
	resolver distance.Resolver
	pricing  pricing.Repository
	logger   zerolog.Logger

	mu    sync.RWMutex
	stats WarmupStats
}

// WarmupStats tracks job statistics across runs.
type WarmupStats struct {
	TotalRuns       int64
	RoutesResolved  int64
	RoutesFailed    int64
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WarmupJobConfig holds configuration for creating a WarmupJob.
type WarmupJobConfig struct {
	Config WarmupConfig

	// Resolver is normally a *distance.Service backed by the shared Redis cache.
	Resolver distance.Resolver

	// Pricing is the stored pricing table checked by CheckPricing (optional).
	Pricing pricing.Repository

	Logger zerolog.Logger
}

// NewWarmupJob creates a new warm-up job.
func NewWarmupJob(cfg WarmupJobConfig) *WarmupJob {
	config := cfg.Config
	if len(config.Routes) == 0 {
		config.Routes = DefaultWarmupRoutes()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &WarmupJob{
		config:   config,
		resolver: cfg.Resolver,
		pricing:  cfg.Pricing,
		logger:   cfg.Logger,
	}
}

// WarmupResult contains the result of a warm-up run.
type WarmupResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalRoutes int
	Successful  int
	Failed      int
	Errors      []WarmupError
}

// WarmupError records a route that could not be resolved.
type WarmupError struct {
	Route string
	Error string
}

type routeResult struct {
	route WarmupRoute
	miles float64
	err   error
}

// Run resolves every configured route using a fixed pool of workers.
func (j *WarmupJob) Run(ctx context.Context) *WarmupResult {
	startTime := time.Now()
	routes := j.config.OrderedRoutes()
	result := &WarmupResult{
		StartTime:   startTime,
		TotalRoutes: len(routes),
	}

	j.logger.Info().
		Int("total_routes", result.TotalRoutes).
		Int("concurrency", j.config.Concurrency).
		Msg("starting distance warm-up job")

	routesChan := make(chan WarmupRoute, len(routes))
	resultsChan := make(chan routeResult, len(routes))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmupWorker(ctx, routesChan, resultsChan)
		}()
	}

	for _, r := range routes {
		routesChan <- r
	}
	close(routesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for rr := range resultsChan {
		if rr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, WarmupError{Route: rr.route.Name, Error: rr.err.Error()})
			continue
		}
		result.Successful++
		j.logger.Debug().
			Str("route", rr.route.Name).
			Float64("miles", rr.miles).
			Msg("route warmed")
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateStats(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("distance warm-up job completed")

	return result
}

func (j *WarmupJob) warmupWorker(ctx context.Context, routes <-chan WarmupRoute, results chan<- routeResult) {
	for route := range routes {
		select {
		case <-ctx.Done():
			results <- routeResult{route: route, err: ctx.Err()}
		default:
			results <- j.resolveRoute(ctx, route)
		}
	}
}

func (j *WarmupJob) resolveRoute(ctx context.Context, route WarmupRoute) routeResult {
	routeCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	meters, err := j.resolver.Resolve(routeCtx, route.Origin, route.Destination)
	if err != nil {
		return routeResult{route: route, err: err}
	}
	return routeResult{route: route, miles: distance.MetersToMiles(meters)}
}

func (j *WarmupJob) updateStats(result *WarmupResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stats.TotalRuns++
	j.stats.RoutesResolved += int64(result.Successful)
	j.stats.RoutesFailed += int64(result.Failed)
	j.stats.LastRunAt = result.EndTime
	j.stats.LastRunDuration = result.Duration
	j.stats.TotalDuration += result.Duration
}

// Stats returns a copy of the accumulated statistics.
func (j *WarmupJob) Stats() WarmupStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}

// HealthCheck resolves a single route to verify provider connectivity.
func (j *WarmupJob) HealthCheck(ctx context.Context) error {
	if len(j.config.Routes) == 0 {
		return errors.New("health check: no routes configured")
	}
	route := j.config.OrderedRoutes()[0]

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := j.resolver.Resolve(ctx, route.Origin, route.Destination); err != nil {
		return fmt.Errorf("health check %q: %w", route.Name, err)
	}
	return nil
}

// CheckPricing loads the stored pricing table and validates it.
func (j *WarmupJob) CheckPricing(ctx context.Context) error {
	if j.pricing == nil {
		return errors.New("pricing check: no repository configured")
	}
	cfg, err := j.pricing.Load(ctx)
	if err != nil {
		return fmt.Errorf("pricing check: load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("pricing check: %w", err)
	}
	j.logger.Info().
		Int("vehicles", len(cfg.Vehicles)).
		Msg("stored pricing table is valid")
	return nil
}
