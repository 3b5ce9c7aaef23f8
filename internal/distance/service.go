package distance

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Cache is a shared second-level distance cache (for example Redis) that
// outlives a single process.
type Cache interface {
	Get(ctx context.Context, key string) (meters float64, ok bool, err error)
	Set(ctx context.Context, key string, meters float64, ttl time.Duration) error
}

// ServiceConfig holds configuration for the distance service.
type ServiceConfig struct {
	// Provider is the upstream distance source.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache resolved distances (default: 6 hours).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.00001 ~ 1m).
	// Coordinate pairs within the same grid cells share cached distances.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 24 hours).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often to clean up expired entries (default: 10 minutes).
	CleanupInterval time.Duration

	// SharedCache is consulted after the in-process cache (optional).
	SharedCache Cache

	// SharedCacheTTL is the expiry used for SharedCache writes (default: CacheTTL).
	SharedCacheTTL time.Duration
}

// Service resolves leg distances through a provider with caching,
// stale-if-error fallback and de-duplication of identical in-flight lookups.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration
	shared          Cache
	sharedTTL       time.Duration

	group singleflight.Group

	mu          sync.RWMutex
	cache       map[string]*cachedDistance
	lastCleanup time.Time
}

type cachedDistance struct {
	meters    float64
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new distance service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 6 * time.Hour
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.00001
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 24 * time.Hour
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	sharedTTL := cfg.SharedCacheTTL
	if sharedTTL == 0 {
		sharedTTL = cacheTTL
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		shared:          cfg.SharedCache,
		sharedTTL:       sharedTTL,
		cache:           make(map[string]*cachedDistance),
	}
}

// Resolve returns the driving distance in meters between two waypoints.
// Uses cached data if available and not expired.
func (s *Service) Resolve(ctx context.Context, origin, destination Waypoint) (float64, error) {
	if err := s.validate(origin, "ORIGIN"); err != nil {
		return 0, err
	}
	if err := s.validate(destination, "DESTINATION"); err != nil {
		return 0, err
	}

	key := s.CacheKey(origin, destination)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.logger.Debug().
			Str("cache_key", key).
			Msg("cache hit for leg distance")
		return cached.meters, nil
	}
	s.mu.RUnlock()

	// The shared lookup outlives any single caller; callers stop waiting on
	// cancellation and the result only lands in the cache.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.fetch(fetchCtx, origin, destination, key)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		meters, _ := res.Val.(float64)
		return meters, nil
	}
}

func (s *Service) fetch(ctx context.Context, origin, destination Waypoint, key string) (float64, error) {
	if s.shared != nil {
		meters, ok, err := s.shared.Get(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("cache_key", key).
				Msg("shared distance cache read failed")
		} else if ok {
			s.store(key, meters)
			s.logger.Debug().
				Str("cache_key", key).
				Msg("shared cache hit for leg distance")
			return meters, nil
		}
	}

	s.logger.Debug().
		Str("origin", origin.Label).
		Str("destination", destination.Label).
		Bool("coordinates", origin.HasCoordinate() && destination.HasCoordinate()).
		Str("provider", s.provider.Name()).
		Msg("fetching leg distance from provider")

	meters, err := s.provider.Resolve(ctx, origin, destination)
	if err != nil {
		s.logger.Error().Err(err).
			Str("origin", origin.Label).
			Str("destination", destination.Label).
			Msg("failed to fetch leg distance")

		// Stale-if-error
		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Str("cache_key", key).
				Msg("serving stale leg distance due to provider error")
			return cached.meters, nil
		}

		return 0, err
	}

	s.store(key, meters)

	if s.shared != nil {
		if err := s.shared.Set(ctx, key, meters, s.sharedTTL); err != nil {
			s.logger.Warn().Err(err).
				Str("cache_key", key).
				Msg("shared distance cache write failed")
		}
	}

	return meters, nil
}

func (s *Service) store(key string, meters float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.cache[key] = &cachedDistance{
		meters:    meters,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.cleanupIfNeeded(now)
}

func (s *Service) validate(w Waypoint, side string) error {
	if w.Empty() {
		return &Error{
			Provider: s.provider.Name(),
			Code:     "EMPTY_" + side,
			Message:  "waypoint has neither address nor coordinate",
			Err:      ErrUnresolved,
		}
	}
	if w.Coordinate != nil {
		if err := w.Coordinate.Validate(); err != nil {
			return &Error{
				Provider: s.provider.Name(),
				Code:     "INVALID_" + side,
				Message:  "invalid " + strings.ToLower(side) + " coordinates",
				Err:      ErrInvalidCoordinates,
			}
		}
	}
	return nil
}

// CacheKey generates the cache key for a leg. Coordinate pairs are quantised
// to grid cells; anything else is keyed on the normalised address labels.
// Format: c:{oLat},{oLng}:{dLat},{dLng} or a:{origin}|{destination}.
func (s *Service) CacheKey(origin, destination Waypoint) string {
	if origin.HasCoordinate() && destination.HasCoordinate() {
		return fmt.Sprintf("c:%d,%d:%d,%d",
			s.cell(origin.Coordinate.Lat), s.cell(origin.Coordinate.Lng),
			s.cell(destination.Coordinate.Lat), s.cell(destination.Coordinate.Lng),
		)
	}
	return "a:" + normaliseLabel(origin.Label) + "|" + normaliseLabel(destination.Label)
}

func (s *Service) cell(deg float64) int64 {
	return int64(math.Floor(deg / s.cacheGridSize))
}

func normaliseLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// cleanupIfNeeded removes expired entries if cleanup interval has passed.
// Callers must hold the write lock.
func (s *Service) cleanupIfNeeded(now time.Time) {
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.cache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired distance cache entries")
	}
}

// InvalidateCache clears all in-process cached data.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedDistance)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	stale := 0

	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		} else if now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
			stale++
		}
	}

	return CacheStats{
		TotalEntries: len(s.cache),
		FreshEntries: fresh,
		StaleEntries: stale,
		Provider:     s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int    `json:"totalEntries"`
	FreshEntries int    `json:"freshEntries"`
	StaleEntries int    `json:"staleEntries"`
	Provider     string `json:"provider"`
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}
