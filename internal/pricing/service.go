package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Source describes where a pricing snapshot came from.
type Source string

const (
	// SourceRepository means the stored configuration was loaded.
	SourceRepository Source = "repository"
	// SourceFallback means the injected default table is in use.
	SourceFallback Source = "fallback"
)

// Snapshot is the pricing configuration in effect for a computation.
type Snapshot struct {
	Config   *Config   `json:"config"`
	Source   Source    `json:"source"`
	Degraded bool      `json:"degraded"`
	Reason   string    `json:"reason,omitempty"`
	LoadedAt time.Time `json:"loadedAt"`
}

// ServiceConfig holds configuration for the pricing service.
type ServiceConfig struct {
	// Repository is the pricing store (optional; nil always uses Fallback).
	Repository Repository

	// Fallback is served when the repository is unavailable (default: DefaultConfig()).
	Fallback *Config

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a loaded configuration is reused (default: 5 minutes).
	CacheTTL time.Duration

	// FailureTTL is how long a fallback snapshot is reused before retrying
	// the repository (default: 15 seconds).
	FailureTTL time.Duration

	// LoadTimeout bounds a single repository load (default: 5 seconds).
	LoadTimeout time.Duration
}

// Service provides the current pricing configuration with caching and
// degraded-mode fallback. Current never fails.
type Service struct {
	repo        Repository
	fallback    *Config
	logger      zerolog.Logger
	cacheTTL    time.Duration
	failureTTL  time.Duration
	loadTimeout time.Duration

	group singleflight.Group

	mu          sync.RWMutex
	cached      *Snapshot
	cacheExpiry time.Time
	generation  uint64
}

// NewService creates a new pricing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	failureTTL := cfg.FailureTTL
	if failureTTL == 0 {
		failureTTL = 15 * time.Second
	}

	loadTimeout := cfg.LoadTimeout
	if loadTimeout == 0 {
		loadTimeout = 5 * time.Second
	}

	fallback := cfg.Fallback
	if fallback == nil {
		fallback = DefaultConfig()
	}

	return &Service{
		repo:        cfg.Repository,
		fallback:    fallback.Clone(),
		logger:      cfg.Logger,
		cacheTTL:    cacheTTL,
		failureTTL:  failureTTL,
		loadTimeout: loadTimeout,
	}
}

// Current returns the pricing snapshot in effect. On repository failure or an
// invalid stored configuration it returns the fallback table marked degraded.
func (s *Service) Current(ctx context.Context) Snapshot {
	s.mu.RLock()
	if s.cached != nil && time.Now().Before(s.cacheExpiry) {
		snap := *s.cached
		s.mu.RUnlock()
		return snap
	}
	s.mu.RUnlock()

	return s.refresh(ctx)
}

// Reload drops the cached snapshot and fetches a fresh one.
func (s *Service) Reload(ctx context.Context) Snapshot {
	s.InvalidateCache()
	return s.refresh(ctx)
}

// InvalidateCache clears the cached snapshot, forcing a refresh on next access.
// A load already in flight is not published.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.cacheExpiry = time.Time{}
	s.generation++
	s.group.Forget(loadKey)
}

// Fallback returns a copy of the injected fallback table.
func (s *Service) Fallback() *Config {
	return s.fallback.Clone()
}

const loadKey = "pricing"

// refresh loads through a single shared lookup that outlives its callers, so a
// cancelled request neither aborts the load nor caches its own error. A caller
// that gives up early gets the last known snapshot, which is never stored.
func (s *Service) refresh(ctx context.Context) Snapshot {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(loadKey, func() (interface{}, error) {
		snap, ttl := s.load(loadCtx)

		s.mu.Lock()
		if s.generation == gen {
			s.cached = &snap
			s.cacheExpiry = snap.LoadedAt.Add(ttl)
		}
		s.mu.Unlock()
		return snap, nil
	})

	select {
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		return snap
	case <-ctx.Done():
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.cached != nil {
			return *s.cached
		}
		return s.degraded(time.Now(), "pricing lookup cancelled")
	}
}

func (s *Service) load(ctx context.Context) (Snapshot, time.Duration) {
	now := time.Now()

	if s.repo == nil {
		return s.degraded(now, "no pricing repository configured"), s.cacheTTL
	}

	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	cfg, err := s.repo.Load(ctx)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		reason := "pricing config unavailable"
		if errors.Is(err, ErrInvalidConfig) {
			reason = "stored pricing config is invalid"
		}
		s.logger.Warn().Err(err).Msg("using fallback pricing")
		return s.degraded(now, reason), s.failureTTL
	}

	s.logger.Debug().
		Int("vehicles", len(cfg.Vehicles)).
		Time("updated_at", cfg.UpdatedAt).
		Msg("loaded pricing config")

	return Snapshot{
		Config:   cfg,
		Source:   SourceRepository,
		LoadedAt: now,
	}, s.cacheTTL
}

func (s *Service) degraded(now time.Time, reason string) Snapshot {
	return Snapshot{
		Config:   s.fallback.Clone(),
		Source:   SourceFallback,
		Degraded: true,
		Reason:   reason,
		LoadedAt: now,
	}
}
