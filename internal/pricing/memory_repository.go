package pricing

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository for
// tests and database-less deployments.
type InMemoryRepository struct {
	mu  sync.RWMutex
	cfg *Config
	err error
}

// NewInMemoryRepository creates a repository holding cfg (which may be nil).
func NewInMemoryRepository(cfg *Config) *InMemoryRepository {
	r := &InMemoryRepository{}
	if cfg != nil {
		r.cfg = cfg.Clone()
	}
	return r
}

// Load returns a copy of the stored configuration.
func (r *InMemoryRepository) Load(ctx context.Context) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.err != nil {
		return nil, r.err
	}
	if r.cfg == nil {
		return nil, ErrConfigNotFound
	}
	return r.cfg.Clone(), nil
}

// Save stores a copy of cfg.
func (r *InMemoryRepository) Save(ctx context.Context, cfg *Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.cfg = cfg.Clone()
	r.cfg.UpdatedAt = time.Now()
	return nil
}

// SetError makes subsequent calls fail with err (nil clears it).
func (r *InMemoryRepository) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
