package pricing

import "context"

// Repository defines the interface for pricing configuration storage.
type Repository interface {
	// Load retrieves the stored pricing configuration.
	// Returns ErrConfigNotFound when nothing is stored.
	Load(ctx context.Context) (*Config, error)

	// Save replaces the stored pricing configuration atomically.
	Save(ctx context.Context, cfg *Config) error
}
