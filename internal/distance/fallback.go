package distance

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// FallbackProvider tries providers in order and returns the first distance resolved.
type FallbackProvider struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewFallbackProvider creates a provider chain. Nil providers are skipped.
func NewFallbackProvider(logger zerolog.Logger, providers ...Provider) *FallbackProvider {
	chain := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	return &FallbackProvider{providers: chain, logger: logger}
}

// Name returns the chained provider names.
func (f *FallbackProvider) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

// Resolve asks each provider in turn. Context errors stop the chain.
func (f *FallbackProvider) Resolve(ctx context.Context, origin, destination Waypoint) (float64, error) {
	if len(f.providers) == 0 {
		return 0, ErrUnresolved
	}

	var errs []error
	for _, p := range f.providers {
		meters, err := p.Resolve(ctx, origin, destination)
		if err == nil {
			return meters, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !errors.Is(err, ErrUnsupportedWaypoint) {
			f.logger.Warn().Err(err).
				Str("provider", p.Name()).
				Msg("distance provider failed, trying next")
		}
		errs = append(errs, err)
	}

	return 0, errors.Join(errs...)
}
