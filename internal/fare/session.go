package fare

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a caller whose computation was replaced by a newer submission.
var ErrSuperseded = errors.New("quote superseded by newer input")

// QuoteComputer computes a quote. *Quoter implements it.
type QuoteComputer interface {
	Quote(ctx context.Context, req Request) (*Quote, error)
}

// SessionConfig holds configuration for a booking session.
type SessionConfig struct {
	// Quoter computes quotes.
	Quoter QuoteComputer

	// Debounce delays each computation so rapid edits collapse into one (optional).
	Debounce time.Duration
}

// Session runs at most one quote computation at a time for a booking. A new
// submission cancels the one in flight, and superseded results are never
// published.
type Session struct {
	quoter   QuoteComputer
	debounce time.Duration

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	latest     *Quote
}

// NewSession creates a booking session.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		quoter:   cfg.Quoter,
		debounce: cfg.Debounce,
	}
}

// Submit cancels any in-flight computation and computes req. It returns
// ErrSuperseded if another Submit replaces this one before it finishes.
func (s *Session) Submit(ctx context.Context, req Request) (*Quote, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.mu.Unlock()

	if s.debounce > 0 {
		timer := time.NewTimer(s.debounce)
		select {
		case <-runCtx.Done():
			timer.Stop()
			return nil, s.finish(gen, nil, runCtx.Err())
		case <-timer.C:
		}
	}

	q, err := s.quoter.Quote(runCtx, req)
	if err := s.finish(gen, q, err); err != nil {
		return nil, err
	}
	return q, nil
}

// finish publishes q if gen is still current and maps the outcome.
func (s *Session) finish(gen uint64, q *Quote, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return err
	}
	s.latest = q
	return nil
}

// Cancel aborts the in-flight computation, if any. Its caller gets ErrSuperseded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Latest returns the most recently published quote, or nil.
func (s *Session) Latest() *Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}
