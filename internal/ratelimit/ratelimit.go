// Package ratelimit throttles REST instrument enumeration per exchange
// with golang.org/x/time/rate. Grounded on sawpanic-cryptorun's
// internal/net/ratelimit.Limiter, adapted from a per-host token-bucket map
// to a per-exchange one (SPEC_FULL.md §4.K's enumeration call sites key on
// pair.Exchange rather than an HTTP host string).
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sawpanic/marketfeed/internal/pair"
)

// Manager lazily creates and keeps one token-bucket limiter per exchange.
type Manager struct {
	mu       sync.Mutex
	limiters map[pair.Exchange]*rate.Limiter
	rps      float64
	burst    int
}

// NewManager builds a Manager where every exchange's limiter allows rps
// requests per second with the given burst capacity.
func NewManager(rps float64, burst int) *Manager {
	return &Manager{limiters: make(map[pair.Exchange]*rate.Limiter), rps: rps, burst: burst}
}

func (m *Manager) limiterFor(ex pair.Exchange) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[ex]
	if !ok {
		l = rate.NewLimiter(rate.Limit(m.rps), m.burst)
		m.limiters[ex] = l
	}
	return l
}

// SetLimit overrides ex's bucket with its own rps/burst, letting callers
// honor a per-venue REST rate (config.Venue.RatePerSecond/RateBurst)
// instead of the Manager-wide default every other exchange falls back to.
func (m *Manager) SetLimit(ex pair.Exchange, rps float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[ex] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until ex's bucket has a token or ctx is canceled.
func (m *Manager) Wait(ctx context.Context, ex pair.Exchange) error {
	return m.limiterFor(ex).Wait(ctx)
}

// Allow reports whether a request for ex is allowed right now, consuming a
// token if so, without blocking.
func (m *Manager) Allow(ex pair.Exchange) bool {
	return m.limiterFor(ex).Allow()
}
