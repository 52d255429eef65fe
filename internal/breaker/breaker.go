// Package breaker wraps github.com/sony/gobreaker for REST instrument
// enumeration: internal/httpx runs every enumeration GET through one
// breaker per exchange. Websocket dials do not go through it. Grounded directly on
// sawpanic-cryptorun/infra/breakers/breakers.go, generalized from a single
// any-returning Execute to a typed wrapper per named circuit so every
// venue gets its own trip state instead of sharing one global breaker.
package breaker

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker wraps one named circuit. The trip policy matches the teacher's:
// three consecutive failures trips immediately; otherwise a 5% failure
// rate over a minimum sample of 20 requests trips.
type Breaker struct {
	cb *cb.CircuitBreaker
}

// New builds a breaker with the given name, which gobreaker carries in its
// Settings; internal/httpx names each one after the exchange it guards.
func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the circuit, returning gobreaker's own
// ErrOpenState/ErrTooManyRequests when the circuit is open.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// State reports the circuit's current state for telemetry/health checks.
func (b *Breaker) State() cb.State { return b.cb.State() }
