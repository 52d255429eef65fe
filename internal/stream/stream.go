// Package stream implements the single-stream state machine (spec.md §4.C,
// §6), grounded on original_source/src/clients/ws/single.rs's WsStream<T>:
// a poll-based state machine there, translated to a goroutine driving a
// blocking read loop here. Connection loss, idle timeout, and deserialize
// failure all route through the same retry-count accounting; a pair the
// venue rejects at runtime is pruned from the subscription without ever
// touching the retry counter, win or lose.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sawpanic/marketfeed/internal/channel"
	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/exchange"
	"github.com/sawpanic/marketfeed/internal/xerrors"
)

// State is the single-stream lifecycle state (spec.md §4.C).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config tunes a Stream's retry and backoff behavior.
type Config struct {
	// MaxRetries bounds the cumulative retry counter across the stream's
	// whole lifetime; nil means unbounded (original_source's
	// config.max_retries: Option<u64>).
	MaxRetries *uint64
	// ReconnectDelay is the pause before each reconnect attempt.
	ReconnectDelay time.Duration
}

// DefaultConfig matches the reconnect cadence sawpanic-cryptorun's
// BinanceAdapter.StreamTrades uses after a connection failure.
func DefaultConfig() Config {
	return Config{ReconnectDelay: 5 * time.Second}
}

// Stream drives one exchange connection through its lifecycle, emitting
// normalized events plus Disconnect events for transient failures. It is
// the Go analogue of a single Rust Stream<Item = CombinedWsMessage>.
type Stream struct {
	adapter      exchange.Adapter
	subscription *channel.Subscription
	cfg          Config

	state      State
	retryCount uint64
}

// New builds a Stream for sub against adapter.
func New(adapter exchange.Adapter, sub *channel.Subscription, cfg Config) *Stream {
	return &Stream{adapter: adapter, subscription: sub, cfg: cfg, state: StateDisconnected}
}

// State reports the stream's current lifecycle state.
func (s *Stream) State() State { return s.state }

// RetryCount reports the stream's current retry counter, for telemetry
// sampling (SPEC_FULL.md §4.I's marketfeed_stream_retry_count gauge). Best-
// effort like State: read from outside the stream's own goroutine, it may
// lag by one event.
func (s *Stream) RetryCount() uint64 { return s.retryCount }

// Run drives the stream until ctx is canceled or the retry budget is
// exhausted, sending every normalized event (including Disconnects) to the
// returned channel. The channel is closed when Run's goroutine exits.
func (s *Stream) Run(ctx context.Context) <-chan event.Event {
	out := make(chan event.Event)
	go s.run(ctx, out)
	return out
}

func (s *Stream) run(ctx context.Context, out chan<- event.Event) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}

		s.state = StateConnecting
		conn, err := s.adapter.OpenWS(ctx, s.subscription)
		if err != nil {
			if !s.emitRetry(ctx, out, xerrors.KindConnection, err.Error(), "") {
				return
			}
			if !s.sleepBackoff(ctx) {
				return
			}
			continue
		}

		s.state = StateConnected

		reconnect := s.readLoop(ctx, conn, out)
		conn.Close()
		if !reconnect {
			return
		}
		s.state = StateReconnecting
		if !s.sleepBackoff(ctx) {
			return
		}
	}
}

// readLoop drives one connection's frames until it needs to reconnect or
// terminate. It returns true to reconnect, false to stop entirely.
func (s *Stream) readLoop(ctx context.Context, conn exchange.WSConn, out chan<- event.Event) bool {
	timeout := s.adapter.StreamTimeout()

	for {
		if ctx.Err() != nil {
			return false
		}

		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return s.emitRetry(ctx, out, xerrors.KindConnection, fmt.Sprintf("set read deadline: %v", err), "")
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				return s.emitRetry(ctx, out, xerrors.KindIdleTimeout, "idle timeout", "")
			}
			if isCloseError(err) {
				return s.emitRetry(ctx, out, xerrors.KindStreamTerminated, err.Error(), "")
			}
			return s.emitRetry(ctx, out, xerrors.KindStreamRx, err.Error(), "")
		}

		ev, perr := s.adapter.ParseFrame(raw)
		if perr != nil {
			if !s.emitRetry(ctx, out, xerrors.KindDeserialize, perr.Error(), string(raw)) {
				return false
			}
			continue
		}

		if rp, ok := ev.(event.RemovedPair); ok {
			if !sendEvent(ctx, out, ev) {
				return false
			}
			empty := s.adapter.RemovePair(s.subscription, rp.BadPair)
			if empty {
				s.state = StateTerminated
				return false
			}
			// RemovedPair never touches the retry counter (spec.md §8:
			// "retry_count never increments on RemovedPair events").
			continue
		}

		if !sendEvent(ctx, out, ev) {
			return false
		}
	}
}

// emitRetry sends a Disconnect event for kind, increments the retry
// counter, and reports whether the caller should reconnect (true) or
// terminate (false) because the retry budget is exhausted.
func (s *Stream) emitRetry(ctx context.Context, out chan<- event.Event, kind xerrors.Kind, msg, raw string) bool {
	disc := event.Disconnect{
		Exchange:   s.adapter.Name(),
		Kind:       disconnectKindFor(kind),
		Message:    msg,
		RawMessage: raw,
		HasRaw:     raw != "",
	}
	if !sendEvent(ctx, out, disc) {
		return false
	}

	s.retryCount++
	if s.retryExceeded() {
		s.state = StateTerminated
		return false
	}
	return true
}

func (s *Stream) retryExceeded() bool {
	return s.cfg.MaxRetries != nil && s.retryCount > *s.cfg.MaxRetries
}

func (s *Stream) sleepBackoff(ctx context.Context) bool {
	if s.cfg.ReconnectDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.ReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func sendEvent(ctx context.Context, out chan<- event.Event, ev event.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}

func disconnectKindFor(k xerrors.Kind) event.DisconnectKind {
	switch k {
	case xerrors.KindConnection:
		return event.DisconnectConnectionError
	case xerrors.KindDeserialize:
		return event.DisconnectDeserialize
	case xerrors.KindStreamRx:
		return event.DisconnectStreamRx
	case xerrors.KindStreamTx:
		return event.DisconnectStreamTx
	case xerrors.KindStreamTerminated:
		return event.DisconnectStreamTerminated
	case xerrors.KindIdleTimeout:
		return event.DisconnectIdleTimeout
	default:
		return event.DisconnectConnectionError
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isCloseError(err error) bool {
	return err != nil && err.Error() == "EOF"
}
