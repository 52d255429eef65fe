// Package exchange declares the per-venue adapter contract (spec.md
// §4.B): the capability set a single-stream state machine drives through
// to open a websocket, normalize frames, and enumerate instruments. Each
// subpackage (binance, bybit, kucoin, coinbase, okex) implements Adapter.
package exchange

import (
	"context"
	"time"

	"github.com/sawpanic/marketfeed/internal/channel"
	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/httpx"
	"github.com/sawpanic/marketfeed/internal/pair"
)

// WSConn is the duplex websocket connection surface the state machine
// drives. *websocket.Conn from gorilla/websocket satisfies this directly;
// the interface exists so stream tests can substitute a fake.
type WSConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Instrument is a symbol enumerated off a venue's REST discovery endpoint,
// used by the builder/planner (component H) to materialize connection
// plans from a symbol universe rather than a hand-typed pair list.
type Instrument struct {
	Pair   pair.Pair
	Active bool
	// Rank orders instruments within a venue for ranked_weighted
	// assignment (spec.md §4.F), highest first. None of the adapters in
	// this module sets it: every enumerated instrument has Rank zero, so
	// the ranked order among them is not defined by any venue signal.
	Rank float64
}

// Adapter is the per-venue capability set spec.md §4.B requires.
type Adapter interface {
	// Name is the exchange tag this adapter implements.
	Name() pair.Exchange

	// StreamTimeout is the idle-timeout bound (spec.md §4.C, §6) - the
	// single-stream state machine reconnects if this much time passes
	// with no inbound frame.
	StreamTimeout() time.Duration

	// OpenWS dials the connection for sub, sending the handshake frame
	// immediately after the upgrade for venues that require one (Bybit,
	// Kucoin, Coinbase, Okex). Binance instead encodes its subscription
	// in the dial URL and sends no frame.
	OpenWS(ctx context.Context, sub *channel.Subscription) (WSConn, error)

	// ParseFrame projects one inbound text frame into the normalized
	// event model. It is total over legal frames; an unrecognized
	// top-level shape becomes event.Other rather than an error.
	ParseFrame(raw []byte) (event.Event, error)

	// BadPair inspects a free-text error message for a pair-specific
	// rejection (Coinbase, Okex report these as strings; Bybit embeds one
	// in ret_msg). Returns false when raw does not describe a bad pair.
	BadPair(raw string) (pair.Pair, bool)

	// RemovePair mutates sub to drop p and reports whether sub is now
	// empty, for the caller to decide whether to terminate the stream.
	RemovePair(sub *channel.Subscription, p pair.Pair) (subscriptionEmpty bool)

	// EnumerateInstruments lists the venue's tradable instruments via
	// REST, used by the builder to materialize "all symbols" plans. client
	// supplies the shared rate-limit/circuit-breaker policy (internal/httpx)
	// every venue's enumeration call goes through.
	EnumerateInstruments(ctx context.Context, client *httpx.Client) ([]Instrument, error)
}

// CapModel holds the per-exchange connection caps the builder (component
// H) must honor (spec.md §4.F table). MaxConns of 0 means
// implementation-defined / unbounded in this module.
type CapModel struct {
	MaxConns          int
	MaxStreamsPerConn int
}

// Caps returns the connection/stream caps for ex, per spec.md §4.F.
func Caps(ex pair.Exchange) CapModel {
	switch ex {
	case pair.Binance:
		return CapModel{MaxConns: 0, MaxStreamsPerConn: 1024}
	case pair.Bybit:
		return CapModel{MaxConns: 300, MaxStreamsPerConn: 10}
	case pair.Kucoin:
		return CapModel{MaxConns: 300, MaxStreamsPerConn: 1024}
	case pair.Coinbase, pair.Okex:
		return CapModel{MaxConns: 0, MaxStreamsPerConn: 0}
	default:
		return CapModel{}
	}
}
