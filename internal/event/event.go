// Package event defines the normalized, tagged-variant output every
// exchange adapter projects its wire frames into (spec.md §3).
package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/marketfeed/internal/pair"
)

// Event is the sealed sum type consumers receive. isEvent is unexported so
// the variant set cannot be extended outside this package - the Go
// equivalent of a closed tagged union (spec.md §9 "Sum types").
type Event interface {
	isEvent()
	Venue() pair.Exchange
}

// Side is the taker side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a single executed trade.
type Trade struct {
	Exchange pair.Exchange
	Pair     string
	Time     time.Time
	Side     Side
	Price    decimal.Decimal
	Amount   decimal.Decimal
	TradeID  string // optional; empty when the venue doesn't supply one
}

func (Trade) isEvent()               {}
func (t Trade) Venue() pair.Exchange { return t.Exchange }

// Quote is a top-of-book best bid/ask update.
type Quote struct {
	Exchange         pair.Exchange
	Pair             string
	AskAmount        decimal.Decimal
	AskPrice         decimal.Decimal
	BidAmount        decimal.Decimal
	BidPrice         decimal.Decimal
	OrderbookIDsTime OrderbookIDsTime
}

func (Quote) isEvent()               {}
func (q Quote) Venue() pair.Exchange { return q.Exchange }

// OrderbookIDsTime is a small record of optional timestamp/update-id
// bookkeeping attached to Quote and L2 events (spec.md §3).
type OrderbookIDsTime struct {
	Time          time.Time
	HasTime       bool
	FirstUpdateID int64
	HasFirstID    bool
	LastUpdateID  int64
	HasLastID     bool
}

// PriceLevel is a single row of an order book side.
type PriceLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// L2 is an order-book snapshot or diff, depending on the venue's channel.
type L2 struct {
	Exchange pair.Exchange
	Pair     string
	Time     time.Time
	Bids     []PriceLevel
	Asks     []PriceLevel
	UpdateID int64
	HasID    bool
}

func (L2) isEvent()               {}
func (l L2) Venue() pair.Exchange { return l.Exchange }

// GetQuote derives the best bid/ask from the first non-zero-amount row on
// each side, per spec.md §3 ("L2's get_quote derives the best bid/ask from
// non-zero-amount rows").
func (l L2) GetQuote() (Quote, bool) {
	bid, okBid := firstNonZero(l.Bids)
	ask, okAsk := firstNonZero(l.Asks)
	if !okBid || !okAsk {
		return Quote{}, false
	}
	idt := OrderbookIDsTime{Time: l.Time, HasTime: !l.Time.IsZero()}
	if l.HasID {
		idt.LastUpdateID = l.UpdateID
		idt.HasLastID = true
	}
	return Quote{
		Exchange:         l.Exchange,
		Pair:             l.Pair,
		AskAmount:        ask.Amount,
		AskPrice:         ask.Price,
		BidAmount:        bid.Amount,
		BidPrice:         bid.Price,
		OrderbookIDsTime: idt,
	}, true
}

func firstNonZero(levels []PriceLevel) (PriceLevel, bool) {
	for _, lvl := range levels {
		if !lvl.Amount.IsZero() {
			return lvl, true
		}
	}
	return PriceLevel{}, false
}

// DisconnectKind classifies why a Disconnect event was emitted.
type DisconnectKind int

const (
	DisconnectConnectionError DisconnectKind = iota
	DisconnectDeserialize
	DisconnectStreamRx
	DisconnectStreamTx
	DisconnectStreamTerminated
	DisconnectIdleTimeout
)

// Disconnect reports a transient failure on the streaming path. Per
// spec.md §7, these never escape as Go errors - they are ordinary Event
// values the consumer observes like any other.
type Disconnect struct {
	Exchange   pair.Exchange
	Kind       DisconnectKind
	Message    string
	RawMessage string
	HasRaw     bool
}

func (Disconnect) isEvent()               {}
func (d Disconnect) Venue() pair.Exchange { return d.Exchange }

// RemovedPair reports a pair the exchange rejected at runtime. The stream
// state machine prunes it from the owning subscription and continues.
type RemovedPair struct {
	Exchange   pair.Exchange
	BadPair    pair.Pair
	RawMessage string
}

func (RemovedPair) isEvent()               {}
func (r RemovedPair) Venue() pair.Exchange { return r.Exchange }

// Other is the catch-all for frames that don't fail to parse but also
// don't match any recognized variant (subscription ack, pong bookkeeping,
// heartbeats, ...).
type Other struct {
	Exchange pair.Exchange
	Kind     string
	Value    any
}

func (Other) isEvent()               {}
func (o Other) Venue() pair.Exchange { return o.Exchange }
