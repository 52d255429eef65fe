package channel

import (
	"github.com/google/uuid"

	"github.com/sawpanic/marketfeed/internal/pair"
)

// Subscription is an exchange-specific envelope containing one or more
// channels plus exchange-required handshake fields. The exact handshake
// JSON (method string, numeric id, op/args lists - spec.md §3) is produced
// per-venue by the adapter; this type holds the venue-agnostic shape every
// adapter builds its frame from.
type Subscription struct {
	Exchange Exchange
	Channels []*Channel

	// ID is an opaque per-subscription identifier. No adapter puts it in a
	// handshake frame (Kucoin's handshake carries its own random numeric
	// id). Generated once at construction so it is stable across
	// reconnects of the same logical subscription.
	ID string
}

// Exchange is re-exported so callers that only import channel don't also
// need pair for the common case of tagging a Subscription.
type Exchange = pair.Exchange

// NewSubscription builds an empty subscription for ex with a fresh
// correlation id.
func NewSubscription(ex Exchange) *Subscription {
	return &Subscription{Exchange: ex, ID: uuid.NewString()}
}

// AddChannel appends c to the subscription.
func (s *Subscription) AddChannel(c *Channel) {
	s.Channels = append(s.Channels, c)
}

// CountEntries sums CountEntries across every channel in the subscription.
func (s *Subscription) CountEntries() int {
	total := 0
	for _, c := range s.Channels {
		total += c.CountEntries()
	}
	return total
}

// IsEmpty reports whether every channel in the subscription has no pairs
// left (status channels, which carry none, don't count toward emptiness).
func (s *Subscription) IsEmpty() bool {
	for _, c := range s.Channels {
		if c.Kind == KindStatus {
			continue
		}
		if len(c.Pairs) > 0 {
			return false
		}
	}
	return true
}

// RemovePair removes p from whichever channel(s) carry it and reports
// whether the whole subscription is now empty - the boolean the
// single-stream state machine uses to decide whether to terminate
// (spec.md §4.B item 4, §4.C "RemovedPair" transition).
func (s *Subscription) RemovePair(p pair.Pair) (removedAny, subscriptionEmpty bool) {
	for _, c := range s.Channels {
		if removed, _ := c.RemovePair(p); removed {
			removedAny = true
		}
	}
	return removedAny, s.IsEmpty()
}

// AllPairs returns the de-duplicated union of pairs across every channel,
// in first-seen order.
func (s *Subscription) AllPairs() []pair.Pair {
	seen := make(map[string]struct{})
	var out []pair.Pair
	for _, c := range s.Channels {
		for _, p := range c.Pairs {
			key := p.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
