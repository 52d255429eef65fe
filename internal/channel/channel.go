// Package channel implements the per-exchange channel and subscription
// model of spec.md §3-4.C: a set of stream kinds, each carrying an ordered
// pair list, grouped into an exchange-specific handshake envelope.
package channel

import (
	"github.com/sawpanic/marketfeed/internal/pair"
)

// Kind is the stream-kind discriminant of a Channel. Every variant except
// Status carries an ordered list of pairs (spec.md §3).
type Kind int

const (
	KindTrade Kind = iota
	KindQuote
	KindL2
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTrade:
		return "trade"
	case KindQuote:
		return "quote"
	case KindL2:
		return "l2"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Channel is a category of stream subscribed to for a set of pairs. It is
// the "struct + type-tag enum" realization of spec.md's per-exchange
// channel sum type (spec.md §9 "Sum types").
type Channel struct {
	Exchange pair.Exchange
	Kind     Kind
	Pairs    []pair.Pair

	// L2Depth and L2Speed are only meaningful when Kind == KindL2.
	L2Depth int
	L2Speed string
}

// New builds a channel. Every pair must be legal for Exchange - callers
// should validate with pair.ToNative before constructing a Channel, since
// the invariant "a channel's pairs are all legal for its exchange"
// (spec.md §3) is enforced at the builder, not here.
func New(ex pair.Exchange, kind Kind, pairs []pair.Pair) *Channel {
	cp := make([]pair.Pair, len(pairs))
	copy(cp, pairs)
	return &Channel{Exchange: ex, Kind: kind, Pairs: cp}
}

// NewL2 builds an L2 channel with a depth and update-speed tag.
func NewL2(ex pair.Exchange, pairs []pair.Pair, depth int, speed string) *Channel {
	c := New(ex, KindL2, pairs)
	c.L2Depth = depth
	c.L2Speed = speed
	return c
}

// CountEntries returns the number of pairs the channel carries.
func (c *Channel) CountEntries() int {
	return len(c.Pairs)
}

// SplitBySize partitions the channel's pairs into ceil(len/n) sub-channels
// of at most n pairs each, per spec.md §4.C's split-by-size operation. A
// Status channel (no pairs) is returned as a single-element slice
// unchanged.
func (c *Channel) SplitBySize(n int) []*Channel {
	if c.Kind == KindStatus || n <= 0 || len(c.Pairs) == 0 {
		return []*Channel{c}
	}
	if n > len(c.Pairs) {
		n = len(c.Pairs)
	}

	var out []*Channel
	for i := 0; i < len(c.Pairs); i += n {
		end := i + n
		if end > len(c.Pairs) {
			end = len(c.Pairs)
		}
		chunk := &Channel{
			Exchange: c.Exchange,
			Kind:     c.Kind,
			Pairs:    append([]pair.Pair(nil), c.Pairs[i:end]...),
			L2Depth:  c.L2Depth,
			L2Speed:  c.L2Speed,
		}
		out = append(out, chunk)
	}
	return out
}

// RemovePair removes p from the channel's pair list and reports whether
// the channel is now empty, per spec.md §4.B item 4 / §8's boundary
// property ("remove_pair(x) returns true iff after removal the channel
// pair list is empty"). Removing a pair not present is a no-op and
// reports whatever emptiness already held.
func (c *Channel) RemovePair(p pair.Pair) (removed, empty bool) {
	for i, existing := range c.Pairs {
		if existing.Equal(p) {
			c.Pairs = append(c.Pairs[:i], c.Pairs[i+1:]...)
			removed = true
			break
		}
	}
	return removed, len(c.Pairs) == 0
}
