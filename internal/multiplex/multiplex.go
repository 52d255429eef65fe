// Package multiplex implements the multi-stream fan-in of spec.md §4.D,
// grounded on original_source/src/clients/ws/mutli.rs's MutliWsStream:
// select_all over child streams with a live-child counter, closing the
// combined sequence exactly once every child has closed.
package multiplex

import (
	"sync"
	"sync/atomic"

	"github.com/sawpanic/marketfeed/internal/event"
)

// Multiplexer fans in many event channels (typically each a
// (*stream.Stream).Run output) into one ordered sequence. No ordering is
// guaranteed across children; each child's own order is preserved.
type Multiplexer struct {
	out  chan event.Event
	live int64
}

// New starts pumping every child into the returned Multiplexer. Each
// channel is read by exactly one goroutine, so children must not already
// be consumed elsewhere.
func New(children ...<-chan event.Event) *Multiplexer {
	m := &Multiplexer{out: make(chan event.Event), live: int64(len(children))}
	if len(children) == 0 {
		close(m.out)
		return m
	}

	var wg sync.WaitGroup
	for _, c := range children {
		wg.Add(1)
		go func(c <-chan event.Event) {
			defer wg.Done()
			for ev := range c {
				m.out <- ev
			}
			atomic.AddInt64(&m.live, -1)
		}(c)
	}
	go func() {
		wg.Wait()
		close(m.out)
	}()
	return m
}

// Events is the fanned-in sequence. It closes once every child has
// closed, never before (spec.md §8: "emits terminal None exactly once and
// only after all children have emitted terminal None").
func (m *Multiplexer) Events() <-chan event.Event { return m.out }

// LiveStreamCount reports how many immediate children have not yet
// terminated. For a Multiplexer built directly from streams this is the
// leaf count; for one built via CombineOther it counts the two merged
// multiplexers themselves, since each has exactly one active reader on
// its own Events() channel (a channel cannot safely gain a second
// concurrent consumer, unlike Rust's Pin<Box<dyn Stream>> which combine_
// other folds into a single owned select_all).
func (m *Multiplexer) LiveStreamCount() int64 { return atomic.LoadInt64(&m.live) }

// CombineOther merges a and b into a new Multiplexer whose child set is
// their union, per spec.md §4.D's combine_other. a and b must not be used
// directly after this call - ownership of their Events() channels passes
// to the returned Multiplexer.
func CombineOther(a, b *Multiplexer) *Multiplexer {
	return New(a.Events(), b.Events())
}
