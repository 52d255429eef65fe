// Package dispatch implements the multithreaded dispatcher of spec.md
// §4.E: streams are chunked into groups of roughly equal size, one worker
// goroutine drives each group's fan-in, and every worker forwards into one
// shared sink channel. Grounded on original_source/src/clients/ws/mutli.rs's
// spawn_multithreaded (chunk size ⌈N/T⌉, one OS thread per chunk, a shared
// tokio unbounded channel) and on sawpanic-cryptorun's
// internal/infrastructure/async.Pipeline, which approximates an unbounded
// channel with a generously buffered one (BufferSize) rather than an
// unbounded queue - the same approximation this package makes, since a Go
// channel has no literal unbounded variant.
package dispatch

import (
	"context"
	"sync"

	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/multiplex"
)

// DefaultSinkBuffer is the sink channel's buffer size when Config.SinkBuffer
// is left zero, matching async.DefaultPipelineConfig's BufferSize order of
// magnitude for a high-throughput fan-in.
const DefaultSinkBuffer = 4096

// Config tunes the dispatcher's worker count and sink buffering.
type Config struct {
	// Workers is the number of worker goroutines (T in spec.md §4.E).
	// Defaults to 1 if <= 0.
	Workers int
	// SinkBuffer is the shared output channel's buffer size. Defaults to
	// DefaultSinkBuffer if <= 0.
	SinkBuffer int
}

// Run partitions children into ⌈len(children)/Workers⌉-sized groups, runs
// each group as its own multiplex.Multiplexer on a dedicated goroutine, and
// forwards every event into one shared sink channel. The sink closes once
// every worker has finished draining its group (spec.md §4.E: "Termination
// of the sink is when all workers have exited").
func Run(ctx context.Context, children []<-chan event.Event, cfg Config) <-chan event.Event {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SinkBuffer <= 0 {
		cfg.SinkBuffer = DefaultSinkBuffer
	}

	sink := make(chan event.Event, cfg.SinkBuffer)
	groups := chunk(children, cfg.Workers)

	var wg sync.WaitGroup
	for _, group := range groups {
		wg.Add(1)
		go func(group []<-chan event.Event) {
			defer wg.Done()
			worker(ctx, group, sink)
		}(group)
	}

	go func() {
		wg.Wait()
		close(sink)
	}()

	return sink
}

// worker drains one group's fan-in into sink. A stream ending or failing in
// one worker's group never reaches another worker - each runs its own
// multiplexer and its own goroutines (spec.md §4.E: "Workers are
// independent; failure of one does not affect others"). A panic is not
// recovered here and ends the process.
func worker(ctx context.Context, group []<-chan event.Event, sink chan<- event.Event) {
	m := multiplex.New(group...)
	for {
		select {
		case ev, ok := <-m.Events():
			if !ok {
				return
			}
			select {
			case sink <- ev:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// chunk partitions items into ⌈len(items)/n⌉-sized groups, per spec.md
// §4.E's grouping rule (the same ceiling-division shape as
// channel.Channel.SplitBySize, applied here to streams instead of pairs).
func chunk(items []<-chan event.Event, n int) [][]<-chan event.Event {
	if len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	groupSize := (len(items) + n - 1) / n

	var groups [][]<-chan event.Event
	for i := 0; i < len(items); i += groupSize {
		end := i + groupSize
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[i:end])
	}
	return groups
}
