package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/pair"
	"github.com/sawpanic/marketfeed/internal/stream"
	"github.com/sawpanic/marketfeed/internal/telemetry"
)

// trackedStream pairs a running stream.Stream with the exchange it belongs
// to, for retry-count sampling (stream.Stream itself has no Adapter
// accessor - the CLI is the one place that already knows both).
type trackedStream struct {
	exchange pair.Exchange
	stream   *stream.Stream
}

// sampleRetryCounts polls every stream's retry counter into reg's gauge
// once a second until ctx is canceled. Plain ticker polling, not an event-
// driven push, since stream.Stream exposes RetryCount as a best-effort
// snapshot rather than a notification.
func sampleRetryCounts(ctx context.Context, streams []trackedStream, reg *telemetry.Registry) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ts := range streams {
				reg.SetStreamRetryCount(string(ts.exchange), ts.stream.RetryCount())
			}
		}
	}
}

// envelope is the NDJSON shape printed to stdout for every event, tagging
// the variant the way event.Event's sealed interface can't express on the
// wire by itself.
type envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// printEvents drains out until it closes or ctx is canceled, writing one
// NDJSON line per event to stdout and updating reg's counters/gauges along
// the way.
func printEvents(ctx context.Context, out <-chan event.Event, reg *telemetry.Registry) error {
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-out:
			if !ok {
				return nil
			}
			recordTelemetry(reg, ev)
			reg.SetQueueDepth(len(out))
			if err := enc.Encode(toEnvelope(ev)); err != nil {
				return err
			}
		}
	}
}

func toEnvelope(ev event.Event) envelope {
	now := time.Now()
	switch e := ev.(type) {
	case event.Trade:
		return envelope{Type: "trade", Time: now, Data: e}
	case event.Quote:
		return envelope{Type: "quote", Time: now, Data: e}
	case event.L2:
		return envelope{Type: "l2", Time: now, Data: e}
	case event.Disconnect:
		return envelope{Type: "disconnect", Time: now, Data: e}
	case event.RemovedPair:
		return envelope{Type: "removed_pair", Time: now, Data: e}
	case event.Other:
		return envelope{Type: "other", Time: now, Data: e}
	default:
		return envelope{Type: "unknown", Time: now, Data: e}
	}
}

func recordTelemetry(reg *telemetry.Registry, ev event.Event) {
	ex := string(ev.Venue())
	switch e := ev.(type) {
	case event.Trade, event.Quote, event.L2:
		reg.RecordFrameParsed(ex)
	case event.Disconnect:
		reg.RecordReconnect(ex, disconnectReason(e.Kind))
	case event.RemovedPair:
		reg.RecordPairRemoved(ex)
	}
}

func disconnectReason(k event.DisconnectKind) string {
	switch k {
	case event.DisconnectConnectionError:
		return "connection"
	case event.DisconnectDeserialize:
		return "deserialize"
	case event.DisconnectStreamRx:
		return "stream_rx"
	case event.DisconnectStreamTx:
		return "stream_tx"
	case event.DisconnectStreamTerminated:
		return "stream_terminated"
	case event.DisconnectIdleTimeout:
		return "idle_timeout"
	default:
		return "unknown"
	}
}
