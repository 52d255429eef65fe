package stream_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/channel"
	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/exchange"
	"github.com/sawpanic/marketfeed/internal/httpx"
	"github.com/sawpanic/marketfeed/internal/pair"
	"github.com/sawpanic/marketfeed/internal/stream"
)

// fakeConn scripts a sequence of ReadMessage results; it satisfies
// exchange.WSConn without dialing a real socket.
type fakeConn struct {
	frames [][]byte
	errs   []error
	idx    int
	closed bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if c.idx >= len(c.frames) && c.idx >= len(c.errs) {
		return 0, nil, errTimeout{}
	}
	var raw []byte
	var err error
	if c.idx < len(c.frames) {
		raw = c.frames[c.idx]
	}
	if c.idx < len(c.errs) {
		err = c.errs[c.idx]
	}
	c.idx++
	return 1, raw, err
}

func (c *fakeConn) WriteMessage(int, []byte) error    { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPingHandler(func(string) error) {}
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) Close() error                      { c.closed = true; return nil }

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

// fakeAdapter drives one fakeConn per OpenWS call from a supplied queue,
// and parses frames via a caller-supplied function.
type fakeAdapter struct {
	name       pair.Exchange
	conns      []*fakeConn
	parse      func([]byte) (event.Event, error)
	badPair    func(string) (pair.Pair, bool)
	openErr    error
	openCalled int
}

func (a *fakeAdapter) Name() pair.Exchange          { return a.name }
func (a *fakeAdapter) StreamTimeout() time.Duration { return time.Minute }

func (a *fakeAdapter) OpenWS(ctx context.Context, sub *channel.Subscription) (exchange.WSConn, error) {
	if a.openErr != nil {
		return nil, a.openErr
	}
	if a.openCalled >= len(a.conns) {
		return a.conns[len(a.conns)-1], nil
	}
	conn := a.conns[a.openCalled]
	a.openCalled++
	return conn, nil
}

func (a *fakeAdapter) ParseFrame(raw []byte) (event.Event, error) { return a.parse(raw) }

func (a *fakeAdapter) BadPair(raw string) (pair.Pair, bool) {
	if a.badPair != nil {
		return a.badPair(raw)
	}
	return pair.Pair{}, false
}

func (a *fakeAdapter) RemovePair(sub *channel.Subscription, p pair.Pair) bool {
	_, empty := sub.RemovePair(p)
	return empty
}

func (a *fakeAdapter) EnumerateInstruments(ctx context.Context, client *httpx.Client) ([]exchange.Instrument, error) {
	return nil, nil
}

func testSubscription(n int) *channel.Subscription {
	sub := channel.NewSubscription(pair.Binance)
	pairs := make([]pair.Pair, n)
	for i := range pairs {
		pairs[i] = pair.NewBaseQuote(pair.Binance, "BTC", "USDT", 0, false, "", false)
	}
	sub.AddChannel(channel.New(pair.Binance, channel.KindTrade, pairs))
	return sub
}

func collect(ch <-chan event.Event, n int, timeout time.Duration) []event.Event {
	var out []event.Event
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestStreamEmitsNormalizedEvents(t *testing.T) {
	conn := &fakeConn{frames: [][]byte{[]byte("t1")}}
	adapter := &fakeAdapter{
		name:  pair.Binance,
		conns: []*fakeConn{conn},
		parse: func(raw []byte) (event.Event, error) {
			return event.Trade{Exchange: pair.Binance, Pair: "BTC-USDT"}, nil
		},
	}

	s := stream.New(adapter, testSubscription(1), stream.Config{ReconnectDelay: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events := collect(s.Run(ctx), 1, 500*time.Millisecond)
	require.Len(t, events, 1)
	trade, ok := events[0].(event.Trade)
	require.True(t, ok)
	assert.Equal(t, "BTC-USDT", trade.Pair)
}

// TestStreamBadPairEmptiesSubscriptionTerminates checks spec.md §8 scenario
// 7: removing the last pair from a subscription ends the stream without an
// extra Disconnect event.
func TestStreamBadPairEmptiesSubscriptionTerminates(t *testing.T) {
	conn := &fakeConn{frames: [][]byte{[]byte("bad")}}
	badP := pair.NewBaseQuote(pair.Binance, "BTC", "USDT", 0, false, "", false)
	adapter := &fakeAdapter{
		name:  pair.Binance,
		conns: []*fakeConn{conn},
		parse: func(raw []byte) (event.Event, error) {
			return event.RemovedPair{Exchange: pair.Binance, BadPair: badP}, nil
		},
	}

	s := stream.New(adapter, testSubscription(1), stream.Config{ReconnectDelay: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events := collect(s.Run(ctx), 5, 300*time.Millisecond)
	require.Len(t, events, 1)
	_, ok := events[0].(event.RemovedPair)
	require.True(t, ok)
	assert.Equal(t, stream.StateTerminated, s.State())
}

// TestStreamIdleTimeoutReconnects checks spec.md §8 scenario 4: a read
// deadline expiry emits a Disconnect with KindIdleTimeout-derived kind and
// reconnects rather than terminating outright.
func TestStreamIdleTimeoutReconnects(t *testing.T) {
	timeoutConn := &fakeConn{}
	okConn := &fakeConn{frames: [][]byte{[]byte("t1")}}
	adapter := &fakeAdapter{
		name:  pair.Binance,
		conns: []*fakeConn{timeoutConn, okConn},
		parse: func(raw []byte) (event.Event, error) {
			return event.Trade{Exchange: pair.Binance, Pair: "BTC-USDT"}, nil
		},
	}

	s := stream.New(adapter, testSubscription(1), stream.Config{ReconnectDelay: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events := collect(s.Run(ctx), 2, 500*time.Millisecond)
	require.Len(t, events, 2)
	disc, ok := events[0].(event.Disconnect)
	require.True(t, ok)
	assert.Equal(t, event.DisconnectIdleTimeout, disc.Kind)
	_, ok = events[1].(event.Trade)
	assert.True(t, ok)
}

func TestStreamTerminatesWhenMaxRetriesExhausted(t *testing.T) {
	adapter := &fakeAdapter{
		name:    pair.Binance,
		openErr: errors.New("dial refused"),
	}
	maxRetries := uint64(1)

	s := stream.New(adapter, testSubscription(1), stream.Config{MaxRetries: &maxRetries, ReconnectDelay: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events := collect(s.Run(ctx), 10, 500*time.Millisecond)
	assert.Len(t, events, 2)
	assert.Equal(t, stream.StateTerminated, s.State())
}
