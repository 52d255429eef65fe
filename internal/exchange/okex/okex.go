// Package okex implements exchange.Adapter for OKX's public spot feed
// (spec.md §4.B), grounded on
// original_source/src/exchanges/okex/ws/{subscription,message,trades,channels/tickers}.rs:
// an op/args handshake over one of two websocket URLs depending on channel
// ("trades-all" requires the business endpoint, everything else the public
// one), and frames keyed by arg.channel rather than a topic string.
package okex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sawpanic/marketfeed/internal/channel"
	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/exchange"
	"github.com/sawpanic/marketfeed/internal/httpx"
	"github.com/sawpanic/marketfeed/internal/pair"
)

const (
	wsPublicURL     = "wss://ws.okx.com:8443/ws/v5/public"
	wsBusinessURL   = "wss://ws.okx.com:8443/ws/v5/business"
	restInstruments = "https://www.okx.com/api/v5/public/instruments?instType=SPOT"
)

// Adapter implements exchange.Adapter for Okex.
type Adapter struct {
	publicURL   string
	businessURL string
	restURL     string
}

// New builds an Okex adapter.
func New() *Adapter {
	return &Adapter{publicURL: wsPublicURL, businessURL: wsBusinessURL, restURL: restInstruments}
}

func (a *Adapter) Name() pair.Exchange { return pair.Okex }

// StreamTimeout matches OKX's documented 30s no-traffic disconnect window.
func (a *Adapter) StreamTimeout() time.Duration { return 30 * time.Second }

type subscribeFrame struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// OpenWS dials the public or business endpoint - whichever every channel in
// sub requires - and sends one combined subscribe frame. A subscription
// mixing a trades-all channel with any other kind is rejected: OKX requires
// the two on separate connections, and this module builds one Subscription
// per websocket (spec.md §4.C), so a caller needing both must build two
// subscriptions.
func (a *Adapter) OpenWS(ctx context.Context, sub *channel.Subscription) (exchange.WSConn, error) {
	url, err := dialURL(a, sub)
	if err != nil {
		return nil, err
	}

	args, err := subscribeArgs(sub)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, dialErr := dialer.DialContext(ctx, url, nil)
	if dialErr != nil {
		return nil, fmt.Errorf("okex dial: %w", dialErr)
	}
	frame, err := json.Marshal(subscribeFrame{Op: "subscribe", Args: args})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("okex marshal subscribe: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("okex send subscribe: %w", err)
	}
	return conn, nil
}

func dialURL(a *Adapter, sub *channel.Subscription) (string, error) {
	needsBusiness, needsPublic := false, false
	for _, c := range sub.Channels {
		name, err := channelName(c)
		if err != nil {
			return "", err
		}
		if name == "trades-all" {
			needsBusiness = true
		} else {
			needsPublic = true
		}
	}
	if needsBusiness && needsPublic {
		return "", fmt.Errorf("okex: subscription mixes trades-all with public channels; build one subscription per endpoint")
	}
	if needsBusiness {
		return a.businessURL, nil
	}
	return a.publicURL, nil
}

func subscribeArgs(sub *channel.Subscription) ([]subscribeArg, error) {
	var args []subscribeArg
	for _, c := range sub.Channels {
		name, err := channelName(c)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Pairs {
			native, err := pair.ToNative(p)
			if err != nil {
				return nil, err
			}
			args = append(args, subscribeArg{Channel: name, InstID: native})
		}
	}
	return args, nil
}

func channelName(c *channel.Channel) (string, error) {
	switch c.Kind {
	case channel.KindTrade:
		return "trades-all", nil
	case channel.KindQuote:
		return "tickers", nil
	default:
		return "", fmt.Errorf("okex: unsupported channel kind %s", c.Kind)
	}
}

type arg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type dataEnvelope struct {
	Arg  arg             `json:"arg"`
	Data json.RawMessage `json:"data"`
}

type eventEnvelope struct {
	Event   string `json:"event"`
	Message string `json:"msg"`
	Code    string `json:"code"`
}

type tradesAllFrame struct {
	InstID  string `json:"instId"`
	Price   string `json:"px"`
	Qty     string `json:"sz"`
	TradeID string `json:"tradeId"`
	Side    string `json:"side"`
	Time    string `json:"ts"`
}

type tickersFrame struct {
	InstID   string `json:"instId"`
	AskPrice string `json:"askPx"`
	AskSize  string `json:"askSz"`
	BidPrice string `json:"bidPx"`
	BidSize  string `json:"bidSz"`
	Time     string `json:"ts"`
}

// ParseFrame decodes one OKX frame, keying off arg.channel per
// original_source's OkexWsMessage::try_deserialize.
func (a *Adapter) ParseFrame(raw []byte) (event.Event, error) {
	var env dataEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Arg.Channel != "" {
		switch env.Arg.Channel {
		case "trades-all":
			return a.parseTrades(env.Data)
		case "tickers":
			return a.parseTickers(env.Data)
		default:
			return event.Other{Exchange: pair.Okex, Kind: env.Arg.Channel, Value: string(env.Data)}, nil
		}
	}

	var ev eventEnvelope
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("okex decode frame: %w", err)
	}
	switch ev.Event {
	case "subscribe":
		return event.Other{Exchange: pair.Okex, Kind: "subscribe", Value: string(raw)}, nil
	case "error":
		if badPair, ok := a.BadPair(ev.Message); ok {
			return event.RemovedPair{Exchange: pair.Okex, BadPair: badPair, RawMessage: ev.Message}, nil
		}
		return event.Disconnect{
			Exchange:   pair.Okex,
			Kind:       event.DisconnectDeserialize,
			Message:    ev.Message,
			RawMessage: string(raw),
			HasRaw:     true,
		}, nil
	default:
		return event.Other{Exchange: pair.Okex, Kind: ev.Event, Value: string(raw)}, nil
	}
}

func (a *Adapter) parseTrades(data json.RawMessage) (event.Event, error) {
	var items []tradesAllFrame
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("okex decode trades-all: %w", err)
	}
	if len(items) == 0 {
		return event.Other{Exchange: pair.Okex, Kind: "trades-all_empty"}, nil
	}
	f := items[0]
	price, err := exchange.DecimalFromString(f.Price)
	if err != nil {
		return nil, fmt.Errorf("okex trade price: %w", err)
	}
	qty, err := exchange.DecimalFromString(f.Qty)
	if err != nil {
		return nil, fmt.Errorf("okex trade qty: %w", err)
	}
	side := event.SideBuy
	if f.Side == "sell" {
		side = event.SideSell
	}
	var ms int64
	if _, err := fmt.Sscanf(f.Time, "%d", &ms); err != nil {
		return nil, fmt.Errorf("okex trade ts %q: %w", f.Time, err)
	}
	return event.Trade{
		Exchange: pair.Okex,
		Pair:     f.InstID,
		Time:     exchange.MSToTime(ms),
		Side:     side,
		Price:    price,
		Amount:   qty,
		TradeID:  f.TradeID,
	}, nil
}

func (a *Adapter) parseTickers(data json.RawMessage) (event.Event, error) {
	var items []tickersFrame
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("okex decode tickers: %w", err)
	}
	if len(items) == 0 {
		return event.Other{Exchange: pair.Okex, Kind: "tickers_empty"}, nil
	}
	f := items[0]
	askPrice, err := exchange.DecimalFromString(f.AskPrice)
	if err != nil {
		return nil, fmt.Errorf("okex ticker ask price: %w", err)
	}
	askSize, err := exchange.DecimalFromString(f.AskSize)
	if err != nil {
		return nil, fmt.Errorf("okex ticker ask size: %w", err)
	}
	bidPrice, err := exchange.DecimalFromString(f.BidPrice)
	if err != nil {
		return nil, fmt.Errorf("okex ticker bid price: %w", err)
	}
	bidSize, err := exchange.DecimalFromString(f.BidSize)
	if err != nil {
		return nil, fmt.Errorf("okex ticker bid size: %w", err)
	}
	var ms int64
	if _, err := fmt.Sscanf(f.Time, "%d", &ms); err != nil {
		return nil, fmt.Errorf("okex ticker ts %q: %w", f.Time, err)
	}
	return event.Quote{
		Exchange:  pair.Okex,
		Pair:      f.InstID,
		AskPrice:  askPrice,
		AskAmount: askSize,
		BidPrice:  bidPrice,
		BidAmount: bidSize,
		OrderbookIDsTime: event.OrderbookIDsTime{
			Time:    exchange.MSToTime(ms),
			HasTime: ms != 0,
		},
	}, nil
}

// BadPair extracts a dashed instId from OKX's free-text subscribe error,
// e.g. "channel:trades-all,instId:FOO-BAR doesn't exist". When the message
// carries an "instId:" key, scanning starts right after it.
func (a *Adapter) BadPair(raw string) (pair.Pair, bool) {
	if i := strings.Index(raw, "instId:"); i >= 0 {
		raw = raw[i+len("instId:"):]
	}
	tok, ok := pair.ExtractFirstLegal(raw, func(s string) bool { return pair.IsValidNative(pair.Okex, s) })
	if !ok {
		return pair.Pair{}, false
	}
	p, err := pair.FromNative(pair.Okex, tok)
	if err != nil {
		return pair.Pair{}, false
	}
	return p, true
}

// RemovePair drops p from sub and reports whether it is now empty.
func (a *Adapter) RemovePair(sub *channel.Subscription, p pair.Pair) bool {
	_, empty := sub.RemovePair(p)
	return empty
}

// EnumerateInstruments lists tradable OKX spot instruments via
// GET /api/v5/public/instruments?instType=SPOT, routed through client's
// rate limiter and circuit breaker.
func (a *Adapter) EnumerateInstruments(ctx context.Context, client *httpx.Client) ([]exchange.Instrument, error) {
	raw, err := client.Get(ctx, pair.Okex, a.restURL)
	if err != nil {
		return nil, fmt.Errorf("okex instruments request: %w", err)
	}

	var body struct {
		Data []struct {
			InstID   string `json:"instId"`
			BaseCcy  string `json:"baseCcy"`
			QuoteCcy string `json:"quoteCcy"`
			State    string `json:"state"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("okex decode instruments: %w", err)
	}

	out := make([]exchange.Instrument, 0, len(body.Data))
	for _, s := range body.Data {
		p := pair.NewBaseQuote(pair.Okex, s.BaseCcy, s.QuoteCcy, '-', true, "", false)
		out = append(out, exchange.Instrument{Pair: p, Active: s.State == "live"})
	}
	return out, nil
}
