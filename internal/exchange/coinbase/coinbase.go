// Package coinbase implements exchange.Adapter for Coinbase's Exchange
// websocket feed (spec.md §4.B, §8 scenario 2), grounded on
// original_source/src/exchanges/coinbase/ws/{subscription,message,matches,channels/ticker}.rs:
// a {"type":"subscribe","channels":[...]} handshake, and a
// {"type":"error","reason":"<PAIR> is delisted"} frame for a rejected
// product id.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sawpanic/marketfeed/internal/channel"
	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/exchange"
	"github.com/sawpanic/marketfeed/internal/httpx"
	"github.com/sawpanic/marketfeed/internal/pair"
)

const (
	wsURL        = "wss://ws-feed.exchange.coinbase.com"
	restProducts = "https://api.exchange.coinbase.com/products"
)

// Adapter implements exchange.Adapter for Coinbase.
type Adapter struct {
	wsURL   string
	restURL string
}

// New builds a Coinbase adapter.
func New() *Adapter {
	return &Adapter{wsURL: wsURL, restURL: restProducts}
}

func (a *Adapter) Name() pair.Exchange { return pair.Coinbase }

// StreamTimeout: Coinbase's feed has no documented idle-heartbeat floor
// beyond the "heartbeat" channel this adapter doesn't subscribe to, so the
// bound is generous relative to typical trade cadence.
func (a *Adapter) StreamTimeout() time.Duration { return 90 * time.Second }

type subscribeFrame struct {
	Type     string             `json:"type"`
	Channels []subscribeChannel `json:"channels"`
}

type subscribeChannel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

// OpenWS dials the feed and sends the subscribe frame immediately.
func (a *Adapter) OpenWS(ctx context.Context, sub *channel.Subscription) (exchange.WSConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coinbase dial: %w", err)
	}

	channels, err := subscribeChannels(sub)
	if err != nil {
		conn.Close()
		return nil, err
	}
	frame, err := json.Marshal(subscribeFrame{Type: "subscribe", Channels: channels})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("coinbase marshal subscribe: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("coinbase send subscribe: %w", err)
	}
	return conn, nil
}

func subscribeChannels(sub *channel.Subscription) ([]subscribeChannel, error) {
	var out []subscribeChannel
	for _, c := range sub.Channels {
		name, err := channelName(c)
		if err != nil {
			return nil, err
		}
		if c.Kind == channel.KindStatus {
			out = append(out, subscribeChannel{Name: name})
			continue
		}
		ids := make([]string, 0, len(c.Pairs))
		for _, p := range c.Pairs {
			native, err := pair.ToNative(p)
			if err != nil {
				return nil, err
			}
			ids = append(ids, native)
		}
		out = append(out, subscribeChannel{Name: name, ProductIDs: ids})
	}
	return out, nil
}

func channelName(c *channel.Channel) (string, error) {
	switch c.Kind {
	case channel.KindTrade:
		return "matches", nil
	case channel.KindQuote:
		return "ticker", nil
	case channel.KindStatus:
		return "status", nil
	default:
		return "", fmt.Errorf("coinbase: unsupported channel kind %s", c.Kind)
	}
}

type topLevel struct {
	Type string `json:"type"`
}

type matchesFrame struct {
	Type      string `json:"type"`
	TradeID   int64  `json:"trade_id"`
	Time      string `json:"time"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Side      string `json:"side"`
}

type tickerFrame struct {
	Type        string `json:"type"`
	Sequence    int64  `json:"sequence"`
	ProductID   string `json:"product_id"`
	Price       string `json:"price"`
	BestBid     string `json:"best_bid"`
	BestBidSize string `json:"best_bid_size"`
	BestAsk     string `json:"best_ask"`
	BestAskSize string `json:"best_ask_size"`
	Time        string `json:"time"`
	TradeID     int64  `json:"trade_id"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// ParseFrame decodes one Coinbase feed message.
func (a *Adapter) ParseFrame(raw []byte) (event.Event, error) {
	var top topLevel
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("coinbase decode frame: %w", err)
	}

	switch top.Type {
	case "match", "last_match":
		return a.parseMatches(raw)
	case "ticker":
		return a.parseTicker(raw)
	case "error":
		return a.parseError(raw)
	case "subscriptions", "status":
		return event.Other{Exchange: pair.Coinbase, Kind: top.Type, Value: string(raw)}, nil
	default:
		return event.Other{Exchange: pair.Coinbase, Kind: top.Type, Value: string(raw)}, nil
	}
}

func (a *Adapter) parseMatches(raw []byte) (event.Event, error) {
	var f matchesFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("coinbase decode match: %w", err)
	}
	price, err := exchange.DecimalFromString(f.Price)
	if err != nil {
		return nil, fmt.Errorf("coinbase match price: %w", err)
	}
	size, err := exchange.DecimalFromString(f.Size)
	if err != nil {
		return nil, fmt.Errorf("coinbase match size: %w", err)
	}
	side := event.SideBuy
	if f.Side == "sell" {
		side = event.SideSell
	}
	t, _ := time.Parse(time.RFC3339Nano, f.Time)
	return event.Trade{
		Exchange: pair.Coinbase,
		Pair:     f.ProductID,
		Time:     t,
		Side:     side,
		Price:    price,
		Amount:   size,
		TradeID:  fmt.Sprintf("%d", f.TradeID),
	}, nil
}

func (a *Adapter) parseTicker(raw []byte) (event.Event, error) {
	var f tickerFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("coinbase decode ticker: %w", err)
	}
	bidPrice, err := exchange.DecimalFromString(f.BestBid)
	if err != nil {
		return nil, fmt.Errorf("coinbase ticker bid price: %w", err)
	}
	bidSize, err := exchange.DecimalFromString(f.BestBidSize)
	if err != nil {
		return nil, fmt.Errorf("coinbase ticker bid size: %w", err)
	}
	askPrice, err := exchange.DecimalFromString(f.BestAsk)
	if err != nil {
		return nil, fmt.Errorf("coinbase ticker ask price: %w", err)
	}
	askSize, err := exchange.DecimalFromString(f.BestAskSize)
	if err != nil {
		return nil, fmt.Errorf("coinbase ticker ask size: %w", err)
	}
	t, _ := time.Parse(time.RFC3339Nano, f.Time)
	idt := event.OrderbookIDsTime{Time: t, HasTime: !t.IsZero()}
	if f.TradeID != 0 {
		idt.FirstUpdateID = f.TradeID
		idt.HasFirstID = true
	}
	return event.Quote{
		Exchange:         pair.Coinbase,
		Pair:             f.ProductID,
		BidPrice:         bidPrice,
		BidAmount:        bidSize,
		AskPrice:         askPrice,
		AskAmount:        askSize,
		OrderbookIDsTime: idt,
	}, nil
}

func (a *Adapter) parseError(raw []byte) (event.Event, error) {
	var f errorFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("coinbase decode error: %w", err)
	}
	if badPair, ok := a.BadPair(f.Reason); ok {
		return event.RemovedPair{Exchange: pair.Coinbase, BadPair: badPair, RawMessage: f.Reason}, nil
	}
	return event.Disconnect{
		Exchange:   pair.Coinbase,
		Kind:       event.DisconnectDeserialize,
		Message:    f.Message,
		RawMessage: string(raw),
		HasRaw:     true,
	}, nil
}

// BadPair looks for a dashed product id token followed by a delisting
// reason, e.g. "LOOM-USDC is delisted" (spec.md §8 scenario 2).
func (a *Adapter) BadPair(raw string) (pair.Pair, bool) {
	tok, ok := pair.ExtractFirstLegal(raw, func(s string) bool { return pair.IsValidNative(pair.Coinbase, s) })
	if !ok {
		return pair.Pair{}, false
	}
	p, err := pair.FromNative(pair.Coinbase, tok)
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

// EnumerateInstruments lists tradable Coinbase products via GET /products,
// routed through client's rate limiter and circuit breaker.
func (a *Adapter) EnumerateInstruments(ctx context.Context, client *httpx.Client) ([]exchange.Instrument, error) {
	raw, err := client.Get(ctx, pair.Coinbase, a.restURL)
	if err != nil {
		return nil, fmt.Errorf("coinbase products request: %w", err)
	}

	var products []struct {
		ID              string `json:"id"`
		BaseCurrency    string `json:"base_currency"`
		QuoteCurrency   string `json:"quote_currency"`
		TradingDisabled bool   `json:"trading_disabled"`
		Status          string `json:"status"`
	}
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("coinbase decode products: %w", err)
	}

	out := make([]exchange.Instrument, 0, len(products))
	for _, p := range products {
		np := pair.NewBaseQuote(pair.Coinbase, p.BaseCurrency, p.QuoteCurrency, '-', true, "", false)
		out = append(out, exchange.Instrument{Pair: np, Active: p.Status == "online" && !p.TradingDisabled})
	}
	return out, nil
}
