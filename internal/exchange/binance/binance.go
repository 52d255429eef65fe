// Package binance implements exchange.Adapter for Binance spot streams
// (spec.md §4.B, §8 scenario 1), grounded on the connection/parsing shape of
// sawpanic-cryptorun's BinanceAdapter
// (src/infrastructure/datafacade/adapters/binance_adapter.go): one websocket
// per stream set, subscription encoded in the dial URL's path rather than a
// post-connect handshake frame.
package binance

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
	wsBaseURL  = "wss://stream.binance.com:9443/stream"
	restExInfo = "https://api.binance.com/api/v3/exchangeInfo"
)

// Adapter implements exchange.Adapter for Binance.
type Adapter struct {
	wsBaseURL string
	restURL   string
}

// New builds a Binance adapter.
func New() *Adapter {
	return &Adapter{wsBaseURL: wsBaseURL, restURL: restExInfo}
}

func (a *Adapter) Name() pair.Exchange { return pair.Binance }

// StreamTimeout is Binance's idle bound: the combined stream sends no
// application heartbeat, so the state machine relies on the websocket
// control-frame Ping Binance's gateway issues roughly every 3 minutes.
func (a *Adapter) StreamTimeout() time.Duration { return 4 * time.Minute }

// OpenWS dials Binance's combined-stream endpoint with every channel's
// streams packed into the URL's ?streams= query, per spec.md §4.B - Binance
// requires no post-connect subscribe frame.
func (a *Adapter) OpenWS(ctx context.Context, sub *channel.Subscription) (exchange.WSConn, error) {
	streams, err := streamNames(sub)
	if err != nil {
		return nil, fmt.Errorf("binance build stream names: %w", err)
	}
	url := fmt.Sprintf("%s?streams=%s", a.wsBaseURL, strings.Join(streams, "/"))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, dialErr := dialer.DialContext(ctx, url, nil)
	if dialErr != nil {
		return nil, fmt.Errorf("binance dial: %w", dialErr)
	}
	// Binance's gateway pings on its own cadence; answering with a Pong
	// keeps the connection alive without the adapter tracking a timer.
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	return conn, nil
}

func streamNames(sub *channel.Subscription) ([]string, error) {
	var streams []string
	for _, c := range sub.Channels {
		suffix, err := channelSuffix(c)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Pairs {
			native, err := pair.ToNative(p)
			if err != nil {
				return nil, err
			}
			streams = append(streams, strings.ToLower(native)+suffix)
		}
	}
	return streams, nil
}

func channelSuffix(c *channel.Channel) (string, error) {
	switch c.Kind {
	case channel.KindTrade:
		return "@trade", nil
	case channel.KindQuote:
		return "@bookTicker", nil
	case channel.KindL2:
		return "@depth", nil
	default:
		return "", fmt.Errorf("binance: unsupported channel kind %s", c.Kind)
	}
}

// combinedEnvelope is Binance's combined-stream wrapper: every frame is
// {"stream": "<name>", "data": {...}} (spec.md §8 scenario 1).
type combinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type tradeFrame struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

type bookTickerFrame struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

type depthFrame struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// ParseFrame decodes one combined-stream message into a normalized event.
func (a *Adapter) ParseFrame(raw []byte) (event.Event, error) {
	var env combinedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("binance decode envelope: %w", err)
	}
	if env.Stream == "" {
		return event.Other{Exchange: pair.Binance, Kind: "unrecognized", Value: string(raw)}, nil
	}

	switch {
	case strings.HasSuffix(env.Stream, "@trade"):
		return a.parseTrade(env.Data)
	case strings.HasSuffix(env.Stream, "@bookTicker"):
		return a.parseBookTicker(env.Data)
	case strings.Contains(env.Stream, "@depth"):
		return a.parseDepth(env.Data)
	default:
		return event.Other{Exchange: pair.Binance, Kind: env.Stream, Value: string(env.Data)}, nil
	}
}

func (a *Adapter) parseTrade(data json.RawMessage) (event.Event, error) {
	var f tradeFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("binance decode trade: %w", err)
	}
	price, err := exchange.DecimalFromString(f.Price)
	if err != nil {
		return nil, fmt.Errorf("binance trade price: %w", err)
	}
	qty, err := exchange.DecimalFromString(f.Quantity)
	if err != nil {
		return nil, fmt.Errorf("binance trade quantity: %w", err)
	}
	side := event.SideBuy
	if f.IsBuyerMaker {
		// A maker buyer means the aggressor (taker) sold.
		side = event.SideSell
	}
	return event.Trade{
		Exchange: pair.Binance,
		Pair:     f.Symbol,
		Time:     exchange.MSToTime(f.TradeTime),
		Side:     side,
		Price:    price,
		Amount:   qty,
		TradeID:  fmt.Sprintf("%d", f.TradeID),
	}, nil
}

func (a *Adapter) parseBookTicker(data json.RawMessage) (event.Event, error) {
	var f bookTickerFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("binance decode bookTicker: %w", err)
	}
	bidPrice, err := exchange.DecimalFromString(f.BidPrice)
	if err != nil {
		return nil, fmt.Errorf("binance bookTicker bid price: %w", err)
	}
	bidQty, err := exchange.DecimalFromString(f.BidQty)
	if err != nil {
		return nil, fmt.Errorf("binance bookTicker bid qty: %w", err)
	}
	askPrice, err := exchange.DecimalFromString(f.AskPrice)
	if err != nil {
		return nil, fmt.Errorf("binance bookTicker ask price: %w", err)
	}
	askQty, err := exchange.DecimalFromString(f.AskQty)
	if err != nil {
		return nil, fmt.Errorf("binance bookTicker ask qty: %w", err)
	}
	return event.Quote{
		Exchange:  pair.Binance,
		Pair:      f.Symbol,
		BidPrice:  bidPrice,
		BidAmount: bidQty,
		AskPrice:  askPrice,
		AskAmount: askQty,
		OrderbookIDsTime: event.OrderbookIDsTime{
			LastUpdateID: f.UpdateID,
			HasLastID:    true,
		},
	}, nil
}

func (a *Adapter) parseDepth(data json.RawMessage) (event.Event, error) {
	var f depthFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("binance decode depth: %w", err)
	}
	bids, err := exchange.LevelsFromRows(f.Bids)
	if err != nil {
		return nil, fmt.Errorf("binance depth bids: %w", err)
	}
	asks, err := exchange.LevelsFromRows(f.Asks)
	if err != nil {
		return nil, fmt.Errorf("binance depth asks: %w", err)
	}
	return event.L2{
		Exchange: pair.Binance,
		Pair:     f.Symbol,
		Time:     exchange.MSToTime(f.EventTime),
		Bids:     bids,
		Asks:     asks,
		UpdateID: f.FinalUpdateID,
		HasID:    true,
	}, nil
}

// BadPair parses Binance's REST error body, {"code":-1121,"msg":"Invalid
// symbol."}. The combined websocket stream never emits a bad-pair frame for
// an unknown stream name (Binance rejects it at dial time instead), so
// ParseFrame never calls this; it applies only to a REST error body passed
// to it directly.
func (a *Adapter) BadPair(raw string) (pair.Pair, bool) {
	var errBody struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal([]byte(raw), &errBody); err != nil {
		return pair.Pair{}, false
	}
	if errBody.Code != -1121 {
		return pair.Pair{}, false
	}
	tok, ok := pair.ExtractFirstLegal(raw, func(s string) bool { return pair.IsValidNative(pair.Binance, s) })
	if !ok {
		return pair.Pair{}, false
	}
	p, err := pair.FromNative(pair.Binance, tok)
	if err != nil {
		return pair.Pair{}, false
	}
	return p, true
}

// RemovePair drops p from sub and, since Binance carries no post-connect
// handshake, leaves the caller to reopen the websocket with the remaining
// stream names for the removal to take effect.
func (a *Adapter) RemovePair(sub *channel.Subscription, p pair.Pair) bool {
	_, empty := sub.RemovePair(p)
	return empty
}

// EnumerateInstruments lists Binance's tradable spot symbols via
// GET /api/v3/exchangeInfo, routed through client's rate limiter and
// circuit breaker (internal/httpx).
func (a *Adapter) EnumerateInstruments(ctx context.Context, client *httpx.Client) ([]exchange.Instrument, error) {
	raw, err := client.Get(ctx, pair.Binance, a.restURL)
	if err != nil {
		return nil, fmt.Errorf("binance exchangeInfo request: %w", err)
	}

	var body struct {
		Symbols []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("binance decode exchangeInfo: %w", err)
	}

	out := make([]exchange.Instrument, 0, len(body.Symbols))
	for _, s := range body.Symbols {
		p, err := pair.FromNative(pair.Binance, s.Symbol)
		if err != nil {
			continue
		}
		out = append(out, exchange.Instrument{Pair: p, Active: s.Status == "TRADING"})
	}
	return out, nil
}
