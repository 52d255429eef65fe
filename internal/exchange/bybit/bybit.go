// Package bybit implements exchange.Adapter for Bybit's public spot
// websocket (spec.md §4.B, §8 scenario 3), grounded on
// original_source/src/exchanges/bybit/ws/{subscription,message,trades,ticker}.rs:
// a single op/args subscribe frame sent after connect, and an
// success=false/ret_msg error response carrying "Invalid symbol
// :[publicTrade.FOOBAR]" for a rejected pair.
package bybit

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
	wsURL        = "wss://stream.bybit.com/v5/public/spot"
	restInstInfo = "https://api.bybit.com/v5/market/instruments-info?category=spot"
)

// Adapter implements exchange.Adapter for Bybit.
type Adapter struct {
	wsURL   string
	restURL string
}

// New builds a Bybit adapter.
func New() *Adapter {
	return &Adapter{wsURL: wsURL, restURL: restInstInfo}
}

func (a *Adapter) Name() pair.Exchange { return pair.Bybit }

// StreamTimeout matches Bybit's documented 20s server-side ping interval;
// the adapter allows a few missed beats before the state machine reconnects.
func (a *Adapter) StreamTimeout() time.Duration { return 60 * time.Second }

type subscribeFrame struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// OpenWS dials the public spot endpoint and sends the op/args subscribe
// frame for every channel/pair combination in sub.
func (a *Adapter) OpenWS(ctx context.Context, sub *channel.Subscription) (exchange.WSConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bybit dial: %w", err)
	}

	args, err := topicArgs(sub)
	if err != nil {
		conn.Close()
		return nil, err
	}
	frame, err := json.Marshal(subscribeFrame{Op: "subscribe", Args: args})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bybit marshal subscribe: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bybit send subscribe: %w", err)
	}
	return conn, nil
}

func topicArgs(sub *channel.Subscription) ([]string, error) {
	var args []string
	for _, c := range sub.Channels {
		prefix, err := topicPrefix(c)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Pairs {
			native, err := pair.ToNative(p)
			if err != nil {
				return nil, err
			}
			args = append(args, prefix+native)
		}
	}
	return args, nil
}

func topicPrefix(c *channel.Channel) (string, error) {
	switch c.Kind {
	case channel.KindTrade:
		return "publicTrade.", nil
	case channel.KindQuote:
		return "tickers.", nil
	case channel.KindL2:
		return "orderbook.1.", nil
	default:
		return "", fmt.Errorf("bybit: unsupported channel kind %s", c.Kind)
	}
}

type tradeFrame struct {
	Topic string           `json:"topic"`
	Type  string           `json:"type"`
	TS    int64            `json:"ts"`
	Data  []tradeFrameItem `json:"data"`
}

type tradeFrameItem struct {
	Timestamp int64  `json:"T"`
	Symbol    string `json:"s"`
	Side      string `json:"S"`
	Amount    string `json:"v"`
	Price     string `json:"p"`
	TradeID   string `json:"i"`
}

type tickerFrame struct {
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	TS        int64           `json:"ts"`
	Timestamp int64           `json:"cts"`
	Data      tickerFrameData `json:"data"`
}

type tickerFrameData struct {
	Symbol   string      `json:"s"`
	BestBid  bybitBidAsk `json:"b"`
	BestAsk  bybitBidAsk `json:"a"`
	UpdateID int64       `json:"u"`
}

type bybitBidAsk struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

type orderbookFrame struct {
	Topic string             `json:"topic"`
	Type  string             `json:"type"`
	TS    int64              `json:"ts"`
	Data  orderbookFrameData `json:"data"`
}

type orderbookFrameData struct {
	Symbol   string     `json:"s"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
	UpdateID int64      `json:"u"`
}

type subscribeAck struct {
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
	ConnID  string `json:"conn_id"`
	Op      string `json:"op"`
}

// ParseFrame decodes one Bybit frame. A success=false subscribe
// acknowledgment carrying an invalid-symbol message is surfaced as
// event.RemovedPair so the stream state machine can prune the pair and
// continue, per spec.md §8 scenario 3.
func (a *Adapter) ParseFrame(raw []byte) (event.Event, error) {
	var ack subscribeAck
	if err := json.Unmarshal(raw, &ack); err == nil && ack.ConnID != "" {
		if ack.Success {
			return event.Other{Exchange: pair.Bybit, Kind: "subscribe", Value: ack.Op}, nil
		}
		if badPair, ok := a.BadPair(ack.RetMsg); ok {
			return event.RemovedPair{Exchange: pair.Bybit, BadPair: badPair, RawMessage: ack.RetMsg}, nil
		}
		return event.Disconnect{
			Exchange:   pair.Bybit,
			Kind:       event.DisconnectDeserialize,
			Message:    ack.RetMsg,
			RawMessage: string(raw),
			HasRaw:     true,
		}, nil
	}

	var probe struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("bybit decode frame: %w", err)
	}

	switch {
	case strings.HasPrefix(probe.Topic, "publicTrade."):
		return a.parseTrade(raw)
	case strings.HasPrefix(probe.Topic, "tickers."):
		return a.parseTicker(raw)
	case strings.HasPrefix(probe.Topic, "orderbook."):
		return a.parseOrderbook(raw)
	default:
		return event.Other{Exchange: pair.Bybit, Kind: probe.Topic, Value: string(raw)}, nil
	}
}

func (a *Adapter) parseTrade(raw []byte) (event.Event, error) {
	var f tradeFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("bybit decode trade: %w", err)
	}
	if len(f.Data) == 0 {
		return event.Other{Exchange: pair.Bybit, Kind: "trade_empty"}, nil
	}
	item := f.Data[0]
	price, err := exchange.DecimalFromString(item.Price)
	if err != nil {
		return nil, fmt.Errorf("bybit trade price: %w", err)
	}
	amount, err := exchange.DecimalFromString(item.Amount)
	if err != nil {
		return nil, fmt.Errorf("bybit trade amount: %w", err)
	}
	side := event.SideBuy
	if strings.EqualFold(item.Side, "Sell") {
		side = event.SideSell
	}
	return event.Trade{
		Exchange: pair.Bybit,
		Pair:     item.Symbol,
		Time:     exchange.MSToTime(item.Timestamp),
		Side:     side,
		Price:    price,
		Amount:   amount,
		TradeID:  item.TradeID,
	}, nil
}

func (a *Adapter) parseTicker(raw []byte) (event.Event, error) {
	var f tickerFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("bybit decode ticker: %w", err)
	}
	bidPrice, err := exchange.DecimalFromString(f.Data.BestBid.Price)
	if err != nil {
		return nil, fmt.Errorf("bybit ticker bid price: %w", err)
	}
	bidAmount, err := exchange.DecimalFromString(f.Data.BestBid.Amount)
	if err != nil {
		return nil, fmt.Errorf("bybit ticker bid amount: %w", err)
	}
	askPrice, err := exchange.DecimalFromString(f.Data.BestAsk.Price)
	if err != nil {
		return nil, fmt.Errorf("bybit ticker ask price: %w", err)
	}
	askAmount, err := exchange.DecimalFromString(f.Data.BestAsk.Amount)
	if err != nil {
		return nil, fmt.Errorf("bybit ticker ask amount: %w", err)
	}
	return event.Quote{
		Exchange:  pair.Bybit,
		Pair:      f.Data.Symbol,
		BidPrice:  bidPrice,
		BidAmount: bidAmount,
		AskPrice:  askPrice,
		AskAmount: askAmount,
		OrderbookIDsTime: event.OrderbookIDsTime{
			Time:         exchange.MSToTime(f.Timestamp),
			HasTime:      f.Timestamp != 0,
			LastUpdateID: f.Data.UpdateID,
			HasLastID:    true,
		},
	}, nil
}

func (a *Adapter) parseOrderbook(raw []byte) (event.Event, error) {
	var f orderbookFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("bybit decode orderbook: %w", err)
	}
	bids, err := exchange.LevelsFromRows(f.Data.Bids)
	if err != nil {
		return nil, fmt.Errorf("bybit orderbook bids: %w", err)
	}
	asks, err := exchange.LevelsFromRows(f.Data.Asks)
	if err != nil {
		return nil, fmt.Errorf("bybit orderbook asks: %w", err)
	}
	return event.L2{
		Exchange: pair.Bybit,
		Pair:     f.Data.Symbol,
		Time:     exchange.MSToTime(f.TS),
		Bids:     bids,
		Asks:     asks,
		UpdateID: f.Data.UpdateID,
		HasID:    true,
	}, nil
}

// BadPair parses Bybit's "Invalid symbol :[publicTrade.FOOBAR]" ret_msg
// format, stripping the topic prefix before validating the remainder as a
// native pair string.
func (a *Adapter) BadPair(raw string) (pair.Pair, bool) {
	if !strings.Contains(raw, "Invalid symbol") {
		return pair.Pair{}, false
	}
	stripped := strings.NewReplacer(
		"Invalid symbol :[", "",
		"]", "",
		"publicTrade.", "",
		"tickers.", "",
		"orderbook.1.", "",
	).Replace(raw)
	tok, ok := pair.ExtractFirstLegal(stripped, func(s string) bool { return pair.IsValidNative(pair.Bybit, s) })
	if !ok {
		return pair.Pair{}, false
	}
	p, err := pair.FromNative(pair.Bybit, tok)
	if err != nil {
		return pair.Pair{}, false
	}
	return p, true
}

// RemovePair drops p from sub; Bybit does not require re-sending a
// subscribe frame to stop delivery of a rejected pair since the server
// already excluded it from the acknowledged topic set.
func (a *Adapter) RemovePair(sub *channel.Subscription, p pair.Pair) bool {
	_, empty := sub.RemovePair(p)
	return empty
}

// EnumerateInstruments lists tradable Bybit spot symbols via
// GET /v5/market/instruments-info?category=spot, filtering to status ==
// "Trading" per original_source/src/exchanges/bybit/ws/builder.rs's
// build_from_all_instruments_util.
func (a *Adapter) EnumerateInstruments(ctx context.Context, client *httpx.Client) ([]exchange.Instrument, error) {
	raw, err := client.Get(ctx, pair.Bybit, a.restURL)
	if err != nil {
		return nil, fmt.Errorf("bybit instruments-info request: %w", err)
	}

	var body struct {
		Result struct {
			List []struct {
				BaseCoin  string `json:"baseCoin"`
				QuoteCoin string `json:"quoteCoin"`
				Status    string `json:"status"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("bybit decode instruments-info: %w", err)
	}

	out := make([]exchange.Instrument, 0, len(body.Result.List))
	for _, s := range body.Result.List {
		if s.BaseCoin == "" || s.QuoteCoin == "" {
			continue
		}
		p := pair.NewBaseQuote(pair.Bybit, s.BaseCoin, s.QuoteCoin, '-', true, "", false)
		out = append(out, exchange.Instrument{Pair: p, Active: s.Status == "Trading"})
	}
	return out, nil
}
