// Package kucoin implements exchange.Adapter for Kucoin's public spot feed
// (spec.md §4.B), grounded on
// original_source/src/exchanges/kucoin/ws/{subscription,message,channels/{matches,ticker}}.rs:
// a REST token/endpoint discovery step (POST /bullet-public) precedes the
// websocket dial, and each subscribed topic is a random-id "subscribe"
// frame naming /market/<kind>:<PAIR>[,<PAIR>...].
package kucoin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
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
	restBulletPublic = "https://api.kucoin.com/api/v1/bullet-public"
	restSymbols      = "https://api.kucoin.com/api/v2/symbols"
)

// Adapter implements exchange.Adapter for Kucoin. httpClient stays a plain
// net/http client: discoverEndpoint's POST happens at connect time, outside
// the REST-enumeration rate-limit/breaker policy internal/httpx provides.
type Adapter struct {
	httpClient *http.Client
	bulletURL  string
	symbolsURL string
}

// New builds a Kucoin adapter. A nil httpClient defaults to http.DefaultClient.
func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{httpClient: httpClient, bulletURL: restBulletPublic, symbolsURL: restSymbols}
}

func (a *Adapter) Name() pair.Exchange { return pair.Kucoin }

// StreamTimeout tracks Kucoin's documented pingInterval (the bullet-public
// token response carries an exact value per connection; this is the
// adapter's conservative floor for the fallback case).
func (a *Adapter) StreamTimeout() time.Duration { return 50 * time.Second }

type bulletResponse struct {
	Code string `json:"code"`
	Data struct {
		Token           string `json:"token"`
		InstanceServers []struct {
			Endpoint     string `json:"endpoint"`
			Protocol     string `json:"protocol"`
			PingInterval int64  `json:"pingInterval"`
		} `json:"instanceServers"`
	} `json:"data"`
}

// OpenWS performs the token/endpoint discovery POST, dials the returned
// endpoint with the token as a query parameter, then sends one subscribe
// frame per channel.
func (a *Adapter) OpenWS(ctx context.Context, sub *channel.Subscription) (exchange.WSConn, error) {
	endpoint, token, err := a.discoverEndpoint(ctx)
	if err != nil {
		return nil, err
	}
	connectID := fmt.Sprintf("%d", rand.Int63())
	dialURL := fmt.Sprintf("%s?token=%s&connectId=%s", endpoint, token, connectID)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, dialErr := dialer.DialContext(ctx, dialURL, nil)
	if dialErr != nil {
		return nil, fmt.Errorf("kucoin dial: %w", dialErr)
	}

	for _, c := range sub.Channels {
		frame, err := subscribeFrame(c)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if frame == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			conn.Close()
			return nil, fmt.Errorf("kucoin send subscribe: %w", err)
		}
	}
	return conn, nil
}

func (a *Adapter) discoverEndpoint(ctx context.Context) (endpoint, token string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.bulletURL, bytes.NewReader(nil))
	if err != nil {
		return "", "", fmt.Errorf("kucoin build bullet-public request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("kucoin bullet-public request: %w", err)
	}
	defer resp.Body.Close()

	var body bulletResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("kucoin decode bullet-public: %w", err)
	}
	for _, s := range body.Data.InstanceServers {
		if s.Protocol == "websocket" {
			return s.Endpoint, body.Data.Token, nil
		}
	}
	return "", "", fmt.Errorf("kucoin: bullet-public response had no websocket instance server")
}

type subscribeFrameJSON struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

func subscribeFrame(c *channel.Channel) ([]byte, error) {
	kind, err := topicKind(c)
	if err != nil {
		return nil, err
	}
	if len(c.Pairs) == 0 {
		return nil, nil
	}
	natives := make([]string, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		native, err := pair.ToNative(p)
		if err != nil {
			return nil, err
		}
		natives = append(natives, native)
	}
	topic := fmt.Sprintf("/market/%s:%s", kind, strings.Join(natives, ","))
	frame := subscribeFrameJSON{
		ID:             fmt.Sprintf("%d", rand.Int63()),
		Type:           "subscribe",
		Topic:          topic,
		PrivateChannel: false,
		Response:       true,
	}
	return json.Marshal(frame)
}

func topicKind(c *channel.Channel) (string, error) {
	switch c.Kind {
	case channel.KindTrade:
		return "match", nil
	case channel.KindQuote:
		return "ticker", nil
	default:
		return "", fmt.Errorf("kucoin: unsupported channel kind %s", c.Kind)
	}
}

type matchFrame struct {
	Type    string         `json:"type"`
	Topic   string         `json:"topic"`
	Subject string         `json:"subject"`
	Data    matchFrameData `json:"data"`
}

type matchFrameData struct {
	Sequence  string `json:"sequence"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	TradeID   string `json:"tradeId"`
	Timestamp int64  `json:"time,string"`
}

type tickerFrame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Subject string          `json:"subject"`
	Data    tickerFrameData `json:"data"`
}

type tickerFrameData struct {
	Sequence    string `json:"sequence"`
	Price       string `json:"price"`
	BestAsk     string `json:"bestAsk"`
	BestAskSize string `json:"bestAskSize"`
	BestBid     string `json:"bestBid"`
	BestBidSize string `json:"bestBidSize"`
	Timestamp   int64  `json:"time"`
}

type ackFrame struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ParseFrame decodes one Kucoin frame. Kucoin rejects bad symbols at the
// subscribe-ack layer with type="error" rather than a pair-specific
// message, so ParseFrame does not consult BadPair: an error frame becomes a
// Disconnect.
func (a *Adapter) ParseFrame(raw []byte) (event.Event, error) {
	var probe struct {
		Topic string `json:"topic"`
		Type  string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("kucoin decode frame: %w", err)
	}

	switch {
	case strings.HasPrefix(probe.Topic, "/market/match:"):
		return a.parseMatch(raw)
	case strings.HasPrefix(probe.Topic, "/market/ticker:"):
		return a.parseTicker(raw)
	case probe.Type == "error":
		return event.Disconnect{Exchange: pair.Kucoin, Kind: event.DisconnectDeserialize, Message: string(raw), RawMessage: string(raw), HasRaw: true}, nil
	default:
		return event.Other{Exchange: pair.Kucoin, Kind: probe.Type, Value: string(raw)}, nil
	}
}

func (a *Adapter) parseMatch(raw []byte) (event.Event, error) {
	var f matchFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("kucoin decode match: %w", err)
	}
	price, err := exchange.DecimalFromString(f.Data.Price)
	if err != nil {
		return nil, fmt.Errorf("kucoin match price: %w", err)
	}
	size, err := exchange.DecimalFromString(f.Data.Size)
	if err != nil {
		return nil, fmt.Errorf("kucoin match size: %w", err)
	}
	side := event.SideBuy
	if f.Data.Side == "sell" {
		side = event.SideSell
	}
	return event.Trade{
		Exchange: pair.Kucoin,
		Pair:     f.Data.Symbol,
		Time:     exchange.MSToTime(f.Data.Timestamp / 1_000_000),
		Side:     side,
		Price:    price,
		Amount:   size,
		TradeID:  f.Data.TradeID,
	}, nil
}

func (a *Adapter) parseTicker(raw []byte) (event.Event, error) {
	var f tickerFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("kucoin decode ticker: %w", err)
	}
	symbol := strings.TrimPrefix(f.Topic, "/market/ticker:")
	bidPrice, err := exchange.DecimalFromString(f.Data.BestBid)
	if err != nil {
		return nil, fmt.Errorf("kucoin ticker bid price: %w", err)
	}
	bidSize, err := exchange.DecimalFromString(f.Data.BestBidSize)
	if err != nil {
		return nil, fmt.Errorf("kucoin ticker bid size: %w", err)
	}
	askPrice, err := exchange.DecimalFromString(f.Data.BestAsk)
	if err != nil {
		return nil, fmt.Errorf("kucoin ticker ask price: %w", err)
	}
	askSize, err := exchange.DecimalFromString(f.Data.BestAskSize)
	if err != nil {
		return nil, fmt.Errorf("kucoin ticker ask size: %w", err)
	}
	return event.Quote{
		Exchange:  pair.Kucoin,
		Pair:      symbol,
		BidPrice:  bidPrice,
		BidAmount: bidSize,
		AskPrice:  askPrice,
		AskAmount: askSize,
		OrderbookIDsTime: event.OrderbookIDsTime{
			Time:    exchange.MSToTime(f.Data.Timestamp),
			HasTime: f.Data.Timestamp != 0,
		},
	}, nil
}

// BadPair returns the first dashed BASE-QUOTE token in raw. Nothing on the
// streaming path calls it: Kucoin validates symbols at subscribe-ack time
// without naming the offending pair in free text, and ParseFrame turns such
// errors into a Disconnect.
func (a *Adapter) BadPair(raw string) (pair.Pair, bool) {
	tok, ok := pair.ExtractFirstLegal(raw, func(s string) bool { return pair.IsValidNative(pair.Kucoin, s) })
	if !ok {
		return pair.Pair{}, false
	}
	p, err := pair.FromNative(pair.Kucoin, tok)
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

// EnumerateInstruments lists tradable Kucoin symbols via GET /api/v2/symbols,
// routed through client's rate limiter and circuit breaker. discoverEndpoint
// stays on a.httpClient: it is a POST made at connect time, not part of the
// REST-enumeration path this client guards.
func (a *Adapter) EnumerateInstruments(ctx context.Context, client *httpx.Client) ([]exchange.Instrument, error) {
	raw, err := client.Get(ctx, pair.Kucoin, a.symbolsURL)
	if err != nil {
		return nil, fmt.Errorf("kucoin symbols request: %w", err)
	}

	var body struct {
		Data []struct {
			Symbol        string `json:"symbol"`
			BaseCurrency  string `json:"baseCurrency"`
			QuoteCurrency string `json:"quoteCurrency"`
			EnableTrading bool   `json:"enableTrading"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("kucoin decode symbols: %w", err)
	}

	out := make([]exchange.Instrument, 0, len(body.Data))
	for _, s := range body.Data {
		p := pair.NewBaseQuote(pair.Kucoin, s.BaseCurrency, s.QuoteCurrency, '-', true, "", false)
		out = append(out, exchange.Instrument{Pair: p, Active: s.EnableTrading})
	}
	return out, nil
}
