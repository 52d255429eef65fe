package bybit_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/exchange/bybit"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParseTradeFrame(t *testing.T) {
	a := bybit.New()
	raw := []byte(`{"topic":"publicTrade.BTCUSDT","type":"snapshot","ts":1700000000000,"data":[{"T":1700000000000,"s":"BTCUSDT","S":"Sell","v":"0.5","p":"60000","i":"abc123"}]}`)

	ev, err := a.ParseFrame(raw)
	require.NoError(t, err)

	trade := ev.(event.Trade)
	assert.Equal(t, "BTCUSDT", trade.Pair)
	assert.Equal(t, event.SideSell, trade.Side)
	assert.True(t, trade.Price.Equal(dec("60000")))
}

// TestParseInvalidSymbolAck checks spec.md §8 scenario 3: a
// success=false ack carrying "Invalid symbol :[publicTrade.FOO-BAR]"
// becomes a RemovedPair event naming FOO-BAR's base/quote split.
func TestParseInvalidSymbolAck(t *testing.T) {
	a := bybit.New()
	raw := []byte(`{"success":false,"ret_msg":"Invalid symbol :[publicTrade.FOO-BAR]","conn_id":"conn-1","op":"subscribe"}`)

	ev, err := a.ParseFrame(raw)
	require.NoError(t, err)

	removed, ok := ev.(event.RemovedPair)
	require.True(t, ok)
	assert.Equal(t, "FOO-BAR", removed.BadPair.String())
}

func TestParseSuccessfulAck(t *testing.T) {
	a := bybit.New()
	raw := []byte(`{"success":true,"ret_msg":"","conn_id":"conn-1","op":"subscribe"}`)

	ev, err := a.ParseFrame(raw)
	require.NoError(t, err)
	_, ok := ev.(event.Other)
	assert.True(t, ok)
}

func TestBadPairStripsTopicPrefix(t *testing.T) {
	a := bybit.New()
	p, ok := a.BadPair("Invalid symbol :[orderbook.1.ETH-USDT]")
	require.True(t, ok)
	assert.Equal(t, "ETH-USDT", p.String())
}
