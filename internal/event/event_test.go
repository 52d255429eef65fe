package event_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/pair"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestL2GetQuote checks spec.md §8 scenario 6: a Binance diff-depth L2
// with bids=[["3000","1"]] and asks=[["3001","2"]] yields bid=3000/1,
// ask=3001/2.
func TestL2GetQuote(t *testing.T) {
	l2 := event.L2{
		Exchange: pair.Binance,
		Pair:     "ETH-USDT",
		Time:     time.Unix(1700000000, 0).UTC(),
		Bids:     []event.PriceLevel{{Price: dec("3000"), Amount: dec("1")}},
		Asks:     []event.PriceLevel{{Price: dec("3001"), Amount: dec("2")}},
	}

	q, ok := l2.GetQuote()
	require.True(t, ok)
	assert.True(t, q.BidPrice.Equal(dec("3000")))
	assert.True(t, q.BidAmount.Equal(dec("1")))
	assert.True(t, q.AskPrice.Equal(dec("3001")))
	assert.True(t, q.AskAmount.Equal(dec("2")))
}

func TestL2GetQuoteSkipsZeroAmountRows(t *testing.T) {
	l2 := event.L2{
		Bids: []event.PriceLevel{
			{Price: dec("100"), Amount: dec("0")},
			{Price: dec("99"), Amount: dec("5")},
		},
		Asks: []event.PriceLevel{{Price: dec("101"), Amount: dec("3")}},
	}

	q, ok := l2.GetQuote()
	require.True(t, ok)
	assert.True(t, q.BidPrice.Equal(dec("99")))
}

func TestL2GetQuoteEmptySide(t *testing.T) {
	l2 := event.L2{Asks: []event.PriceLevel{{Price: dec("1"), Amount: dec("1")}}}
	_, ok := l2.GetQuote()
	assert.False(t, ok)
}

func TestEventVariantsSatisfyInterface(t *testing.T) {
	var events []event.Event = []event.Event{
		event.Trade{Exchange: pair.Binance},
		event.Quote{Exchange: pair.Okex},
		event.L2{Exchange: pair.Bybit},
		event.Disconnect{Exchange: pair.Coinbase},
		event.RemovedPair{Exchange: pair.Kucoin},
		event.Other{Exchange: pair.Binance},
	}
	assert.Len(t, events, 6)
}
