package channel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/channel"
	"github.com/sawpanic/marketfeed/internal/pair"
)

func pairs(n int) []pair.Pair {
	out := make([]pair.Pair, n)
	bases := []string{"BTC", "ETH", "ADA", "SOL", "XRP", "DOT", "LTC"}
	for i := 0; i < n; i++ {
		out[i] = pair.NewBaseQuote(pair.Bybit, bases[i%len(bases)]+string(rune('A'+i)), "USDT", 0, false, "", false)
	}
	return out
}

func TestSplitBySize(t *testing.T) {
	c := channel.New(pair.Bybit, channel.KindTrade, pairs(7))

	chunks := c.SplitBySize(3)
	require.Len(t, chunks, 3)
	assert.Equal(t, 3, chunks[0].CountEntries())
	assert.Equal(t, 3, chunks[1].CountEntries())
	assert.Equal(t, 1, chunks[2].CountEntries())
}

func TestSplitBySizeLargerThanInput(t *testing.T) {
	c := channel.New(pair.Bybit, channel.KindTrade, pairs(2))
	chunks := c.SplitBySize(10)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].CountEntries())
}

func TestRemovePairEmptiesChannel(t *testing.T) {
	p := pair.NewBaseQuote(pair.Bybit, "BTC", "USDT", 0, false, "", false)
	c := channel.New(pair.Bybit, channel.KindTrade, []pair.Pair{p})

	removed, empty := c.RemovePair(p)
	assert.True(t, removed)
	assert.True(t, empty)
}

func TestRemovePairLeavesNonEmptyChannel(t *testing.T) {
	a := pair.NewBaseQuote(pair.Bybit, "BTC", "USDT", 0, false, "", false)
	b := pair.NewBaseQuote(pair.Bybit, "ETH", "USDT", 0, false, "", false)
	c := channel.New(pair.Bybit, channel.KindTrade, []pair.Pair{a, b})

	removed, empty := c.RemovePair(a)
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, 1, c.CountEntries())
}

func TestSubscriptionRemovePairTerminatesWhenAllChannelsEmpty(t *testing.T) {
	p := pair.NewBaseQuote(pair.Coinbase, "LOOM", "USDC", 0, false, "", false)
	sub := channel.NewSubscription(pair.Coinbase)
	sub.AddChannel(channel.New(pair.Coinbase, channel.KindTrade, []pair.Pair{p}))

	_, empty := sub.RemovePair(p)
	assert.True(t, empty)
}

func TestSubscriptionRemovePairKeepsOtherChannelsAlive(t *testing.T) {
	p := pair.NewBaseQuote(pair.Coinbase, "LOOM", "USDC", 0, false, "", false)
	other := pair.NewBaseQuote(pair.Coinbase, "BTC", "USD", 0, false, "", false)

	sub := channel.NewSubscription(pair.Coinbase)
	sub.AddChannel(channel.New(pair.Coinbase, channel.KindTrade, []pair.Pair{p}))
	sub.AddChannel(channel.New(pair.Coinbase, channel.KindQuote, []pair.Pair{other}))

	_, empty := sub.RemovePair(p)
	assert.False(t, empty)
}

func TestStatusChannelDoesNotCountTowardEmptiness(t *testing.T) {
	sub := channel.NewSubscription(pair.Okex)
	sub.AddChannel(channel.New(pair.Okex, channel.KindStatus, nil))
	assert.True(t, sub.IsEmpty())
}
