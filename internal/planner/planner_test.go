package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/channel"
	"github.com/sawpanic/marketfeed/internal/exchange"
	"github.com/sawpanic/marketfeed/internal/pair"
	"github.com/sawpanic/marketfeed/internal/planner"
)

func pairsN(n int) []pair.Pair {
	out := make([]pair.Pair, n)
	for i := range out {
		out[i] = pair.NewBaseQuote(pair.Binance, "SYM", "USDT", 0, false, "", false)
	}
	return out
}

func TestBuildManyPackedGroupsIntoFixedSizeChunks(t *testing.T) {
	chans := []*channel.Channel{
		channel.New(pair.Binance, channel.KindTrade, pairsN(1)),
		channel.New(pair.Binance, channel.KindTrade, pairsN(1)),
		channel.New(pair.Binance, channel.KindTrade, pairsN(1)),
	}
	subs := planner.BuildManyPacked(pair.Binance, chans, 2)
	require.Len(t, subs, 2)
	assert.Len(t, subs[0].Channels, 2)
	assert.Len(t, subs[1].Channels, 1)
}

func TestBuildManyDistributedRespectsMaxConns(t *testing.T) {
	chans := make([]*channel.Channel, 10)
	for i := range chans {
		chans[i] = channel.New(pair.Bybit, channel.KindTrade, pairsN(1))
	}
	subs := planner.BuildManyDistributed(pair.Bybit, chans, 3)
	// streamSize = ceil(10/3) = 4 -> chunks of 4,4,2
	require.Len(t, subs, 3)
	assert.Len(t, subs[0].Channels, 4)
	assert.Len(t, subs[2].Channels, 2)
}

func TestBuildManyDistributedUnboundedCapsPacksOnePerConn(t *testing.T) {
	chans := []*channel.Channel{
		channel.New(pair.Okex, channel.KindTrade, pairsN(1)),
		channel.New(pair.Okex, channel.KindTrade, pairsN(1)),
	}
	subs := planner.BuildManyDistributed(pair.Okex, chans, 0)
	require.Len(t, subs, 2)
}

// TestRankedWeightedAssignsLargestBucketFirst checks SPEC_FULL.md §5's
// resolution of the ranked_weighted ambiguity: the largest weight bucket
// consumes the top-ranked symbols first.
func TestRankedWeightedAssignsLargestBucketFirst(t *testing.T) {
	ranked := pairsN(12) // 12 symbols, already rank-sorted by caller
	buckets := []planner.WeightBucket{
		{Streams: 1, SymbolsPerChannel: 3},
		{Streams: 1, SymbolsPerChannel: 9},
	}
	subs := planner.RankedWeighted(pair.Binance, buckets, []channel.Kind{channel.KindTrade}, ranked, 1024)

	require.Len(t, subs, 2)
	assert.Len(t, subs[0].Channels[0].Pairs, 9)
	assert.Len(t, subs[1].Channels[0].Pairs, 3)
}

func TestRankedWeightedPacksLeftoverSymbols(t *testing.T) {
	ranked := pairsN(5)
	buckets := []planner.WeightBucket{{Streams: 1, SymbolsPerChannel: 2}}
	subs := planner.RankedWeighted(pair.Binance, buckets, []channel.Kind{channel.KindTrade}, ranked, 2)

	// bucket consumes 2, leftover 3 packed into ceil(3/2)=2 more subs
	require.Len(t, subs, 3)
	assert.Len(t, subs[0].Channels[0].Pairs, 2)
}

func TestBuildProducesOnePlanPerExchange(t *testing.T) {
	req := planner.Request{
		Channels: map[pair.Exchange]map[channel.Kind][]pair.Pair{
			pair.Binance: {channel.KindTrade: pairsN(3)},
			pair.Bybit:   {channel.KindTrade: pairsN(2)},
		},
	}
	plans := planner.Build(req)
	require.Len(t, plans, 2)
	assert.Equal(t, pair.Binance, plans[0].Exchange)
	assert.Equal(t, pair.Bybit, plans[1].Exchange)
}

func TestBuildAllSymbolsRanksInstrumentsDescendingByRank(t *testing.T) {
	low := pair.NewBaseQuote(pair.Binance, "LOW", "USDT", 0, false, "", false)
	high := pair.NewBaseQuote(pair.Binance, "HIGH", "USDT", 0, false, "", false)
	inactive := pair.NewBaseQuote(pair.Binance, "DEAD", "USDT", 0, false, "", false)

	req := planner.Request{
		Instruments: map[pair.Exchange][]exchange.Instrument{
			pair.Binance: {
				{Pair: low, Active: true, Rank: 1},
				{Pair: high, Active: true, Rank: 100},
				{Pair: inactive, Active: false, Rank: 999},
			},
		},
		Kinds: []channel.Kind{channel.KindTrade},
		WeightBuckets: map[pair.Exchange][]planner.WeightBucket{
			pair.Binance: {{Streams: 1, SymbolsPerChannel: 2}},
		},
	}
	plans := planner.Build(req)
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Subscriptions, 1)
	pairs := plans[0].Subscriptions[0].Channels[0].Pairs
	require.Len(t, pairs, 2)
	assert.Equal(t, high, pairs[0])
	assert.Equal(t, low, pairs[1])
}

func TestBuildHonorsConnectionsPerStreamClampedToCap(t *testing.T) {
	cps := 1000
	req := planner.Request{
		Channels: map[pair.Exchange]map[channel.Kind][]pair.Pair{
			pair.Bybit: {channel.KindTrade: pairsN(25)},
		},
		ConnectionsPerStream: &cps,
	}
	plans := planner.Build(req)
	require.Len(t, plans, 1)
	// Bybit's MaxStreamsPerConn cap is 10, so 1000 clamps down to 10;
	// with a single unsplit channel the whole thing fits in one sub.
	assert.Len(t, plans[0].Subscriptions, 1)
}
