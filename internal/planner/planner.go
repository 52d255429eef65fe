// Package planner implements the builder of spec.md §4.F: given a
// per-exchange, per-channel-kind pair request, it produces concrete
// (adapter, subscription) connection plans honoring each venue's
// connection and streams-per-connection caps (internal/exchange.Caps).
// Grounded on original_source/src/exchanges/{binance,bybit}/ws/builder.rs
// (build_many_packed / build_many_distributed / build_ranked_weighted_
// all_symbols_util) and spec.md §4.F's formalized versions of the same
// three algorithms.
package planner

import (
	"sort"

	"github.com/sawpanic/marketfeed/internal/channel"
	"github.com/sawpanic/marketfeed/internal/exchange"
	"github.com/sawpanic/marketfeed/internal/pair"
)

// WeightBucket is one (streams, symbols_per_channel) weight entry for
// RankedWeighted, per spec.md §4.F.
type WeightBucket struct {
	Streams           int
	SymbolsPerChannel int
}

// Request is the builder's input: a per-exchange, per-channel-kind pair
// list plus the optional tuning knobs spec.md §4.F names.
type Request struct {
	Channels map[pair.Exchange]map[channel.Kind][]pair.Pair

	// ConnectionsPerStream, if set, selects BuildManyPacked over
	// BuildManyDistributed.
	ConnectionsPerStream *int
	// SplitChannelSize, if set, pre-splits every channel via SplitChannel
	// before grouping into connections.
	SplitChannelSize *int

	// Instruments, keyed by exchange, switches that exchange's plan from
	// the Channels path to the all-symbols ranked_weighted one
	// (spec.md §4.F): active instruments are ranked descending by
	// exchange.Instrument.Rank and fanned into Kinds channels via
	// RankedWeighted. An exchange present in both Channels and
	// Instruments builds from Instruments.
	Instruments map[pair.Exchange][]exchange.Instrument
	// Kinds names the channel kinds built for every exchange in the
	// Instruments path.
	Kinds []channel.Kind
	// WeightBuckets optionally overrides, per exchange, the single
	// default bucket RankedWeighted otherwise derives from exchange.Caps.
	WeightBuckets map[pair.Exchange][]WeightBucket
}

// Plan is one exchange's set of connection-ready subscriptions.
type Plan struct {
	Exchange      pair.Exchange
	Subscriptions []*channel.Subscription
}

// SplitChannel partitions c's pairs into ⌈len/n⌉ sub-channels of size ≤ n
// (spec.md §4.F split_channel; delegates to channel.Channel.SplitBySize,
// which already implements the identical operation for component C).
func SplitChannel(c *channel.Channel, n int) []*channel.Channel {
	return c.SplitBySize(n)
}

// BuildManyPacked groups a flat channel list into subscriptions of at most
// perStream channels each - one connection per chunk (spec.md §4.F
// build_many_packed).
func BuildManyPacked(ex pair.Exchange, channels []*channel.Channel, perStream int) []*channel.Subscription {
	if perStream <= 0 {
		perStream = 1
	}
	var subs []*channel.Subscription
	for i := 0; i < len(channels); i += perStream {
		end := i + perStream
		if end > len(channels) {
			end = len(channels)
		}
		sub := channel.NewSubscription(ex)
		for _, c := range channels[i:end] {
			sub.AddChannel(c)
		}
		subs = append(subs, sub)
	}
	return subs
}

// BuildManyDistributed spreads a flat channel list evenly across at most
// maxConns connections: stream_size = max(1, ⌈len/maxConns⌉) (spec.md
// §4.F build_many_distributed). maxConns <= 0 means implementation-defined
// / unbounded (Binance, Coinbase, Okex per exchange.Caps) - treated as "no
// cap", so each chunk holds exactly one channel.
func BuildManyDistributed(ex pair.Exchange, channels []*channel.Channel, maxConns int) []*channel.Subscription {
	streamSize := 1
	if maxConns > 0 {
		if s := (len(channels) + maxConns - 1) / maxConns; s > streamSize {
			streamSize = s
		}
	}
	return BuildManyPacked(ex, channels, streamSize)
}

// RankedWeighted assigns symbols ranked descending (ranked[0] is the
// highest-ranked, e.g. highest 24h volume) into buckets sized by weight,
// largest bucket first, with leftover symbols packed into additional
// streams of maxStreamsPerConn each (spec.md §4.F ranked_weighted).
//
// original_source's build_ranked_weighted_all_symbols_util sorts its
// weight buckets descending by symbols_per_channel but then Vec::pop()s
// from the end of that descending order, so it actually assigns the
// *smallest* bucket the highest-ranked symbols first - the "unterminated
// sort" ambiguity spec.md's Open Questions calls out. SPEC_FULL.md §5
// resolves it the other way, matching spec.md §4.F's prose directly:
// "sorted descending by symbols_per_channel, assign the top-ranked
// symbols to the first weight bucket" - largest bucket first.
func RankedWeighted(ex pair.Exchange, buckets []WeightBucket, kinds []channel.Kind, ranked []pair.Pair, maxStreamsPerConn int) []*channel.Subscription {
	sorted := append([]WeightBucket(nil), buckets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SymbolsPerChannel > sorted[j].SymbolsPerChannel })
	if maxStreamsPerConn <= 0 {
		maxStreamsPerConn = len(ranked)
		if maxStreamsPerConn == 0 {
			maxStreamsPerConn = 1
		}
	}

	var channels []*channel.Channel
	idx := 0
	for _, b := range sorted {
		for s := 0; s < b.Streams && idx < len(ranked); s++ {
			end := idx + b.SymbolsPerChannel
			if end > len(ranked) {
				end = len(ranked)
			}
			chunk := ranked[idx:end]
			idx = end
			if len(chunk) == 0 {
				continue
			}
			for _, k := range kinds {
				channels = append(channels, channel.New(ex, k, chunk))
			}
		}
	}

	if idx < len(ranked) {
		rest := ranked[idx:]
		for _, k := range kinds {
			for i := 0; i < len(rest); i += maxStreamsPerConn {
				end := i + maxStreamsPerConn
				if end > len(rest) {
					end = len(rest)
				}
				channels = append(channels, channel.New(ex, k, rest[i:end]))
			}
		}
	}

	var subs []*channel.Subscription
	for _, c := range channels {
		sub := channel.NewSubscription(ex)
		sub.AddChannel(c)
		subs = append(subs, sub)
	}
	return subs
}

// defaultWeightBuckets derives a single catch-all RankedWeighted bucket
// from ex's caps when the caller supplies none: one connection per
// MaxConns (or all of n symbols' worth of connections when unbounded),
// sized at MaxStreamsPerConn symbols each (or all n when unbounded).
func defaultWeightBuckets(caps exchange.CapModel, n int) []WeightBucket {
	streams := caps.MaxConns
	if streams <= 0 {
		streams = n
	}
	if streams <= 0 {
		streams = 1
	}
	perChannel := caps.MaxStreamsPerConn
	if perChannel <= 0 {
		perChannel = n
	}
	if perChannel <= 0 {
		perChannel = 1
	}
	return []WeightBucket{{Streams: streams, SymbolsPerChannel: perChannel}}
}

// buildRankedWeighted implements the all-symbols path of Build: it ranks
// ex's active instruments descending by Rank and routes them through
// RankedWeighted, using req.WeightBuckets[ex] when supplied and a
// caps-derived default bucket otherwise.
func buildRankedWeighted(ex pair.Exchange, instruments []exchange.Instrument, req Request) []*channel.Subscription {
	active := make([]exchange.Instrument, 0, len(instruments))
	for _, ins := range instruments {
		if ins.Active {
			active = append(active, ins)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Rank > active[j].Rank })

	ranked := make([]pair.Pair, len(active))
	for i, ins := range active {
		ranked[i] = ins.Pair
	}

	caps := exchange.Caps(ex)
	buckets := req.WeightBuckets[ex]
	if len(buckets) == 0 {
		buckets = defaultWeightBuckets(caps, len(ranked))
	}
	return RankedWeighted(ex, buckets, req.Kinds, ranked, caps.MaxStreamsPerConn)
}

// Build materializes req into one Plan per exchange, honoring each
// venue's caps from exchange.Caps. When req.ConnectionsPerStream is set,
// channels are packed that many per connection (clamped to the venue's
// MaxStreamsPerConn); otherwise they are spread via BuildManyDistributed
// against the venue's MaxConns. An exchange present in req.Instruments
// builds via the ranked_weighted all-symbols path instead.
func Build(req Request) []Plan {
	seen := make(map[pair.Exchange]bool, len(req.Channels)+len(req.Instruments))
	for ex := range req.Channels {
		seen[ex] = true
	}
	for ex := range req.Instruments {
		seen[ex] = true
	}
	exchanges := make([]pair.Exchange, 0, len(seen))
	for ex := range seen {
		exchanges = append(exchanges, ex)
	}
	sort.Slice(exchanges, func(i, j int) bool { return exchanges[i] < exchanges[j] })

	var plans []Plan
	for _, ex := range exchanges {
		if instruments, ok := req.Instruments[ex]; ok {
			plans = append(plans, Plan{Exchange: ex, Subscriptions: buildRankedWeighted(ex, instruments, req)})
			continue
		}

		caps := exchange.Caps(ex)
		var flat []*channel.Channel
		kinds := make([]channel.Kind, 0, len(req.Channels[ex]))
		for k := range req.Channels[ex] {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

		for _, kind := range kinds {
			pairs := req.Channels[ex][kind]
			c := channel.New(ex, kind, pairs)
			if req.SplitChannelSize != nil {
				flat = append(flat, SplitChannel(c, *req.SplitChannelSize)...)
			} else {
				flat = append(flat, c)
			}
		}

		var subs []*channel.Subscription
		if req.ConnectionsPerStream != nil {
			perStream := *req.ConnectionsPerStream
			if caps.MaxStreamsPerConn > 0 && perStream > caps.MaxStreamsPerConn {
				perStream = caps.MaxStreamsPerConn
			}
			subs = BuildManyPacked(ex, flat, perStream)
		} else {
			subs = BuildManyDistributed(ex, flat, caps.MaxConns)
		}

		plans = append(plans, Plan{Exchange: ex, Subscriptions: subs})
	}
	return plans
}
