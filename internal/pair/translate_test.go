package pair_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/pair"
)

func TestToNative(t *testing.T) {
	cases := []struct {
		name string
		in   pair.Pair
		want string
	}{
		{
			name: "binance base quote",
			in:   pair.NewBaseQuote(pair.Binance, "eth", "usdt", 0, false, "", false),
			want: "ETHUSDT",
		},
		{
			name: "binance raw with delimiter",
			in:   pair.NewRaw(pair.Binance, "eth/usdt", '/', true),
			want: "ETHUSDT",
		},
		{
			name: "bybit base quote",
			in:   pair.NewBaseQuote(pair.Bybit, "btc", "usdt", 0, false, "", false),
			want: "BTC-USDT",
		},
		{
			name: "bybit raw already dashed",
			in:   pair.NewRaw(pair.Bybit, "btc-usdt", 0, false),
			want: "BTC-USDT",
		},
		{
			name: "bybit raw underscore substitution",
			in:   pair.NewRaw(pair.Bybit, "btc_usdt", '_', true),
			want: "BTC-USDT",
		},
		{
			name: "okex base quote with extra",
			in:   pair.NewBaseQuote(pair.Okex, "eth", "usdc", 0, false, "yesssssss", true),
			want: "ETH-USDC-YESSSSSSS",
		},
		{
			name: "okex raw slash substitution with extra",
			in:   pair.NewRaw(pair.Okex, "eth/usdc/123-1234as-fd", '/', true),
			want: "ETH-USDC-123-1234AS-FD",
		},
		{
			name: "kucoin base quote",
			in:   pair.NewBaseQuote(pair.Kucoin, "ada", "usdt", 0, false, "", false),
			want: "ADA-USDT",
		},
		{
			name: "coinbase base quote",
			in:   pair.NewBaseQuote(pair.Coinbase, "ltc", "usd", 0, false, "", false),
			want: "LTC-USD",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := pair.ToNative(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToNativeInvalid(t *testing.T) {
	_, err := pair.ToNative(pair.NewRaw(pair.Bybit, "btcusdt", 0, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no '-'")
}

// TestRoundTrip checks spec.md §8's invariant: normalize(denormalize(p, e))
// == p for a pair that originated on e.
func TestRoundTrip(t *testing.T) {
	exchanges := []pair.Exchange{pair.Binance, pair.Bybit, pair.Coinbase, pair.Kucoin, pair.Okex}
	for _, ex := range exchanges {
		t.Run(string(ex), func(t *testing.T) {
			original := pair.NewBaseQuote(ex, "ETH", "USDT", 0, false, "", false)
			native, err := pair.ToNative(original)
			require.NoError(t, err)

			normalized, err := pair.FromNative(ex, native)
			require.NoError(t, err)

			assert.True(t, original.Equal(normalized), "expected %+v to equal %+v", original, normalized)
		})
	}
}

func TestExtractFirstLegal(t *testing.T) {
	msg := "Invalid symbol :[FOOBAR]"
	tok, ok := pair.ExtractFirstLegal(msg, func(s string) bool {
		return s != "" && s == "FOOBAR"
	})
	require.True(t, ok)
	assert.Equal(t, "FOOBAR", tok)
}
