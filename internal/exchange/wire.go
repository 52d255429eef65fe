package exchange

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/marketfeed/internal/event"
)

// DecimalFromString parses a venue's string-encoded number field. Every
// adapter's trade/quote/L2 parsers route price and amount fields through
// this so a malformed numeric string becomes a deserialize error instead of
// a silently-zeroed value.
func DecimalFromString(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// LevelsFromRows converts a venue's [ [price, amount], ... ] order-book rows
// into normalized PriceLevel values.
func LevelsFromRows(rows [][]string) ([]event.PriceLevel, error) {
	out := make([]event.PriceLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("order book row has %d fields, want 2", len(row))
		}
		price, err := DecimalFromString(row[0])
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		amount, err := DecimalFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		out = append(out, event.PriceLevel{Price: price, Amount: amount})
	}
	return out, nil
}

// MSToTime converts a millisecond Unix timestamp to time.Time. Callers
// whose venue sends another unit (Kucoin's match time is in nanoseconds)
// convert before calling. Zero maps to the zero time so callers can tell
// "absent" from "epoch".
func MSToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
