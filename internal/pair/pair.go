// Package pair implements the trading-pair model shared by every exchange
// adapter: a normalized representation plus the per-venue native-string
// translation rules in spec.md §4.A.
package pair

import (
	"fmt"
	"strings"

	"github.com/sawpanic/marketfeed/internal/xerrors"
)

// Exchange tags the venue a Pair or event originated from.
type Exchange string

const (
	Binance  Exchange = "binance"
	Bybit    Exchange = "bybit"
	Kucoin   Exchange = "kucoin"
	Coinbase Exchange = "coinbase"
	Okex     Exchange = "okex"
)

// Pair carries an owning exchange tag plus whatever combination of raw
// string and base/quote split the caller constructed it with. At least one
// of {Raw, (Base, Quote)} is always present - the constructors below are
// the only way to build one and they enforce it.
type Pair struct {
	Exchange Exchange

	Raw    string
	HasRaw bool

	Base         string
	Quote        string
	HasBaseQuote bool

	Delimiter    byte
	HasDelimiter bool

	Extra    string
	HasExtra bool
}

// NewBaseQuote builds a Pair from a base/quote split, optionally carrying
// the delimiter the caller observed it under and an extra segment (futures
// expiry, Okex's trailing settlement currency, ...).
func NewBaseQuote(ex Exchange, base, quote string, delim byte, hasDelim bool, extra string, hasExtra bool) Pair {
	return Pair{
		Exchange:     ex,
		Base:         strings.ToUpper(base),
		Quote:        strings.ToUpper(quote),
		HasBaseQuote: true,
		Delimiter:    delim,
		HasDelimiter: hasDelim,
		Extra:        strings.ToUpper(extra),
		HasExtra:     hasExtra,
	}
}

// NewRaw builds a Pair from a free-form native string, optionally tagging
// the delimiter it was split on for later round-tripping.
func NewRaw(ex Exchange, raw string, delim byte, hasDelim bool) Pair {
	return Pair{
		Exchange:     ex,
		Raw:          raw,
		HasRaw:       true,
		Delimiter:    delim,
		HasDelimiter: hasDelim,
	}
}

// String renders a human-readable form for logging; it is not a wire
// format and must not be parsed back.
func (p Pair) String() string {
	if p.HasBaseQuote {
		if p.HasExtra {
			return fmt.Sprintf("%s-%s-%s", p.Base, p.Quote, p.Extra)
		}
		return fmt.Sprintf("%s-%s", p.Base, p.Quote)
	}
	return p.Raw
}

// Equal compares two pairs by their normalized base/quote/extra identity,
// falling back to raw-string equality when neither side has a base/quote
// split. When only one side has a split, the two String forms are compared
// case-insensitively with '-', '_' and '/' removed, so a base/quote pair
// equals its separator-less native form (e.g. Binance's "ETHUSDT").
// Exchange is not compared: round-trip laws (spec.md §8) check
// normalize(denormalize(p)) == p within one exchange's own pairs.
func (p Pair) Equal(o Pair) bool {
	if p.HasBaseQuote && o.HasBaseQuote {
		return p.Base == o.Base && p.Quote == o.Quote && p.Extra == o.Extra
	}
	if p.HasRaw && o.HasRaw {
		return strings.EqualFold(p.Raw, o.Raw)
	}
	strip := strings.NewReplacer("-", "", "_", "", "/", "")
	return strings.EqualFold(strip.Replace(p.String()), strip.Replace(o.String()))
}

// InvalidPairError reports a pair that failed exchange-specific
// translation. It wraps xerrors.ErrInvalidPair so callers can match with
// errors.Is.
type InvalidPairError struct {
	Exchange Exchange
	Input    string
	Reason   string
}

func (e *InvalidPairError) Error() string {
	return fmt.Sprintf("%v: %s pair %q: %s", xerrors.ErrInvalidPair, e.Exchange, e.Input, e.Reason)
}

func (e *InvalidPairError) Unwrap() error { return xerrors.ErrInvalidPair }

func invalid(ex Exchange, input, reason string) error {
	return &InvalidPairError{Exchange: ex, Input: input, Reason: reason}
}

// splitTwo splits s on delim into exactly two non-empty uppercase parts.
func splitTwo(s string, delim byte) (string, string, bool) {
	idx := strings.IndexByte(s, delim)
	if idx <= 0 || idx >= len(s)-1 {
		return "", "", false
	}
	return strings.ToUpper(s[:idx]), strings.ToUpper(s[idx+1:]), true
}

// ExtractFirstLegal scans whitespace-split tokens of a free-text message
// (e.g. an exchange's "invalid symbol" error string) and returns the first
// token isValid accepts, per spec.md §4.A's bad-pair parsing rule.
func ExtractFirstLegal(text string, isValid func(string) bool) (string, bool) {
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, "[]:,.;\"'")
		if isValid(tok) {
			return tok, true
		}
	}
	return "", false
}
