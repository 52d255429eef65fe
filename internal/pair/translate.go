package pair

import "strings"

// ToNative renders p as the exchange-native string spec.md §4.A requires,
// attempting direct construction, then delimiter substitution, then
// failing with InvalidPairError. Translation is total for well-formed
// input: every Pair built through NewBaseQuote or NewRaw with a supported
// Exchange tag succeeds unless the caller fed it something malformed.
func ToNative(p Pair) (string, error) {
	switch p.Exchange {
	case Binance:
		return toBinance(p)
	case Bybit:
		return toDashed(p, Bybit)
	case Coinbase:
		return toDashed(p, Coinbase)
	case Kucoin:
		return toDashed(p, Kucoin)
	case Okex:
		return toOkex(p)
	default:
		return "", invalid(p.Exchange, p.String(), "unknown exchange")
	}
}

// FromNative parses an exchange-native string into a normalized Pair. It
// is cheap and pure, per spec.md §3.
func FromNative(ex Exchange, native string) (Pair, error) {
	switch ex {
	case Binance:
		return fromBinance(native)
	case Bybit, Coinbase, Kucoin:
		return fromDashed(ex, native)
	case Okex:
		return fromOkex(native)
	default:
		return Pair{}, invalid(ex, native, "unknown exchange")
	}
}

// --- Binance: BASEQUOTE, no separator, uppercased ---

func toBinance(p Pair) (string, error) {
	if p.HasBaseQuote {
		return strings.ToUpper(p.Base + p.Quote), nil
	}
	if p.HasRaw {
		if p.HasDelimiter {
			base, quote, ok := splitTwo(p.Raw, p.Delimiter)
			if ok {
				return base + quote, nil
			}
		}
		cleaned := strings.ToUpper(strings.NewReplacer("-", "", "_", "", "/", "").Replace(p.Raw))
		if cleaned == "" {
			return "", invalid(Binance, p.Raw, "empty after stripping separators")
		}
		return cleaned, nil
	}
	return "", invalid(Binance, p.String(), "no raw pair or base/quote available")
}

func fromBinance(native string) (Pair, error) {
	native = strings.ToUpper(strings.TrimSpace(native))
	if native == "" {
		return Pair{}, invalid(Binance, native, "empty")
	}
	return NewRaw(Binance, native, 0, false), nil
}

// --- Bybit, Coinbase, Kucoin: BASE-QUOTE, '-' required, no '_' or '/' ---

func isDashed(s string) bool {
	return strings.Contains(s, "-") && !strings.Contains(s, "_") && !strings.Contains(s, "/")
}

func toDashed(p Pair, ex Exchange) (string, error) {
	if p.HasBaseQuote {
		return strings.ToUpper(p.Base) + "-" + strings.ToUpper(p.Quote), nil
	}
	if p.HasRaw {
		if isDashed(p.Raw) {
			return strings.ToUpper(p.Raw), nil
		}
		if p.HasDelimiter {
			base, quote, ok := splitTwo(p.Raw, p.Delimiter)
			if ok {
				return base + "-" + quote, nil
			}
		}
		substituted := strings.ToUpper(strings.NewReplacer("_", "-", "/", "-").Replace(p.Raw))
		if isDashed(substituted) {
			return substituted, nil
		}
		return "", invalid(ex, p.Raw, "contains no '-' separator")
	}
	return "", invalid(ex, p.String(), "no raw pair or base/quote available")
}

func fromDashed(ex Exchange, native string) (Pair, error) {
	native = strings.ToUpper(strings.TrimSpace(native))
	base, quote, ok := splitTwo(native, '-')
	if !ok {
		return Pair{}, invalid(ex, native, "expected BASE-QUOTE")
	}
	return NewBaseQuote(ex, base, quote, '-', true, "", false), nil
}

// --- Okex: BASE-QUOTE[-EXTRA], '-' separated, may carry an extra segment ---

func toOkex(p Pair) (string, error) {
	if p.HasBaseQuote {
		if p.HasExtra {
			return strings.ToUpper(p.Base) + "-" + strings.ToUpper(p.Quote) + "-" + strings.ToUpper(p.Extra), nil
		}
		return strings.ToUpper(p.Base) + "-" + strings.ToUpper(p.Quote), nil
	}
	if p.HasRaw {
		if isDashed(p.Raw) {
			return strings.ToUpper(p.Raw), nil
		}
		if p.HasDelimiter {
			parts := strings.Split(p.Raw, string(rune(p.Delimiter)))
			if len(parts) >= 2 {
				for i := range parts {
					parts[i] = strings.ToUpper(parts[i])
				}
				joined := strings.Join(parts, "-")
				if isDashed(joined) {
					return joined, nil
				}
			}
		}
		substituted := strings.ToUpper(strings.NewReplacer("_", "-", "/", "-").Replace(p.Raw))
		if isDashed(substituted) {
			return substituted, nil
		}
		return "", invalid(Okex, p.Raw, "contains no '-' separator")
	}
	return "", invalid(Okex, p.String(), "no raw pair or base/quote available")
}

func fromOkex(native string) (Pair, error) {
	native = strings.ToUpper(strings.TrimSpace(native))
	parts := strings.Split(native, "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, invalid(Okex, native, "expected BASE-QUOTE[-EXTRA]")
	}
	if len(parts) == 2 {
		return NewBaseQuote(Okex, parts[0], parts[1], '-', true, "", false), nil
	}
	extra := strings.Join(parts[2:], "-")
	return NewBaseQuote(Okex, parts[0], parts[1], '-', true, extra, true), nil
}

// IsValidNative reports whether native is already a legal wire-format pair
// string for ex, without attempting any substitution. Used by bad-pair
// scanning (pair.ExtractFirstLegal) to pick the right token out of a
// free-text error message.
func IsValidNative(ex Exchange, native string) bool {
	switch ex {
	case Binance:
		return native != "" && strings.TrimSpace(native) == strings.ToUpper(native) && !strings.ContainsAny(native, "-_/ ")
	case Bybit, Coinbase, Kucoin:
		return isDashed(native)
	case Okex:
		return isDashed(native)
	default:
		return false
	}
}
