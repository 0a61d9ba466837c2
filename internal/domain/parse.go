package domain

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// secondsPerBlock converts user-facing time expressions into L1 block
// deadlines. Mainnet post-merge block time.
const secondsPerBlock = 12

var weiPerEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ParseOfferWindow parses an offer-validity expression such as "5m", "2h" or
// "10d" into a positive duration.
func ParseOfferWindow(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, Invalid("invalid offer duration %q", s)
	}
	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return 0, Invalid("invalid offer duration %q", s)
	}
	switch s[len(s)-1] {
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, Invalid("invalid offer duration unit in %q (use m, h or d)", s)
	}
}

// ParseDeadlineExpr converts a relative time expression ("30m", "12h", "10d",
// "1mo") into an absolute L1 block number measured from current.
func ParseDeadlineExpr(current uint64, s string) (uint64, error) {
	var value int
	var seconds int64
	var err error

	if strings.HasSuffix(s, "mo") {
		value, err = strconv.Atoi(s[:len(s)-2])
		seconds = 2_635_200 // 30.5 days
	} else {
		if len(s) < 2 {
			return 0, Invalid("invalid deadline expression %q", s)
		}
		value, err = strconv.Atoi(s[:len(s)-1])
		switch s[len(s)-1] {
		case 'm':
			seconds = 60
		case 'h':
			seconds = 3600
		case 'd':
			seconds = 86400
		default:
			return 0, Invalid("invalid deadline unit in %q (use m, h, d or mo)", s)
		}
	}
	if err != nil || value <= 0 {
		return 0, Invalid("invalid deadline expression %q", s)
	}

	blocks := uint64(int64(value)*seconds) / secondsPerBlock
	return current + blocks, nil
}

// ParseAmountExpr converts a wager-size shorthand into wei. A "$" anywhere in
// the expression denotes a fiat amount, converted at nativePrice (USD per
// native unit); otherwise the number is taken as native units directly, so
// "$10" at a price of 1800 yields 10/1800 in wei while "0.1ETH" yields
// exactly 0.1e18.
func ParseAmountExpr(expr string, nativePrice float64) (*big.Int, error) {
	fiat := strings.Contains(expr, "$")

	num := extractDecimal(expr)
	r, ok := new(big.Rat).SetString(num)
	if !ok {
		return nil, Invalid("invalid wager amount %q", expr)
	}

	if fiat {
		if nativePrice <= 0 || math.IsNaN(nativePrice) || math.IsInf(nativePrice, 0) {
			return nil, Invalid("no native asset price available to size a fiat wager")
		}
		p := new(big.Rat).SetFloat64(nativePrice)
		if p == nil {
			return nil, Invalid("no native asset price available to size a fiat wager")
		}
		r.Quo(r, p)
	}

	wei := new(big.Int).Quo(new(big.Int).Mul(r.Num(), weiPerEth), r.Denom())
	return wei, nil
}

// ParsePriceToFixed converts a USD price into the contract's 1e18 fixed-point
// unit.
func ParsePriceToFixed(price float64) (*big.Int, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, Invalid("invalid price %v", price)
	}
	r := new(big.Rat).SetFloat64(price)
	if r == nil {
		return nil, Invalid("invalid price %v", price)
	}
	return new(big.Int).Quo(new(big.Int).Mul(r.Num(), weiPerEth), r.Denom()), nil
}

// FixedToFloat converts a 1e18 fixed-point value back to a float, for display
// and outcome comparison.
func FixedToFloat(v *big.Int) float64 {
	f, _ := new(big.Rat).SetFrac(v, weiPerEth).Float64()
	return f
}

// extractDecimal keeps only the digits and decimal point of an expression,
// dropping currency markers and unit suffixes like "ETH".
func extractDecimal(s string) string {
	var b strings.Builder
	for _, c := range s {
		if (c >= '0' && c <= '9') || c == '.' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
