package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// sortKeyWidth fits the decimal form of the largest 256-bit value.
const sortKeyWidth = 78

// ParseAmount reads a base-10 amount.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(s string) *uint256.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// SortKey renders a as a zero-padded decimal so that lexical order matches
// numeric order.
func SortKey(a *uint256.Int) string {
	dec := a.Dec()
	if len(dec) >= sortKeyWidth {
		return dec
	}
	return strings.Repeat("0", sortKeyWidth-len(dec)) + dec
}

// Float64 approximates a for metrics.
func Float64(a *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(a.ToBig()).Float64()
	return f
}
