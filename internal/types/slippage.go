// internal/types/slippage.go
package types

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// SlippageType selects how a per-unit bound is derived from a quote.
type SlippageType string

const (
	// SlippageFixed uses Value as the bound itself.
	SlippageFixed SlippageType = "fixed"
	// SlippagePercent allows the quote to move by Value percent.
	SlippagePercent SlippageType = "percent"
	// SlippageNone accepts any price.
	SlippageNone SlippageType = "none"
)

// SlippageConfig configures the bound for one order.
type SlippageConfig struct {
	Type  SlippageType `json:"type" yaml:"type"`
	Value string       `json:"value" yaml:"value"`
}

// Bound derives the per-unit bound for a quoted price. Sellers get a minimum
// output, buyers a maximum input.
func (c SlippageConfig) Bound(d Direction, quoted *uint256.Int) (*uint256.Int, error) {
	switch c.Type {
	case SlippageFixed:
		return fixedpoint.ParseAmount(c.Value)
	case SlippagePercent:
		pct, err := decimal.NewFromString(c.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid slippage percent %q: %w", c.Value, err)
		}
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("slippage percent must be within 0..100, got %s", pct)
		}
		frac := pct.Div(decimal.NewFromInt(100))
		if d == SellToPair {
			return fixedpoint.MulFloor(quoted, fixedpoint.One.Sub(frac))
		}
		return fixedpoint.MulCeil(quoted, fixedpoint.One.Add(frac))
	case SlippageNone, "":
		if d == SellToPair {
			return new(uint256.Int), nil
		}
		return new(uint256.Int).SetAllOne(), nil
	default:
		return nil, fmt.Errorf("unknown slippage type: %q", c.Type)
	}
}
