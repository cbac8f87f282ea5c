// internal/curve/curve.go
// Package curve implements the bonding-curve price transitions used by pairs.
package curve

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

var (
	// ErrNoQuote means the curve cannot price a unit in the requested direction.
	ErrNoQuote = errors.New("curve cannot quote")
	// ErrUnknownCurve is returned for a Curve outside this package.
	ErrUnknownCurve = errors.New("unknown bonding curve")
	// ErrInvalidCurve wraps parameter validation failures.
	ErrInvalidCurve = errors.New("invalid bonding curve")
)

// Kind identifies a curve family.
type Kind string

const (
	KindLinear          Kind = "linear"
	KindExponential     Kind = "exponential"
	KindConstantProduct Kind = "constant_product"
)

// Curve is one of Linear, Exponential or ConstantProduct.
type Curve interface {
	Kind() Kind
	Validate() error
	sealed()
}

// Linear steps the spot price by a fixed amount per unit.
type Linear struct {
	SpotPrice uint256.Int
	Delta     uint256.Int
}

// Exponential steps the spot price by a fixed fraction per unit.
type Exponential struct {
	SpotPrice    uint256.Int
	DeltaPercent decimal.Decimal
}

// ConstantProduct derives price from the pair's reserves and stores nothing.
type ConstantProduct struct{}

func (Linear) Kind() Kind          { return KindLinear }
func (Exponential) Kind() Kind     { return KindExponential }
func (ConstantProduct) Kind() Kind { return KindConstantProduct }

func (Linear) sealed()          {}
func (Exponential) sealed()     {}
func (ConstantProduct) sealed() {}

func (c Linear) Validate() error {
	if c.SpotPrice.IsZero() {
		return fmt.Errorf("%w: linear spot price must be positive", ErrInvalidCurve)
	}
	return nil
}

func (c Exponential) Validate() error {
	if c.SpotPrice.IsZero() {
		return fmt.Errorf("%w: exponential spot price must be positive", ErrInvalidCurve)
	}
	if !c.DeltaPercent.IsPositive() {
		return fmt.Errorf("%w: exponential delta must be positive, got %s", ErrInvalidCurve, c.DeltaPercent)
	}
	return nil
}

func (ConstantProduct) Validate() error { return nil }

// Reserves is the escrow state ConstantProduct prices against.
type Reserves struct {
	TotalTokens uint256.Int
	TotalNFTs   uint64
}

// Price returns the gross price of the next unit traded in direction d.
func Price(c Curve, d types.Direction, r Reserves) (*uint256.Int, error) {
	switch c := c.(type) {
	case Linear:
		if d == types.SellToPair {
			if c.Delta.Gt(&c.SpotPrice) {
				return nil, ErrNoQuote
			}
			return fixedpoint.Sub(&c.SpotPrice, &c.Delta)
		}
		return fixedpoint.Add(&c.SpotPrice, &c.Delta)

	case Exponential:
		factor := fixedpoint.One.Add(c.DeltaPercent)
		if d == types.SellToPair {
			return fixedpoint.DivFloor(&c.SpotPrice, factor)
		}
		return fixedpoint.MulCeil(&c.SpotPrice, factor)

	case ConstantProduct:
		return constantProductPrice(d, r)

	default:
		return nil, ErrUnknownCurve
	}
}

func constantProductPrice(d types.Direction, r Reserves) (*uint256.Int, error) {
	if d == types.SellToPair {
		if r.TotalNFTs < 1 {
			return nil, ErrNoQuote
		}
		return fixedpoint.Div(&r.TotalTokens, uint256.NewInt(r.TotalNFTs+1))
	}
	if r.TotalNFTs <= 1 {
		return nil, ErrNoQuote
	}
	return fixedpoint.Mul(&r.TotalTokens, uint256.NewInt(r.TotalNFTs-1))
}

// Advance returns the curve after one unit traded in direction d. The new
// spot price is the price that unit traded at.
func Advance(c Curve, d types.Direction, r Reserves) (Curve, error) {
	switch c := c.(type) {
	case Linear:
		price, err := Price(c, d, r)
		if err != nil {
			return nil, err
		}
		c.SpotPrice = *price
		return c, nil

	case Exponential:
		price, err := Price(c, d, r)
		if err != nil {
			return nil, err
		}
		c.SpotPrice = *price
		return c, nil

	case ConstantProduct:
		return c, nil

	default:
		return nil, ErrUnknownCurve
	}
}
