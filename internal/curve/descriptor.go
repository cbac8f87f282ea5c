package curve

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// Descriptor is the flat, string-typed form of a Curve used by storage and
// the HTTP API.
type Descriptor struct {
	Kind      Kind   `json:"type" yaml:"type"`
	SpotPrice string `json:"spot_price,omitempty" yaml:"spot_price"`
	Delta     string `json:"delta,omitempty" yaml:"delta"`
}

// Describe flattens c.
func Describe(c Curve) Descriptor {
	switch c := c.(type) {
	case Linear:
		return Descriptor{Kind: KindLinear, SpotPrice: c.SpotPrice.Dec(), Delta: c.Delta.Dec()}
	case Exponential:
		return Descriptor{Kind: KindExponential, SpotPrice: c.SpotPrice.Dec(), Delta: c.DeltaPercent.String()}
	case ConstantProduct:
		return Descriptor{Kind: KindConstantProduct}
	default:
		return Descriptor{}
	}
}

// Build parses d into a validated Curve.
func (d Descriptor) Build() (Curve, error) {
	c, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode parses d without validating it. Stored curves may have advanced to
// states a new config would be refused in, such as a zero spot price.
func (d Descriptor) Decode() (Curve, error) {
	var c Curve
	switch d.Kind {
	case KindLinear:
		spot, err := fixedpoint.ParseAmount(d.SpotPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: spot_price: %v", ErrInvalidCurve, err)
		}
		delta, err := fixedpoint.ParseAmount(d.Delta)
		if err != nil {
			return nil, fmt.Errorf("%w: delta: %v", ErrInvalidCurve, err)
		}
		c = Linear{SpotPrice: *spot, Delta: *delta}

	case KindExponential:
		spot, err := fixedpoint.ParseAmount(d.SpotPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: spot_price: %v", ErrInvalidCurve, err)
		}
		delta, err := decimal.NewFromString(d.Delta)
		if err != nil {
			return nil, fmt.Errorf("%w: delta: %v", ErrInvalidCurve, err)
		}
		c = Exponential{SpotPrice: *spot, DeltaPercent: delta}

	case KindConstantProduct:
		c = ConstantProduct{}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurve, d.Kind)
	}
	return c, nil
}
