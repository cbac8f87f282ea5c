package pair

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// Validate checks the pair type and curve combination against the swap fee
// cap in force when the owner submits the config.
func (c Config) Validate(maxSwapFeePercent decimal.Decimal) error {
	if c.Type == nil || c.Curve == nil {
		return fmt.Errorf("%w: type and bonding curve are required", ErrInvalidConfig)
	}

	switch t := c.Type.(type) {
	case TokenType, NftType:
		if _, ok := c.Curve.(curve.ConstantProduct); ok {
			return fmt.Errorf("%w: constant product curves need a trade pair", ErrInvalidConfig)
		}
	case TradeType:
		if err := fixedpoint.ValidateFraction("swap_fee_percent", t.SwapFeePercent); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if t.SwapFeePercent.GreaterThan(maxSwapFeePercent) {
			return fmt.Errorf("%w: swap fee %s above maximum %s", ErrInvalidConfig, t.SwapFeePercent, maxSwapFeePercent)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidConfig, ErrUnknownType)
	}

	if err := c.Curve.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ConfigPatch carries optional config changes.
type ConfigPatch struct {
	Type           Type
	Curve          curve.Curve
	IsActive       *bool
	AssetRecipient *string
}

// UpdateConfig applies patch if the resulting config is valid.
func (p *Pair) UpdateConfig(patch ConfigPatch, maxSwapFeePercent decimal.Decimal) error {
	next := p.Config
	if patch.Type != nil {
		next.Type = patch.Type
	}
	if patch.Curve != nil {
		next.Curve = patch.Curve
	}
	if patch.IsActive != nil {
		next.IsActive = *patch.IsActive
	}
	if patch.AssetRecipient != nil {
		next.AssetRecipient = *patch.AssetRecipient
	}

	if err := next.Validate(maxSwapFeePercent); err != nil {
		return err
	}
	p.Config = next
	return nil
}
