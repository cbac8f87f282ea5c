// internal/payout/payout.go
// Package payout splits a gross sale amount into fair burn, royalty, swap fee
// and seller proceeds.
package payout

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// ErrBelowMinPrice means the gross amount is under the denom's minimum.
var ErrBelowMinPrice = errors.New("sale amount below minimum price")

// RoyaltyEntry is a collection's registered royalty.
type RoyaltyEntry struct {
	Recipient    string
	SharePercent decimal.Decimal
}

// Context carries everything Split needs, resolved once per request.
type Context struct {
	Denom             string
	MinPrice          uint256.Int
	FairBurnAddress   string
	FairBurnPercent   decimal.Decimal
	MaxRoyaltyPercent decimal.Decimal
	MaxSwapPercent    decimal.Decimal
	Royalty           *RoyaltyEntry
}

// Split partitions gross. Fees are taken in a fixed order (burn, royalty,
// swap), each rounded up; the seller receives what is left.
func (c *Context) Split(gross *uint256.Int, swapFeePercent decimal.Decimal, swapRecipient string) (*QuoteSummary, error) {
	if gross.Lt(&c.MinPrice) {
		return nil, ErrBelowMinPrice
	}

	remaining := new(uint256.Int).Set(gross)

	burn, err := c.take(remaining, gross, c.FairBurnPercent)
	if err != nil {
		return nil, fmt.Errorf("fair burn: %w", err)
	}
	summary := &QuoteSummary{
		FairBurn: Payment{Recipient: c.FairBurnAddress, Amount: *burn},
	}

	if c.Royalty != nil {
		pct := decimal.Min(c.Royalty.SharePercent, c.MaxRoyaltyPercent)
		royalty, err := c.take(remaining, gross, pct)
		if err != nil {
			return nil, fmt.Errorf("royalty: %w", err)
		}
		if !royalty.IsZero() {
			summary.Royalty = &Payment{Recipient: c.Royalty.Recipient, Amount: *royalty}
		}
	}

	swap, err := c.take(remaining, gross, decimal.Min(swapFeePercent, c.MaxSwapPercent))
	if err != nil {
		return nil, fmt.Errorf("swap fee: %w", err)
	}
	if !swap.IsZero() {
		summary.Swap = &Payment{Recipient: swapRecipient, Amount: *swap}
	}

	summary.SellerAmount = *remaining
	return summary, nil
}

// take subtracts ceil(gross * pct) from remaining and returns the fee.
func (c *Context) take(remaining, gross *uint256.Int, pct decimal.Decimal) (*uint256.Int, error) {
	fee, err := fixedpoint.MulCeil(gross, pct)
	if err != nil {
		return nil, err
	}
	left, err := fixedpoint.Sub(remaining, fee)
	if err != nil {
		return nil, err
	}
	remaining.Set(left)
	return fee, nil
}

// Validate checks the protocol caps are usable fractions.
func (c *Context) Validate() error {
	if err := fixedpoint.ValidateFraction("fair_burn_fee_percent", c.FairBurnPercent); err != nil {
		return err
	}
	if err := fixedpoint.ValidateFraction("max_royalty_fee_percent", c.MaxRoyaltyPercent); err != nil {
		return err
	}
	if err := fixedpoint.ValidateFraction("max_swap_fee_percent", c.MaxSwapPercent); err != nil {
		return err
	}
	if c.Royalty != nil && c.Royalty.SharePercent.IsNegative() {
		return fmt.Errorf("royalty share must not be negative, got %s", c.Royalty.SharePercent)
	}
	return nil
}
