// internal/global/global.go
// Package global holds the protocol-wide parameters every pair is priced
// against, and resolves them into a payout context per request.
package global

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// ErrUnsupportedDenom means no minimum price is configured for the denom.
var ErrUnsupportedDenom = errors.New("denom not supported")

// Config is the global parameter set.
type Config struct {
	FairBurnAddress      string
	FairBurnFeePercent   decimal.Decimal
	MaxRoyaltyFeePercent decimal.Decimal
	MaxSwapFeePercent    decimal.Decimal
	PairCreationFee      types.Coin
	MinPrices            map[string]uint256.Int
}

// MinPrice returns the minimum gross sale amount for denom.
func (c *Config) MinPrice(denom string) (*uint256.Int, error) {
	p, ok := c.MinPrices[denom]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDenom, denom)
	}
	return &p, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.FairBurnAddress == "" {
		return errors.New("fair burn address is required")
	}
	for name, f := range map[string]decimal.Decimal{
		"fair burn fee percent":   c.FairBurnFeePercent,
		"max royalty fee percent": c.MaxRoyaltyFeePercent,
		"max swap fee percent":    c.MaxSwapFeePercent,
	} {
		if err := fixedpoint.ValidateFraction(name, f); err != nil {
			return err
		}
	}
	if len(c.MinPrices) == 0 {
		return errors.New("at least one min price is required")
	}
	if !c.PairCreationFee.Amount.IsZero() {
		if _, ok := c.MinPrices[c.PairCreationFee.Denom]; !ok {
			return fmt.Errorf("pair creation fee denom %q has no min price", c.PairCreationFee.Denom)
		}
	}
	return nil
}

// Provider supplies the current global configuration.
type Provider interface {
	GetConfig(ctx context.Context) (*Config, error)
}

// RoyaltyRegistry resolves a collection's royalty. A nil entry means none.
type RoyaltyRegistry interface {
	GetRoyalty(ctx context.Context, collection string) (*payout.RoyaltyEntry, error)
}

// StaticProvider serves a fixed Config.
type StaticProvider struct {
	cfg *Config
}

func NewStaticProvider(cfg *Config) (*StaticProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid global config: %w", err)
	}
	return &StaticProvider{cfg: cfg}, nil
}

func (p *StaticProvider) GetConfig(context.Context) (*Config, error) {
	return p.cfg, nil
}

// StaticRoyalties maps collections to their royalty.
type StaticRoyalties map[string]payout.RoyaltyEntry

func (r StaticRoyalties) GetRoyalty(_ context.Context, collection string) (*payout.RoyaltyEntry, error) {
	e, ok := r[collection]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Resolve builds the payout context for trading collection in denom.
func Resolve(ctx context.Context, provider Provider, registry RoyaltyRegistry, collection, denom string) (*payout.Context, error) {
	cfg, err := provider.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}
	minPrice, err := cfg.MinPrice(denom)
	if err != nil {
		return nil, err
	}
	royalty, err := registry.GetRoyalty(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to load royalty of %s: %w", collection, err)
	}

	return &payout.Context{
		Denom:             denom,
		MinPrice:          *minPrice,
		FairBurnAddress:   cfg.FairBurnAddress,
		FairBurnPercent:   cfg.FairBurnFeePercent,
		MaxRoyaltyPercent: cfg.MaxRoyaltyFeePercent,
		MaxSwapPercent:    cfg.MaxSwapFeePercent,
		Royalty:           royalty,
	}, nil
}
