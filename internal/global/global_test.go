package global

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) GetConfig(ctx context.Context) (*Config, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(*Config)
	return cfg, args.Error(1)
}

type mockRegistry struct{ mock.Mock }

func (m *mockRegistry) GetRoyalty(ctx context.Context, collection string) (*payout.RoyaltyEntry, error) {
	args := m.Called(ctx, collection)
	e, _ := args.Get(0).(*payout.RoyaltyEntry)
	return e, args.Error(1)
}

func validConfig() *Config {
	return &Config{
		FairBurnAddress:      "burn",
		FairBurnFeePercent:   decimal.RequireFromString("0.01"),
		MaxRoyaltyFeePercent: decimal.RequireFromString("0.05"),
		MaxSwapFeePercent:    decimal.RequireFromString("0.1"),
		PairCreationFee:      types.Coin{Denom: "ustars", Amount: *uint256.NewInt(100)},
		MinPrices:            map[string]uint256.Int{"ustars": *uint256.NewInt(10)},
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	provider.On("GetConfig", mock.Anything).Return(validConfig(), nil)
	registry := &mockRegistry{}
	registry.On("GetRoyalty", mock.Anything, "coll").
		Return(&payout.RoyaltyEntry{Recipient: "artist", SharePercent: decimal.RequireFromString("0.05")}, nil)

	pc, err := Resolve(ctx, provider, registry, "coll", "ustars")
	require.NoError(t, err)
	assert.Equal(t, "burn", pc.FairBurnAddress)
	assert.Equal(t, uint64(10), pc.MinPrice.Uint64())
	require.NotNil(t, pc.Royalty)
	assert.Equal(t, "artist", pc.Royalty.Recipient)
	provider.AssertExpectations(t)
	registry.AssertExpectations(t)
}

func TestResolveUnsupportedDenom(t *testing.T) {
	provider := &mockProvider{}
	provider.On("GetConfig", mock.Anything).Return(validConfig(), nil)

	_, err := Resolve(context.Background(), provider, StaticRoyalties{}, "coll", "uatom")
	assert.ErrorIs(t, err, ErrUnsupportedDenom)
}

func TestResolvePropagatesCollaboratorErrors(t *testing.T) {
	down := errors.New("registry unavailable")
	provider := &mockProvider{}
	provider.On("GetConfig", mock.Anything).Return(validConfig(), nil)
	registry := &mockRegistry{}
	registry.On("GetRoyalty", mock.Anything, "coll").Return(nil, down)

	_, err := Resolve(context.Background(), provider, registry, "coll", "ustars")
	assert.ErrorIs(t, err, down)
}

func TestStaticRoyalties(t *testing.T) {
	r := StaticRoyalties{"coll": {Recipient: "artist", SharePercent: decimal.RequireFromString("0.02")}}
	e, err := r.GetRoyalty(context.Background(), "coll")
	require.NoError(t, err)
	assert.Equal(t, "artist", e.Recipient)

	e, err = r.GetRoyalty(context.Background(), "other")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing burn address", func(c *Config) { c.FairBurnAddress = "" }},
		{"burn fee of 100%", func(c *Config) { c.FairBurnFeePercent = decimal.NewFromInt(1) }},
		{"negative swap cap", func(c *Config) { c.MaxSwapFeePercent = decimal.RequireFromString("-0.1") }},
		{"no min prices", func(c *Config) { c.MinPrices = nil }},
		{"creation fee in unknown denom", func(c *Config) { c.PairCreationFee.Denom = "uatom" }},
	}

	require.NoError(t, validConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())

			_, err := NewStaticProvider(cfg)
			assert.Error(t, err)
		})
	}
}
