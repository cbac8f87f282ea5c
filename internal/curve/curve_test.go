package curve

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/nft-amm/internal/types"
)

func linear(spot, delta uint64) Linear {
	return Linear{SpotPrice: *uint256.NewInt(spot), Delta: *uint256.NewInt(delta)}
}

func TestLinearPrices(t *testing.T) {
	c := linear(1000, 100)

	sell, err := Price(c, types.SellToPair, Reserves{})
	require.NoError(t, err)
	assert.Equal(t, uint64(900), sell.Uint64())

	buy, err := Price(c, types.BuyFromPair, Reserves{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), buy.Uint64())
}

func TestLinearDeltaAboveSpotHasNoSellQuote(t *testing.T) {
	_, err := Price(linear(50, 100), types.SellToPair, Reserves{})
	assert.ErrorIs(t, err, ErrNoQuote)

	// buying is still priced
	buy, err := Price(linear(50, 100), types.BuyFromPair, Reserves{})
	require.NoError(t, err)
	assert.Equal(t, uint64(150), buy.Uint64())
}

func TestExponentialPrices(t *testing.T) {
	c := Exponential{SpotPrice: *uint256.NewInt(1000), DeltaPercent: decimal.RequireFromString("0.1")}

	sell, err := Price(c, types.SellToPair, Reserves{})
	require.NoError(t, err)
	assert.Equal(t, uint64(909), sell.Uint64())

	buy, err := Price(c, types.BuyFromPair, Reserves{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), buy.Uint64())
}

func TestConstantProductPrices(t *testing.T) {
	r := Reserves{TotalTokens: *uint256.NewInt(1_000_000), TotalNFTs: 10}

	sell, err := Price(ConstantProduct{}, types.SellToPair, r)
	require.NoError(t, err)
	assert.Equal(t, uint64(90_909), sell.Uint64())

	buy, err := Price(ConstantProduct{}, types.BuyFromPair, r)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_000_000), buy.Uint64())
}

func TestConstantProductReservePreconditions(t *testing.T) {
	empty := Reserves{TotalTokens: *uint256.NewInt(1000)}
	_, err := Price(ConstantProduct{}, types.SellToPair, empty)
	assert.ErrorIs(t, err, ErrNoQuote)

	single := Reserves{TotalTokens: *uint256.NewInt(1000), TotalNFTs: 1}
	_, err = Price(ConstantProduct{}, types.SellToPair, single)
	assert.NoError(t, err)
	_, err = Price(ConstantProduct{}, types.BuyFromPair, single)
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestLinearAdvanceIsMonotonic(t *testing.T) {
	var c Curve = linear(1000, 100)

	for i := 0; i < 5; i++ {
		before := c.(Linear).SpotPrice
		next, err := Advance(c, types.SellToPair, Reserves{})
		require.NoError(t, err)

		after := next.(Linear).SpotPrice
		diff := new(uint256.Int).Sub(&before, &after)
		assert.Equal(t, uint64(100), diff.Uint64())
		c = next
	}

	for i := 0; i < 3; i++ {
		before := c.(Linear).SpotPrice
		next, err := Advance(c, types.BuyFromPair, Reserves{})
		require.NoError(t, err)

		after := next.(Linear).SpotPrice
		diff := new(uint256.Int).Sub(&after, &before)
		assert.Equal(t, uint64(100), diff.Uint64())
		c = next
	}
}

func TestAdvanceFailsInsteadOfWrapping(t *testing.T) {
	_, err := Advance(linear(100, 101), types.SellToPair, Reserves{})
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestOverflowYieldsError(t *testing.T) {
	c := Linear{SpotPrice: *new(uint256.Int).SetAllOne(), Delta: *uint256.NewInt(1)}
	_, err := Price(c, types.BuyFromPair, Reserves{})
	assert.Error(t, err)
}

func TestDescriptorBuild(t *testing.T) {
	c, err := Descriptor{Kind: KindExponential, SpotPrice: "1000", Delta: "0.1"}.Build()
	require.NoError(t, err)
	assert.Equal(t, Describe(c), Descriptor{Kind: KindExponential, SpotPrice: "1000", Delta: "0.1"})

	_, err = Descriptor{Kind: KindLinear, SpotPrice: "0", Delta: "1"}.Build()
	assert.ErrorIs(t, err, ErrInvalidCurve)

	_, err = Descriptor{Kind: "sigmoid"}.Build()
	assert.ErrorIs(t, err, ErrUnknownCurve)
}
