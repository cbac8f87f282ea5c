package amm

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/global"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/storage/memory"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

func globals(maxSwapFee string, minPrices map[string]uint256.Int) *global.Config {
	return &global.Config{
		FairBurnAddress:      burn,
		FairBurnFeePercent:   decimal.RequireFromString("0.01"),
		MaxRoyaltyFeePercent: decimal.RequireFromString("0.1"),
		MaxSwapFeePercent:    decimal.RequireFromString(maxSwapFee),
		PairCreationFee:      types.Coin{Denom: "ustars", Amount: amt(0)},
		MinPrices:            minPrices,
	}
}

// openService builds a service over store, as a restart with new settings
// would.
func openService(t *testing.T, store storage.Store, gc *global.Config) *Service {
	t.Helper()
	provider, err := global.NewStaticProvider(gc)
	require.NoError(t, err)

	names := []string{"pair-a", "pair-b"}
	svc, err := NewService(Config{
		Store:     store,
		Globals:   provider,
		Royalties: global.StaticRoyalties{},
		Logger:    zaptest.NewLogger(t),
		NewAddress: func() string {
			name := names[0]
			names = names[1:]
			return name
		},
	})
	require.NoError(t, err)
	return svc
}

// seedBids stores two bidding pairs under a 50% swap fee cap:
// pair-a (trade, 50% fee, sell gross 1000) and pair-b (token, sell gross 700).
func seedBids(t *testing.T, store storage.Store) {
	ctx := context.Background()
	svc := openService(t, store, globals("0.5", map[string]uint256.Int{"ustars": amt(10)}))
	require.NoError(t, svc.Credit(ctx, CreditCommand{Account: owner, Denom: "ustars", Amount: amt(10000)}))

	create := func(typ pair.TypeDescriptor, spot string) {
		p, err := svc.CreatePair(ctx, CreatePairCommand{
			Sender:     owner,
			Collection: "punks",
			Denom:      "ustars",
			Type:       typ,
			Curve:      curve.Descriptor{Kind: curve.KindLinear, SpotPrice: spot, Delta: "100"},
		})
		require.NoError(t, err)
		_, err = svc.DepositTokens(ctx, DepositTokensCommand{Sender: owner, Pair: p.Address, Amount: amt(5000)})
		require.NoError(t, err)
		active := true
		_, err = svc.UpdatePairConfig(ctx, UpdatePairConfigCommand{Sender: owner, Pair: p.Address, IsActive: &active})
		require.NoError(t, err)
	}
	create(pair.TypeDescriptor{Kind: pair.KindTrade, SwapFeePercent: "0.5"}, "1100")
	create(pair.TypeDescriptor{Kind: pair.KindToken}, "800")

	bids := bestBids(t, svc)
	require.Len(t, bids, 2)
	assert.Equal(t, "pair-b", bids[0].Pair)
	assert.Equal(t, uint64(693), bids[0].Price.Uint64())
	assert.Equal(t, "pair-a", bids[1].Pair)
	assert.Equal(t, uint64(490), bids[1].Price.Uint64())
}

func bestBids(t *testing.T, svc *Service) []index.Entry {
	t.Helper()
	bids, err := svc.BestQuotes(context.Background(), BestQuotesQuery{
		Collection: "punks", Denom: "ustars", Direction: types.SellToPair,
	})
	require.NoError(t, err)
	return bids
}

func TestLoweredFeeCapReordersIndexOnStartup(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedBids(t, store)

	svc := openService(t, store, globals("0", map[string]uint256.Int{"ustars": amt(10)}))

	bids := bestBids(t, svc)
	require.Len(t, bids, 2)
	assert.Equal(t, "pair-a", bids[0].Pair)
	assert.Equal(t, uint64(990), bids[0].Price.Uint64())
	assert.Equal(t, "pair-b", bids[1].Pair)
	assert.Equal(t, uint64(693), bids[1].Price.Uint64())

	// every published price matches the live quote of its pair
	for _, e := range bids {
		q, err := svc.QuotePair(ctx, e.Pair, types.SellToPair)
		require.NoError(t, err)
		require.NotNil(t, q)
		assert.Equal(t, q.SellerAmount.Uint64(), e.Price.Uint64(), e.Pair)
	}

	res, err := svc.SimSwaps(ctx, "punks", "ustars", types.SellToPair, 3)
	require.NoError(t, err)
	require.Len(t, res.Fills, 3)
	assert.Equal(t, "pair-a", res.Fills[0].Pair)
	assert.Equal(t, uint64(990), res.Fills[0].Price.Uint64())
	for i := 1; i < len(res.Fills); i++ {
		assert.False(t, res.Fills[i].Price.Gt(&res.Fills[i-1].Price), "bids come best first")
	}
}

func TestRaisedMinPriceRetractsQuotes(t *testing.T) {
	store := memory.New()
	seedBids(t, store)

	// pair-b's gross of 700 is now below the minimum
	svc := openService(t, store, globals("0.5", map[string]uint256.Int{"ustars": amt(800)}))

	bids := bestBids(t, svc)
	require.Len(t, bids, 1)
	assert.Equal(t, "pair-a", bids[0].Pair)

	q, err := svc.QuotePair(context.Background(), "pair-b", types.SellToPair)
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestUnsupportedDenomRetractsPairs(t *testing.T) {
	store := memory.New()
	seedBids(t, store)

	svc := openService(t, store, globals("0.5", map[string]uint256.Int{"uatom": amt(10)}))

	stats, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReindexStats{Pairs: 2, Retracted: 2}, stats)

	require.NoError(t, store.View(context.Background(), func(tx storage.Tx) error {
		entries, err := tx.Index().Range(context.Background(), index.Query{
			Collection: "punks", Denom: "ustars", Direction: types.SellToPair,
			Order: types.Descending, Limit: types.DefaultQueryLimit,
		})
		require.NoError(t, err)
		assert.Empty(t, entries)
		return nil
	}))
}
