package swap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/nft-amm/internal/continuation"
	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/storage/memory"
)

type harness struct {
	t     *testing.T
	store *memory.Store
	exec  *Executor
	pc    *payout.Context
}

func newHarness(t *testing.T) *harness {
	logger := zaptest.NewLogger(t)
	registry := continuation.NewRegistry(logger)
	dispatcher := settlement.NewDispatcher(registry, logger, settlement.WithRetries(2, time.Millisecond))
	return &harness{
		t:     t,
		store: memory.New(),
		exec:  NewExecutor(registry, dispatcher, logger),
		pc: &payout.Context{
			Denom:             "ustars",
			FairBurnAddress:   "burn",
			FairBurnPercent:   decimal.RequireFromString("0.01"),
			MaxRoyaltyPercent: decimal.RequireFromString("0.1"),
			MaxSwapPercent:    decimal.RequireFromString("0.1"),
		},
	}
}

func amount(v uint64) uint256.Int { return *uint256.NewInt(v) }

// addPair stores an active linear pair and escrows its assets in the ledger.
func (h *harness) addPair(address string, typ pair.Type, spot, delta, tokens uint64, nfts ...string) {
	h.t.Helper()
	ctx := context.Background()
	require.NoError(h.t, h.store.Update(ctx, func(tx storage.Tx) error {
		p := pair.New(address, pair.Immutable{Collection: "coll", Owner: "owner", Denom: "ustars"}, pair.Config{
			Type:  typ,
			Curve: curve.Linear{SpotPrice: amount(spot), Delta: amount(delta)},
		})
		require.NoError(h.t, p.DepositTokens(uint256.NewInt(tokens)))
		require.NoError(h.t, p.DepositNFTs(nfts))
		p.Config.IsActive = true
		p.Refresh(h.pc)

		require.NoError(h.t, tx.Ledger().Credit(ctx, address, "ustars", uint256.NewInt(tokens)))
		for _, id := range nfts {
			require.NoError(h.t, tx.Ledger().SetOwner(ctx, "coll", id, address))
		}
		require.NoError(h.t, tx.Pairs().Save(ctx, p))
		return index.Reconcile(ctx, tx.Index(), p)
	}))
}

func (h *harness) fund(account string, tokens uint64, nfts ...string) {
	h.t.Helper()
	ctx := context.Background()
	require.NoError(h.t, h.store.Update(ctx, func(tx storage.Tx) error {
		require.NoError(h.t, tx.Ledger().Credit(ctx, account, "ustars", uint256.NewInt(tokens)))
		for _, id := range nfts {
			require.NoError(h.t, tx.Ledger().SetOwner(ctx, "coll", id, account))
		}
		return nil
	}))
}

func (h *harness) balance(account string) uint64 {
	h.t.Helper()
	var b *uint256.Int
	require.NoError(h.t, h.store.View(context.Background(), func(tx storage.Tx) error {
		var err error
		b, err = tx.Ledger().Balance(context.Background(), account, "ustars")
		return err
	}))
	return b.Uint64()
}

func (h *harness) owner(tokenID string) string {
	h.t.Helper()
	var o string
	require.NoError(h.t, h.store.View(context.Background(), func(tx storage.Tx) error {
		var err error
		o, err = tx.Ledger().OwnerOf(context.Background(), "coll", tokenID)
		return err
	}))
	return o
}

func (h *harness) pair(address string) *pair.Pair {
	h.t.Helper()
	var p *pair.Pair
	require.NoError(h.t, h.store.View(context.Background(), func(tx storage.Tx) error {
		var err error
		p, err = tx.Pairs().Get(context.Background(), address)
		return err
	}))
	return p
}

func (h *harness) sell(req SellRequest) (*Result, error) {
	ctx := context.Background()
	var res *Result
	err := h.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		res, err = h.exec.SwapNftsForTokens(ctx, tx, h.pc, req)
		return err
	})
	return res, err
}

func (h *harness) buy(req BuyRequest) (*Result, error) {
	ctx := context.Background()
	var res *Result
	err := h.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		res, err = h.exec.SwapTokensForNfts(ctx, tx, h.pc, req)
		return err
	})
	return res, err
}

func sellOrders(ids ...string) []SellOrder {
	orders := make([]SellOrder, len(ids))
	for i, id := range ids {
		orders[i] = SellOrder{TokenID: id}
	}
	return orders
}

func maxInputs(n int, max uint64) []uint256.Int {
	out := make([]uint256.Int, n)
	for i := range out {
		out[i] = amount(max)
	}
	return out
}

func fillPairs(r *Result) []string {
	out := make([]string, len(r.Fills))
	for i, f := range r.Fills {
		out[i] = f.Pair
	}
	return out
}

// sellMarket: pair-a bids 1000 then 800 and keeps the nfts it buys; pair-b
// bids 900.
func sellMarket(t *testing.T) *harness {
	h := newHarness(t)
	h.addPair("pair-a", pair.TradeType{ReinvestNFTs: true}, 1200, 200, 5000)
	h.addPair("pair-b", pair.TokenType{}, 1000, 100, 5000)
	h.fund("seller", 0, "7", "8", "9")
	return h
}

func TestSwapNftsForTokensBestFirst(t *testing.T) {
	h := sellMarket(t)

	res, err := h.sell(SellRequest{Sender: "seller", Collection: "coll", Denom: "ustars", Orders: sellOrders("7", "8", "9")})
	require.NoError(t, err)
	assert.Equal(t, []string{"pair-a", "pair-b", "pair-a"}, fillPairs(res))
	assert.Equal(t, uint64(990), res.Fills[0].Price.Uint64())
	assert.Equal(t, uint64(891), res.Fills[1].Price.Uint64())
	assert.Equal(t, uint64(792), res.Fills[2].Price.Uint64())
	assert.Equal(t, uint64(2700), res.Volume.Uint64())

	assert.Equal(t, uint64(990+891+792), h.balance("seller"))
	assert.Equal(t, uint64(27), h.balance("burn"))
	assert.Equal(t, uint64(3200), h.balance("pair-a"))
	assert.Equal(t, uint64(4100), h.balance("pair-b"))

	assert.Equal(t, "pair-a", h.owner("7"))
	assert.Equal(t, "owner", h.owner("8"))
	assert.Equal(t, "pair-a", h.owner("9"))

	a := h.pair("pair-a")
	assert.Equal(t, []string{"7", "9"}, a.NFTs)
	assert.Equal(t, uint64(3200), a.TotalTokens.Uint64())
	assert.Equal(t, "800", curve.Describe(a.Config.Curve).SpotPrice)
}

func TestStrictBatchAbortsWithoutChanges(t *testing.T) {
	h := newHarness(t)
	h.addPair("pair-a", pair.TradeType{}, 1000, 100, 0, "1", "2")
	h.fund("buyer", 10_000)

	_, err := h.buy(BuyRequest{Sender: "buyer", Collection: "coll", Denom: "ustars", MaxInputs: maxInputs(3, 5000)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoLiquidity)
	var unitErr *UnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Equal(t, 2, unitErr.Unit)

	assert.Equal(t, uint64(10_000), h.balance("buyer"))
	assert.Equal(t, []string{"1", "2"}, h.pair("pair-a").NFTs)
	assert.Equal(t, "pair-a", h.owner("1"))
}

func TestRobustBatchCommitsAvailableFills(t *testing.T) {
	h := newHarness(t)
	h.addPair("pair-a", pair.TradeType{}, 1000, 100, 0, "1", "2")
	h.fund("buyer", 10_000)

	res, err := h.buy(BuyRequest{
		Sender: "buyer", Collection: "coll", Denom: "ustars",
		MaxInputs: maxInputs(3, 5000),
		Params:    Params{Robust: true},
	})
	require.NoError(t, err)
	require.Len(t, res.Fills, 2)
	require.Len(t, res.Skipped, 1)
	assert.ErrorIs(t, &res.Skipped[0], ErrNoLiquidity)

	assert.Equal(t, "1", res.Fills[0].TokenID)
	assert.Equal(t, uint64(1100), res.Fills[0].Price.Uint64())
	assert.Equal(t, uint64(1200), res.Fills[1].Price.Uint64())

	assert.Equal(t, uint64(10_000-2300), h.balance("buyer"))
	assert.Equal(t, uint64(23), h.balance("burn"))
	assert.Equal(t, uint64(1089+1188), h.balance("owner"))
	assert.Equal(t, "buyer", h.owner("1"))
	assert.Equal(t, "buyer", h.owner("2"))
	assert.Empty(t, h.pair("pair-a").NFTs)
}

func TestAssetRecipient(t *testing.T) {
	h := newHarness(t)
	h.addPair("pair-a", pair.TradeType{}, 1000, 100, 0, "1")
	h.fund("buyer", 10_000)

	_, err := h.buy(BuyRequest{
		Sender: "buyer", Collection: "coll", Denom: "ustars",
		MaxInputs: maxInputs(1, 5000),
		Params:    Params{AssetRecipient: "vault"},
	})
	require.NoError(t, err)
	assert.Equal(t, "vault", h.owner("1"))
}

func TestDeadlineIsCheckedFirst(t *testing.T) {
	h := sellMarket(t)

	_, err := h.sell(SellRequest{
		Sender: "seller", Collection: "coll", Denom: "ustars",
		Orders: sellOrders("7"),
		Params: Params{Deadline: time.Now().Add(-time.Second)},
	})
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
	assert.Zero(t, h.balance("seller"))
}

func TestSlippageViolationLeavesRouterUntouched(t *testing.T) {
	h := sellMarket(t)

	orders := []SellOrder{
		{TokenID: "7", MinOutput: amount(5000)},
		{TokenID: "8", MinOutput: amount(990)},
	}
	res, err := h.sell(SellRequest{Sender: "seller", Collection: "coll", Denom: "ustars", Orders: orders, Params: Params{Robust: true}})
	require.NoError(t, err)

	require.Len(t, res.Skipped, 1)
	assert.ErrorIs(t, &res.Skipped[0], ErrSlippage)
	assert.Equal(t, "7", res.Skipped[0].TokenID)

	// the second unit still gets the best bid
	require.Len(t, res.Fills, 1)
	assert.Equal(t, "pair-a", res.Fills[0].Pair)
	assert.Equal(t, 1, res.Fills[0].Unit)
	assert.Equal(t, "seller", h.owner("7"))

	_, err = h.sell(SellRequest{Sender: "seller", Collection: "coll", Denom: "ustars", Orders: orders[:1]})
	assert.ErrorIs(t, err, ErrSlippage)
}

func TestFailedSettlementRollsBackUnit(t *testing.T) {
	h := sellMarket(t)

	// the seller does not own nft 99
	res, err := h.sell(SellRequest{
		Sender: "seller", Collection: "coll", Denom: "ustars",
		Orders: sellOrders("99", "8"),
		Params: Params{Robust: true},
	})
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	assert.ErrorIs(t, &res.Skipped[0], settlement.ErrNotOwner)

	// pair-a was restored and still offers the best bid
	require.Len(t, res.Fills, 1)
	assert.Equal(t, "pair-a", res.Fills[0].Pair)
	assert.Equal(t, uint64(990), res.Fills[0].Price.Uint64())
	assert.Equal(t, []string{"8"}, h.pair("pair-a").NFTs)
	assert.Equal(t, uint64(4000), h.balance("pair-a"))

	_, err = h.sell(SellRequest{Sender: "seller", Collection: "coll", Denom: "ustars", Orders: sellOrders("99")})
	assert.ErrorIs(t, err, settlement.ErrNotOwner)
}

func TestRobustBatchWithNoFills(t *testing.T) {
	h := sellMarket(t)
	_, err := h.sell(SellRequest{
		Sender: "seller", Collection: "other", Denom: "ustars",
		Orders: sellOrders("7"),
		Params: Params{Robust: true},
	})
	assert.ErrorIs(t, err, ErrNoSwaps)
}

func TestEmptyRequest(t *testing.T) {
	h := sellMarket(t)
	_, err := h.sell(SellRequest{Sender: "seller", Collection: "coll", Denom: "ustars"})
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestDirectSwaps(t *testing.T) {
	h := newHarness(t)
	h.addPair("pair-a", pair.TradeType{ReinvestTokens: true}, 1000, 100, 5000, "1", "2")
	h.fund("trader", 10_000, "5")
	ctx := context.Background()

	var fill *Fill
	require.NoError(t, h.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		fill, err = h.exec.SwapTokensForNft(ctx, tx, h.pc, DirectBuyRequest{
			Sender: "trader", Pair: "pair-a", TokenID: "2", MaxInput: amount(1100),
		})
		return err
	}))
	assert.Equal(t, "2", fill.TokenID)
	assert.Equal(t, "trader", h.owner("2"))
	// the seller amount was reinvested
	assert.Equal(t, uint64(5000+1089), h.balance("pair-a"))
	assert.Equal(t, uint64(5000+1089), h.pair("pair-a").TotalTokens.Uint64())

	err := h.store.Update(ctx, func(tx storage.Tx) error {
		_, err := h.exec.SwapTokensForNft(ctx, tx, h.pc, DirectBuyRequest{
			Sender: "trader", Pair: "pair-a", MaxInput: amount(1100),
		})
		return err
	})
	assert.ErrorIs(t, err, ErrSlippage, "spot moved to 1100, the next unit costs 1200")

	require.NoError(t, h.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		fill, err = h.exec.SwapNftForTokens(ctx, tx, h.pc, DirectSellRequest{
			Sender: "trader", Pair: "pair-a", TokenID: "5",
		})
		return err
	}))
	assert.Equal(t, uint64(1000), fill.Summary.Total().Uint64())
	assert.Equal(t, "owner", h.owner("5"))
}

func TestSimSwapsDoNotMutate(t *testing.T) {
	h := newHarness(t)
	h.addPair("pair-a", pair.TradeType{}, 1000, 100, 0, "1", "2")
	ctx := context.Background()

	var res *Result
	require.NoError(t, h.store.View(ctx, func(tx storage.Tx) error {
		var err error
		res, err = h.exec.SimSwapTokensForNfts(ctx, tx, h.pc, BuyRequest{
			Collection: "coll", Denom: "ustars", MaxInputs: maxInputs(2, 5000),
		})
		return err
	}))
	require.Len(t, res.Fills, 2)
	assert.Equal(t, "1", res.Fills[0].TokenID)
	assert.Equal(t, "2", res.Fills[1].TokenID)
	assert.Equal(t, uint64(1200), res.Fills[1].Price.Uint64())

	assert.Equal(t, []string{"1", "2"}, h.pair("pair-a").NFTs)
}

func TestIsUnitFailure(t *testing.T) {
	assert.True(t, IsUnitFailure(&UnitError{Err: ErrSlippage}))
	assert.False(t, IsUnitFailure(errors.New("boom")))
}
