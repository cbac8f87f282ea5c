package router

import (
	"context"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

func freeContext() *payout.Context {
	return &payout.Context{
		Denom:             "ustars",
		FairBurnAddress:   "burn",
		FairBurnPercent:   decimal.Zero,
		MaxRoyaltyPercent: decimal.Zero,
		MaxSwapPercent:    decimal.Zero,
	}
}

// fixture is a pair store behind an index, as the service keeps them.
type fixture struct {
	t     *testing.T
	idx   *index.Memory
	pairs map[string]*pair.Pair
	loads int
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, idx: index.NewMemory(), pairs: make(map[string]*pair.Pair)}
}

func (f *fixture) add(address string, spot, delta, tokens uint64, nfts ...string) {
	f.t.Helper()
	p := pair.New(address, pair.Immutable{Collection: "coll", Owner: "owner", Denom: "ustars"}, pair.Config{
		Type:  pair.TradeType{},
		Curve: curve.Linear{SpotPrice: *uint256.NewInt(spot), Delta: *uint256.NewInt(delta)},
	})
	require.NoError(f.t, p.DepositTokens(uint256.NewInt(tokens)))
	require.NoError(f.t, p.DepositNFTs(nfts))
	p.Config.IsActive = true
	p.Refresh(freeContext())
	require.NoError(f.t, index.Reconcile(context.Background(), f.idx, p))
	f.pairs[address] = p
}

func (f *fixture) LoadPair(_ context.Context, address string) (*pair.Pair, error) {
	f.loads++
	p, ok := f.pairs[address]
	if !ok {
		return nil, fmt.Errorf("no pair %s", address)
	}
	return p.Clone(), nil
}

func (f *fixture) source(d types.Direction) *PairSource {
	f.t.Helper()
	s, err := NewPairSource(context.Background(), f.idx, f, freeContext(), "coll", d, zaptest.NewLogger(f.t))
	require.NoError(f.t, err)
	return s
}

type step struct {
	pair  string
	price uint64
}

func drain(t *testing.T, r *Router, n int) []step {
	t.Helper()
	quotes, err := r.Take(context.Background(), n)
	require.NoError(t, err)
	out := make([]step, len(quotes))
	for i, q := range quotes {
		out[i] = step{q.Address, q.Price.Uint64()}
	}
	return out
}

func TestRouterReranksAfterSimulatedFill(t *testing.T) {
	f := newFixture(t)
	f.add("pair-a", 1200, 200, 10_000)
	f.add("pair-b", 1000, 100, 10_000)

	r := New(types.SellToPair, f.source(types.SellToPair))
	ctx := context.Background()

	first, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pair-a", first.Address)
	assert.Equal(t, uint64(1000), first.Price.Uint64())

	second, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pair-b", second.Address)
	assert.Equal(t, uint64(900), second.Price.Uint64())

	// pair-a's simulated next unit is 800, pair-b's is 800 too; lower address wins
	assert.Equal(t, []step{{"pair-a", 800}, {"pair-b", 800}, {"pair-b", 700}}, drain(t, r, 3))
}

func TestRouterBuysCheapestFirst(t *testing.T) {
	f := newFixture(t)
	f.add("pair-a", 1000, 100, 0, "1", "2")
	f.add("pair-b", 1050, 10, 0, "3")

	r := New(types.BuyFromPair, f.source(types.BuyFromPair))

	// pair-b runs out of nfts after one fill
	assert.Equal(t,
		[]step{{"pair-b", 1060}, {"pair-a", 1100}, {"pair-a", 1200}},
		drain(t, r, 10))
	assert.Nil(t, r.Peek())
}

func TestRouterNeverDecreasesQuality(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 8; i++ {
		f.add(fmt.Sprintf("pair-%d", i), uint64(500+37*i), uint64(11+i), 1_000_000)
	}

	r := New(types.SellToPair, f.source(types.SellToPair))
	steps := drain(t, r, 60)
	require.Len(t, steps, 60)
	for i := 1; i < len(steps); i++ {
		assert.LessOrEqual(t, steps[i].price, steps[i-1].price, "step %d", i)
	}
}

func TestPairSourceLoadsEachPairOnce(t *testing.T) {
	f := newFixture(t)
	f.add("pair-a", 1000, 10, 1_000_000)
	f.add("pair-b", 990, 10, 1_000_000)
	f.add("pair-c", 100, 10, 1_000_000)

	s := f.source(types.SellToPair)
	assert.Equal(t, 1, f.loads, "only the best entry is read up front")

	r := New(types.SellToPair, s)
	assert.Equal(t, []step{{"pair-a", 990}, {"pair-a", 980}}, drain(t, r, 2))
	assert.Equal(t, 2, f.loads, "pair-c is not reached yet")

	drain(t, r, 200)
	assert.Equal(t, 3, f.loads)
}

func TestPairSourceSkipsRepublishedPairs(t *testing.T) {
	f := newFixture(t)
	f.add("pair-a", 1000, 450, 1_000_000)
	f.add("pair-b", 500, 100, 1_000_000)

	ctx := context.Background()
	s := f.source(types.SellToPair)

	q, err := s.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pair-a", q.Address)

	// the real fill republishes pair-a at 100, behind pair-b
	filled := f.pairs["pair-a"]
	_, err = filled.ApplyFill(freeContext(), types.SellToPair, "nft-1")
	require.NoError(t, err)
	require.NoError(t, index.Reconcile(ctx, f.idx, filled))

	var seen []string
	for {
		q, err := s.Pop(ctx)
		require.NoError(t, err)
		if q == nil || len(seen) == 20 {
			break
		}
		seen = append(seen, q.Address)
	}
	assert.Equal(t, 2, f.loads)
	assert.Contains(t, seen, "pair-b")
}

func TestPairSourceSkipsPairsWithoutLiveQuote(t *testing.T) {
	f := newFixture(t)
	f.add("pair-a", 1000, 100, 1_000_000)
	f.add("pair-b", 500, 100, 1_000_000)

	// stale index entry: pair-a was emptied without reconciling
	f.pairs["pair-a"].WithdrawAll()

	s := f.source(types.SellToPair)
	q := s.Peek()
	require.NotNil(t, q)
	assert.Equal(t, "pair-b", q.Address)
}

func TestRouterMergesSources(t *testing.T) {
	f := newFixture(t)
	f.add("pair-a", 1000, 100, 1_000_000)

	g := newFixture(t)
	g.add("pair-b", 950, 100, 1_000_000)

	r := New(types.SellToPair, f.source(types.SellToPair), g.source(types.SellToPair))
	assert.Equal(t,
		[]step{{"pair-a", 900}, {"pair-b", 850}, {"pair-a", 800}, {"pair-b", 750}},
		drain(t, r, 4))
}

func TestRouterDoesNotTouchPairs(t *testing.T) {
	f := newFixture(t)
	f.add("pair-a", 1000, 100, 10_000, "1")

	r := New(types.BuyFromPair, f.source(types.BuyFromPair))
	drain(t, r, 3)

	p := f.pairs["pair-a"]
	assert.Equal(t, []string{"1"}, p.NFTs)
	assert.Equal(t, "1000", curve.Describe(p.Config.Curve).SpotPrice)
}

func TestEmptyRouter(t *testing.T) {
	f := newFixture(t)
	r := New(types.SellToPair, f.source(types.SellToPair))
	q, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, q)
}
