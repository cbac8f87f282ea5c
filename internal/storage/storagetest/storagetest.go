// Package storagetest holds behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// Run exercises a fresh store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("PairRoundTrip", func(t *testing.T) { testPairRoundTrip(t, open(t)) })
	t.Run("PairNotFound", func(t *testing.T) { testPairNotFound(t, open(t)) })
	t.Run("ListPairs", func(t *testing.T) { testListPairs(t, open(t)) })
	t.Run("IndexOrdering", func(t *testing.T) { testIndexOrdering(t, open(t)) })
	t.Run("Ledger", func(t *testing.T) { testLedger(t, open(t)) })
	t.Run("UpdateRollsBack", func(t *testing.T) { testUpdateRollsBack(t, open(t)) })
	t.Run("SavepointRollsBack", func(t *testing.T) { testSavepointRollsBack(t, open(t)) })
	t.Run("LedgerAtomicRollsBack", func(t *testing.T) { testLedgerAtomicRollsBack(t, open(t)) })
}

func payoutContext() *payout.Context {
	return &payout.Context{
		Denom:             "ustars",
		FairBurnAddress:   "burn",
		FairBurnPercent:   decimal.RequireFromString("0.01"),
		MaxRoyaltyPercent: decimal.RequireFromString("0.05"),
		MaxSwapPercent:    decimal.RequireFromString("0.1"),
	}
}

// NewPair returns an active trade pair with tokens and nfts in escrow.
func NewPair(t *testing.T, address string, spot, tokens uint64, nfts ...string) *pair.Pair {
	t.Helper()
	p := pair.New(address, pair.Immutable{Collection: "coll", Owner: "owner", Denom: "ustars"}, pair.Config{
		Type: pair.TradeType{
			SwapFeePercent: decimal.RequireFromString("0.02"),
			ReinvestNFTs:   true,
		},
		Curve: curve.Exponential{SpotPrice: *uint256.NewInt(spot), DeltaPercent: decimal.RequireFromString("0.1")},
	})
	require.NoError(t, p.DepositTokens(uint256.NewInt(tokens)))
	require.NoError(t, p.DepositNFTs(nfts))
	p.Config.IsActive = true
	p.Refresh(payoutContext())
	return p
}

func testPairRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := NewPair(t, "pair-a", 1000, 5000, "2", "10", "1")
	require.NotNil(t, p.Internal.SellToPairQuote)

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.Pairs().Save(ctx, p)
	}))

	var got *pair.Pair
	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		var err error
		got, err = tx.Pairs().Get(ctx, "pair-a")
		return err
	}))

	assert.Equal(t, p.Immutable, got.Immutable)
	assert.Equal(t, p.NFTs, got.NFTs)
	assert.Equal(t, p.TotalTokens.Dec(), got.TotalTokens.Dec())
	assert.Equal(t, p.Config.IsActive, got.Config.IsActive)
	assert.Equal(t, curve.Describe(p.Config.Curve), curve.Describe(got.Config.Curve))
	assert.Equal(t, pair.DescribeType(p.Config.Type), pair.DescribeType(got.Config.Type))
	require.NotNil(t, got.Internal.SellToPairQuote)
	assert.Equal(t, p.Internal.SellToPairQuote.Total().Dec(), got.Internal.SellToPairQuote.Total().Dec())
	assert.Equal(t, p.Internal.TotalNFTs, got.Internal.TotalNFTs)

	// withdrawing everything is persisted too
	got.WithdrawAll()
	got.Refresh(payoutContext())
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.Pairs().Save(ctx, got)
	}))
	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		again, err := tx.Pairs().Get(ctx, "pair-a")
		if err != nil {
			return err
		}
		assert.Empty(t, again.NFTs)
		assert.Nil(t, again.Internal.SellToPairQuote)
		assert.False(t, again.Config.IsActive)
		return nil
	}))
}

func testPairNotFound(t *testing.T, s storage.Store) {
	ctx := context.Background()
	err := s.View(ctx, func(tx storage.Tx) error {
		_, err := tx.Pairs().Get(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testListPairs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		for i := 0; i < 5; i++ {
			p := NewPair(t, fmt.Sprintf("pair-%d", i), 100, 100)
			if i%2 == 1 {
				p.Immutable.Owner = "other"
			}
			if err := tx.Pairs().Save(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		all, err := tx.Pairs().List(ctx, storage.PairFilter{}, types.QueryOptions{Limit: 2, StartAfter: "pair-1"})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "pair-2", all[0].Address)
		assert.Equal(t, "pair-3", all[1].Address)

		mine, err := tx.Pairs().List(ctx, storage.PairFilter{Owner: "owner"}, types.QueryOptions{Descending: true})
		require.NoError(t, err)
		require.Len(t, mine, 3)
		assert.Equal(t, "pair-4", mine[0].Address)
		return nil
	}))
}

func entry(addr string, d types.Direction, price uint64) index.Entry {
	return index.Entry{Pair: addr, Collection: "coll", Denom: "ustars", Direction: d, Price: *uint256.NewInt(price)}
}

func testIndexOrdering(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		for _, e := range []index.Entry{
			entry("p1", types.SellToPair, 300),
			entry("p2", types.SellToPair, 200),
			entry("p3", types.SellToPair, 200),
			entry("p4", types.SellToPair, 1000),
			entry("p5", types.BuyFromPair, 50),
		} {
			if err := tx.Index().Upsert(ctx, e); err != nil {
				return err
			}
		}
		// replaced, not duplicated
		return tx.Index().Upsert(ctx, entry("p4", types.SellToPair, 9))
	}))

	q := index.Query{Collection: "coll", Denom: "ustars", Direction: types.SellToPair}
	pairsOf := func(es []index.Entry) []string {
		out := make([]string, len(es))
		for i, e := range es {
			out[i] = e.Pair
		}
		return out
	}

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		q.Order = types.Descending
		desc, err := tx.Index().Range(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, pairsOf(desc))
		assert.Equal(t, uint64(9), desc[3].Price.Uint64())

		q.Cursor = index.CursorOf(desc[1])
		rest, err := tx.Index().Range(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"p3", "p4"}, pairsOf(rest))

		q.Order = types.Ascending
		q.Cursor = nil
		q.Limit = 2
		asc, err := tx.Index().Range(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"p4", "p2"}, pairsOf(asc))
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.Index().Remove(ctx, "p2", types.SellToPair)
	}))
	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		q.Order = types.Ascending
		q.Limit = 0
		asc, err := tx.Index().Range(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"p4", "p3", "p1"}, pairsOf(asc))
		return nil
	}))
}

func testLedger(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		l := tx.Ledger()
		require.NoError(t, l.Credit(ctx, "alice", "ustars", uint256.NewInt(100)))
		require.NoError(t, l.Debit(ctx, "alice", "ustars", uint256.NewInt(30)))
		err := l.Debit(ctx, "alice", "ustars", uint256.NewInt(71))
		assert.ErrorIs(t, err, settlement.ErrInsufficientFunds)
		return l.SetOwner(ctx, "coll", "7", "alice")
	}))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		b, err := tx.Ledger().Balance(ctx, "alice", "ustars")
		require.NoError(t, err)
		assert.Equal(t, uint64(70), b.Uint64())

		none, err := tx.Ledger().Balance(ctx, "bob", "ustars")
		require.NoError(t, err)
		assert.True(t, none.IsZero())

		owner, err := tx.Ledger().OwnerOf(ctx, "coll", "7")
		require.NoError(t, err)
		assert.Equal(t, "alice", owner)

		owner, err = tx.Ledger().OwnerOf(ctx, "coll", "8")
		require.NoError(t, err)
		assert.Empty(t, owner)
		return nil
	}))
}

func testUpdateRollsBack(t *testing.T, s storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx storage.Tx) error {
		if err := tx.Ledger().Credit(ctx, "alice", "ustars", uint256.NewInt(5)); err != nil {
			return err
		}
		if err := tx.Pairs().Save(ctx, NewPair(t, "pair-x", 100, 100)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		b, err := tx.Ledger().Balance(ctx, "alice", "ustars")
		require.NoError(t, err)
		assert.True(t, b.IsZero())

		_, err = tx.Pairs().Get(ctx, "pair-x")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	}))
}

func testSavepointRollsBack(t *testing.T, s storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		ledger := tx.Ledger()
		if err := ledger.Credit(ctx, "alice", "ustars", uint256.NewInt(10)); err != nil {
			return err
		}

		err := tx.Savepoint(ctx, func(sp storage.Tx) error {
			if err := sp.Ledger().Credit(ctx, "alice", "ustars", uint256.NewInt(1000)); err != nil {
				return err
			}
			if err := sp.Index().Upsert(ctx, entry("p1", types.SellToPair, 5)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		require.NoError(t, tx.Savepoint(ctx, func(sp storage.Tx) error {
			return sp.Ledger().Credit(ctx, "alice", "ustars", uint256.NewInt(1))
		}))

		// a repository obtained before the savepoint sees the rollback
		b, err := ledger.Balance(ctx, "alice", "ustars")
		require.NoError(t, err)
		assert.Equal(t, uint64(11), b.Uint64())
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		b, err := tx.Ledger().Balance(ctx, "alice", "ustars")
		require.NoError(t, err)
		assert.Equal(t, uint64(11), b.Uint64())

		es, err := tx.Index().Range(ctx, index.Query{Collection: "coll", Denom: "ustars", Direction: types.SellToPair})
		require.NoError(t, err)
		assert.Empty(t, es)
		return nil
	}))
}

func testLedgerAtomicRollsBack(t *testing.T, s storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		l := tx.Ledger()
		require.NoError(t, l.Credit(ctx, "alice", "ustars", uint256.NewInt(50)))

		atomic, ok := l.(settlement.Atomic)
		require.True(t, ok, "transactional ledgers run attempts in savepoints")

		err := atomic.Atomically(ctx, func(inner settlement.Ledger) error {
			if err := inner.Debit(ctx, "alice", "ustars", uint256.NewInt(20)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		// the outer transaction stays usable after the undone group
		return atomic.Atomically(ctx, func(inner settlement.Ledger) error {
			return inner.Credit(ctx, "bob", "ustars", uint256.NewInt(5))
		})
	}))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		alice, err := tx.Ledger().Balance(ctx, "alice", "ustars")
		require.NoError(t, err)
		assert.Equal(t, uint64(50), alice.Uint64())

		bob, err := tx.Ledger().Balance(ctx, "bob", "ustars")
		require.NoError(t, err)
		assert.Equal(t, uint64(5), bob.Uint64())
		return nil
	}))
}
