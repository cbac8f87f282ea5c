package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestGetReturnsDetachedCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.Pairs().Save(ctx, storagetest.NewPair(t, "pair-a", 100, 100, "1"))
	}))

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		p, err := tx.Pairs().Get(ctx, "pair-a")
		require.NoError(t, err)
		p.NFTs = nil
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		p, err := tx.Pairs().Get(ctx, "pair-a")
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, p.NFTs)
		return nil
	}))
}

func TestCancelledUpdateIsDiscarded(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Update(ctx, func(tx storage.Tx) error {
		cancel()
		return tx.Pairs().Save(ctx, storagetest.NewPair(t, "pair-a", 100, 100))
	})
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.View(context.Background(), func(tx storage.Tx) error {
		_, err := tx.Pairs().Get(context.Background(), "pair-a")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	}))
}
