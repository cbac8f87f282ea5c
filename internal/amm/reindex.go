package amm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/global"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// ReindexStats summarises one Reindex run.
type ReindexStats struct {
	Pairs int `json:"pairs"`
	// Retracted counts pairs whose denom lost its minimum price.
	Retracted int `json:"retracted"`
}

// Reindex re-derives the cached quotes of every pair under the current
// global config and royalties and republishes their index entries, all in
// one transaction. Run it whenever those inputs may have changed; the
// service does so on construction.
func (s *Service) Reindex(ctx context.Context) (ReindexStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats ReindexStats
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		stats = ReindexStats{}
		contexts := make(map[[2]string]*payout.Context)

		opts := types.QueryOptions{Limit: types.MaxQueryLimit}
		for {
			page, err := tx.Pairs().List(ctx, storage.PairFilter{}, opts)
			if err != nil {
				return fmt.Errorf("failed to list pairs: %w", err)
			}

			for _, p := range page {
				key := [2]string{p.Immutable.Collection, p.Immutable.Denom}
				pc, ok := contexts[key]
				if !ok {
					pc, err = s.resolve(ctx, p.Immutable.Collection, p.Immutable.Denom)
					switch {
					case errors.Is(err, global.ErrUnsupportedDenom):
						pc = nil
					case err != nil:
						return err
					}
					contexts[key] = pc
				}

				stats.Pairs++
				if pc == nil {
					stats.Retracted++
					if err := retract(ctx, tx, p); err != nil {
						return err
					}
					continue
				}
				if err := commitPair(ctx, tx, pc, p); err != nil {
					return err
				}
			}

			if len(page) < opts.Limit {
				return nil
			}
			opts.StartAfter = page[len(page)-1].Address
		}
	})
	if err != nil {
		return ReindexStats{}, fmt.Errorf("failed to reindex pairs: %w", err)
	}

	s.logger.Info("Quote index rebuilt",
		zap.Int("pairs", stats.Pairs),
		zap.Int("retracted", stats.Retracted))
	return stats, nil
}

// retract drops every quote of a pair that can no longer be priced.
func retract(ctx context.Context, tx storage.Tx, p *pair.Pair) error {
	p.Internal.SellToPairQuote = nil
	p.Internal.BuyFromPairQuote = nil
	if err := tx.Pairs().Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save pair %s: %w", p.Address, err)
	}
	return index.Reconcile(ctx, tx.Index(), p)
}
