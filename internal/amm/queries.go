package amm

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/history"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

func (s *Service) GetPair(ctx context.Context, address string) (*pair.Pair, error) {
	var p *pair.Pair
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		p, err = tx.Pairs().Get(ctx, address)
		return err
	})
	return p, err
}

func (s *Service) ListPairs(ctx context.Context, filter storage.PairFilter, opts types.QueryOptions) ([]*pair.Pair, error) {
	var pairs []*pair.Pair
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		pairs, err = tx.Pairs().List(ctx, filter, opts)
		return err
	})
	return pairs, err
}

// QuotePair computes the pair's live quote. A nil summary with a nil error
// means the pair cannot trade in that direction.
func (s *Service) QuotePair(ctx context.Context, address string, d types.Direction) (*payout.QuoteSummary, error) {
	var q *payout.QuoteSummary
	err := s.store.View(ctx, func(tx storage.Tx) error {
		p, pc, err := s.loadPair(ctx, tx, address)
		if err != nil {
			return err
		}
		q = p.Quote(pc, d)
		return nil
	})
	return q, err
}

// NftDeposits pages the token ids a pair holds.
func (s *Service) NftDeposits(ctx context.Context, address string, opts types.QueryOptions) ([]string, error) {
	p, err := s.GetPair(ctx, address)
	if err != nil {
		return nil, err
	}
	ids := p.NFTPage(opts.StartAfter, types.ClampLimit(opts.Limit), opts.Descending)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// SimPairSwaps returns the quotes of up to limit consecutive fills against
// one pair.
func (s *Service) SimPairSwaps(ctx context.Context, address string, d types.Direction, limit int) ([]payout.QuoteSummary, error) {
	var quotes []payout.QuoteSummary
	err := s.store.View(ctx, func(tx storage.Tx) error {
		p, pc, err := s.loadPair(ctx, tx, address)
		if err != nil {
			return err
		}
		quotes = p.SimSwaps(pc, d, types.ClampLimit(limit))
		return nil
	})
	if quotes == nil {
		quotes = []payout.QuoteSummary{}
	}
	return quotes, err
}

// BestQuotesQuery pages the quote index best-first.
type BestQuotesQuery struct {
	Collection string
	Denom      string
	Direction  types.Direction
	// Cursor is the last entry of the previous page.
	Cursor *index.Cursor
	Limit  int
}

func (s *Service) BestQuotes(ctx context.Context, q BestQuotesQuery) ([]index.Entry, error) {
	if q.Collection == "" || q.Denom == "" {
		return nil, invalid("collection and denom are required")
	}
	var entries []index.Entry
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		entries, err = tx.Index().Range(ctx, index.Query{
			Collection: q.Collection,
			Denom:      q.Denom,
			Direction:  q.Direction,
			Cursor:     q.Cursor,
			Order:      q.Direction.BestFirst(),
			Limit:      types.ClampLimit(q.Limit),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read quote index: %w", err)
	}
	if entries == nil {
		entries = []index.Entry{}
	}
	return entries, nil
}

func (s *Service) Balance(ctx context.Context, account, denom string) (*uint256.Int, error) {
	var balance *uint256.Int
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		balance, err = tx.Ledger().Balance(ctx, account, denom)
		return err
	})
	return balance, err
}

// OwnerOf returns the NFT's owner, or "" if it was never minted.
func (s *Service) OwnerOf(ctx context.Context, collection, tokenID string) (string, error) {
	var owner string
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		owner, err = tx.Ledger().OwnerOf(ctx, collection, tokenID)
		return err
	})
	return owner, err
}

// HistoryFilter selects recent fills. Pair takes precedence over Trader.
type HistoryFilter struct {
	Pair   string
	Trader string
	Limit  int
}

func (s *Service) History(filter HistoryFilter) []history.Record {
	if s.history == nil {
		return []history.Record{}
	}
	var records []history.Record
	switch {
	case filter.Pair != "":
		records = s.history.ByPair(filter.Pair)
	case filter.Trader != "":
		records = s.history.ByTrader(filter.Trader)
	default:
		records = s.history.Recent(filter.Limit)
	}
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[len(records)-filter.Limit:]
	}
	if records == nil {
		records = []history.Record{}
	}
	return records
}
