// internal/router/source.go
// Package router finds best execution across pairs. Sources walk the quote
// index lazily and re-rank each pair after simulating its fill, so the next
// quote is always the best one left without rescanning visited liquidity.
package router

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// PairLoader resolves an address to a detached pair.
type PairLoader interface {
	LoadPair(ctx context.Context, address string) (*pair.Pair, error)
}

// LoaderFunc adapts a function to PairLoader.
type LoaderFunc func(ctx context.Context, address string) (*pair.Pair, error)

func (f LoaderFunc) LoadPair(ctx context.Context, address string) (*pair.Pair, error) {
	return f(ctx, address)
}

// Quote is one unit of liquidity offered by a pair.
type Quote struct {
	Address   string
	Direction types.Direction
	// Price is the published price: seller proceeds for sell-to-pair, total
	// cost for buy-from-pair.
	Price   uint256.Int
	Summary *payout.QuoteSummary
	// Pair is the simulated pair state the quote was taken from.
	Pair *pair.Pair
}

// better reports whether a should be taken before b.
func better(d types.Direction, a, b *Quote) bool {
	if c := a.Price.Cmp(&b.Price); c != 0 {
		return d.Better(&a.Price, &b.Price)
	}
	return a.Address < b.Address
}

// Source yields quotes best first.
type Source interface {
	Peek() *Quote
	Pop(ctx context.Context) (*Quote, error)
}

type candidates struct {
	direction types.Direction
	items     []*Quote
}

func (c *candidates) Len() int           { return len(c.items) }
func (c *candidates) Less(i, j int) bool { return better(c.direction, c.items[i], c.items[j]) }
func (c *candidates) Swap(i, j int)      { c.items[i], c.items[j] = c.items[j], c.items[i] }
func (c *candidates) Push(x any)         { c.items = append(c.items, x.(*Quote)) }
func (c *candidates) Pop() any {
	old := c.items
	n := len(old)
	q := old[n-1]
	old[n-1] = nil
	c.items = old[:n-1]
	return q
}

// PairSource yields the quotes of one (collection, denom, direction) bucket.
// Index entries are fetched one at a time; a new entry is only needed once
// the last fetched pair has been popped, because every unvisited entry ranks
// at or below it.
type PairSource struct {
	idx    index.Index
	loader PairLoader
	pc     *payout.Context
	query  index.Query

	heap      *candidates
	visited   map[string]struct{}
	exhausted bool
	logger    *zap.Logger
}

// NewPairSource primes a source with the best quoting pair of the bucket.
func NewPairSource(
	ctx context.Context,
	idx index.Index,
	loader PairLoader,
	pc *payout.Context,
	collection string,
	d types.Direction,
	logger *zap.Logger,
) (*PairSource, error) {
	s := &PairSource{
		idx:    idx,
		loader: loader,
		pc:     pc,
		query: index.Query{
			Collection: collection,
			Denom:      pc.Denom,
			Direction:  d,
			Order:      d.BestFirst(),
			Limit:      1,
		},
		heap:    &candidates{direction: d},
		visited: make(map[string]struct{}),
		logger:  logger.Named("pair_source"),
	}
	if err := s.fetch(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// fetch advances the index cursor until a pair with a live quote is pushed
// or the bucket is exhausted.
func (s *PairSource) fetch(ctx context.Context) error {
	for !s.exhausted {
		entries, err := s.idx.Range(ctx, s.query)
		if err != nil {
			return fmt.Errorf("failed to read quote index: %w", err)
		}
		if len(entries) == 0 {
			s.exhausted = true
			return nil
		}
		e := entries[0]
		s.query.Cursor = index.CursorOf(e)

		// a pair filled earlier in this run moved to a worse index slot
		if _, seen := s.visited[e.Pair]; seen {
			continue
		}
		s.visited[e.Pair] = struct{}{}

		p, err := s.loader.LoadPair(ctx, e.Pair)
		if err != nil {
			return fmt.Errorf("failed to load pair %s: %w", e.Pair, err)
		}
		if q := s.quote(p); q != nil {
			heap.Push(s.heap, q)
			return nil
		}
		s.logger.Debug("Indexed pair has no live quote", zap.String("pair", e.Pair))
	}
	return nil
}

func (s *PairSource) quote(p *pair.Pair) *Quote {
	d := s.query.Direction
	summary := p.Quote(s.pc, d)
	if summary == nil {
		return nil
	}
	return &Quote{
		Address:   p.Address,
		Direction: d,
		Price:     *index.PriceOf(d, summary),
		Summary:   summary,
		Pair:      p,
	}
}

func (s *PairSource) Peek() *Quote {
	if s.heap.Len() == 0 {
		return nil
	}
	return s.heap.items[0]
}

// Pop removes the best quote, then re-ranks its pair at the price of the
// following unit. It returns nil when no liquidity is left.
func (s *PairSource) Pop(ctx context.Context) (*Quote, error) {
	if s.heap.Len() == 0 {
		return nil, nil
	}
	q := heap.Pop(s.heap).(*Quote)

	if c := s.query.Cursor; c != nil && c.Pair == q.Address {
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
	}

	sim, err := q.Pair.SimulateFill(s.pc, q.Direction)
	switch {
	case errors.Is(err, pair.ErrNoQuote):
	case err != nil:
		s.logger.Debug("Simulated fill failed", zap.String("pair", q.Address), zap.Error(err))
	default:
		if next := s.quote(sim); next != nil {
			heap.Push(s.heap, next)
		}
	}
	return q, nil
}
