// internal/index/index.go
// Package index keeps each pair's current best quote per direction in
// price-sorted order so routers can find liquidity without scanning pairs.
package index

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// Entry is one pair's published quote in one direction.
type Entry struct {
	Pair       string          `json:"pair"`
	Collection string          `json:"collection"`
	Denom      string          `json:"denom"`
	Direction  types.Direction `json:"direction"`
	Price      uint256.Int     `json:"-"`
}

// Cursor is an exclusive lower bound for Range.
type Cursor struct {
	Price uint256.Int
	Pair  string
}

// CursorOf returns the cursor positioned at e.
func CursorOf(e Entry) *Cursor {
	return &Cursor{Price: e.Price, Pair: e.Pair}
}

// Query selects entries of one (collection, denom, direction) bucket.
// Ascending orders by price then address; Descending orders by price
// descending then address ascending. Results start strictly after Cursor.
type Query struct {
	Collection string
	Denom      string
	Direction  types.Direction
	Cursor     *Cursor
	Order      types.Order
	Limit      int
}

// Index is the quote index.
type Index interface {
	Upsert(ctx context.Context, e Entry) error
	Remove(ctx context.Context, pairAddress string, d types.Direction) error
	Range(ctx context.Context, q Query) ([]Entry, error)
}

// PriceOf is the price a quote is published at: what a seller receives for
// sell-to-pair, what a buyer pays for buy-from-pair.
func PriceOf(d types.Direction, q *payout.QuoteSummary) *uint256.Int {
	if d == types.SellToPair {
		return new(uint256.Int).Set(&q.SellerAmount)
	}
	return q.Total()
}

// Reconcile publishes p's cached quotes, removing directions it cannot trade.
func Reconcile(ctx context.Context, idx Index, p *pair.Pair) error {
	for _, d := range types.Directions {
		q := p.CachedQuote(d)
		if q == nil {
			if err := idx.Remove(ctx, p.Address, d); err != nil {
				return fmt.Errorf("failed to remove %s quote of %s: %w", d, p.Address, err)
			}
			continue
		}

		e := Entry{
			Pair:       p.Address,
			Collection: p.Immutable.Collection,
			Denom:      p.Immutable.Denom,
			Direction:  d,
			Price:      *PriceOf(d, q),
		}
		if err := idx.Upsert(ctx, e); err != nil {
			return fmt.Errorf("failed to publish %s quote of %s: %w", d, p.Address, err)
		}
	}
	return nil
}

// Before reports whether a sorts before b under order o.
func Before(o types.Order, a, b Entry) bool {
	if c := a.Price.Cmp(&b.Price); c != 0 {
		if o == types.Descending {
			return c > 0
		}
		return c < 0
	}
	return a.Pair < b.Pair
}

// after reports whether e sorts strictly after cursor c under order o.
func after(o types.Order, e Entry, c *Cursor) bool {
	if c == nil {
		return true
	}
	return Before(o, Entry{Price: c.Price, Pair: c.Pair}, e)
}
