// internal/types/types.go
package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Direction names the side of a fill from the pair's point of view.
type Direction string

const (
	// SellToPair: a trader sends an NFT and receives tokens.
	SellToPair Direction = "sell_to_pair"
	// BuyFromPair: a trader sends tokens and receives an NFT.
	BuyFromPair Direction = "buy_from_pair"
)

// Directions lists both directions in a fixed order.
var Directions = []Direction{SellToPair, BuyFromPair}

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case SellToPair, BuyFromPair:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown direction: %q", s)
	}
}

// BestFirst is the index order that yields the best quote for a trader first.
// Sellers want the highest bid, buyers the lowest ask.
func (d Direction) BestFirst() Order {
	if d == SellToPair {
		return Descending
	}
	return Ascending
}

// Better reports whether price a beats price b for the trader.
func (d Direction) Better(a, b *uint256.Int) bool {
	if d == SellToPair {
		return a.Gt(b)
	}
	return a.Lt(b)
}

// Order is a price ordering. Address ties are always broken ascending.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case Ascending, Descending:
		return Order(s), nil
	case "":
		return Ascending, nil
	default:
		return "", fmt.Errorf("unknown order: %q", s)
	}
}

const (
	DefaultQueryLimit = 10
	MaxQueryLimit     = 100
)

// QueryOptions paginates list queries.
type QueryOptions struct {
	Limit      int    `json:"limit" query:"limit"`
	StartAfter string `json:"start_after" query:"start_after"`
	Descending bool   `json:"descending" query:"descending"`
}

// ClampLimit applies the default and the hard maximum.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// Coin is an amount of a denom.
type Coin struct {
	Denom  string
	Amount uint256.Int
}
