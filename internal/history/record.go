// Package history keeps a record of every fill: an append-only CSV file on
// disk and the most recent fills in memory.
package history

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// Record is one settled fill.
type Record struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Trader     string          `json:"trader"`
	Pair       string          `json:"pair"`
	Collection string          `json:"collection"`
	Denom      string          `json:"denom"`
	Direction  types.Direction `json:"direction"`
	TokenID    string          `json:"token_id"`
	// Price is what the trader received (sell) or paid (buy).
	Price   string `json:"price"`
	Gross   string `json:"gross"`
	Burn    string `json:"fair_burn"`
	Royalty string `json:"royalty,omitempty"`
	SwapFee string `json:"swap_fee,omitempty"`
}

// NewRecord flattens a fill summary into a record.
func NewRecord(id, trader, pair, collection, denom string, d types.Direction, tokenID string, price *uint256.Int, s *payout.QuoteSummary) Record {
	r := Record{
		ID:         id,
		Timestamp:  time.Now().UTC(),
		Trader:     trader,
		Pair:       pair,
		Collection: collection,
		Denom:      denom,
		Direction:  d,
		TokenID:    tokenID,
		Price:      price.Dec(),
		Gross:      s.Total().Dec(),
		Burn:       s.FairBurn.Amount.Dec(),
	}
	if s.Royalty != nil {
		r.Royalty = s.Royalty.Amount.Dec()
	}
	if s.Swap != nil {
		r.SwapFee = s.Swap.Amount.Dec()
	}
	return r
}

// CSVHeaders matches the column order of ToCSV.
func CSVHeaders() []string {
	return []string{
		"id", "timestamp", "trader", "pair", "collection", "denom", "direction",
		"token_id", "price", "gross", "fair_burn", "royalty", "swap_fee",
	}
}

func (r *Record) ToCSV() []string {
	return []string{
		r.ID,
		r.Timestamp.Format(time.RFC3339),
		r.Trader,
		r.Pair,
		r.Collection,
		r.Denom,
		string(r.Direction),
		r.TokenID,
		r.Price,
		r.Gross,
		r.Burn,
		r.Royalty,
		r.SwapFee,
	}
}
