// internal/swap/types.go
// Package swap executes batch and direct swaps: it walks the router,
// enforces per-unit bounds, applies fills to the real pairs and settles
// each fill through the ledger.
package swap

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

var (
	// ErrDeadlineExceeded means the request arrived after its deadline.
	ErrDeadlineExceeded = errors.New("swap deadline exceeded")
	// ErrSlippage means the best price violates the unit's bound.
	ErrSlippage = errors.New("price outside slippage bound")
	// ErrNoLiquidity means no pair can fill the unit.
	ErrNoLiquidity = errors.New("no liquidity")
	// ErrNoSwaps means a robust batch filled nothing.
	ErrNoSwaps = errors.New("no swaps executed")
	// ErrEmptyRequest means the request names no units.
	ErrEmptyRequest = errors.New("swap request has no units")
	// ErrInvalidOrder means a unit cannot be executed as specified.
	ErrInvalidOrder = errors.New("invalid order")
)

// Params apply to a whole request.
type Params struct {
	// Deadline is ignored when zero.
	Deadline time.Time `json:"deadline" yaml:"deadline"`
	// Robust skips failing units instead of aborting the batch.
	Robust bool `json:"robust" yaml:"robust"`
	// AssetRecipient receives the proceeds; empty means the sender.
	AssetRecipient string `json:"asset_recipient,omitempty" yaml:"asset_recipient"`
}

func (p Params) recipient(sender string) string {
	if p.AssetRecipient != "" {
		return p.AssetRecipient
	}
	return sender
}

// SellOrder sells one NFT for at least MinOutput.
type SellOrder struct {
	TokenID   string
	MinOutput uint256.Int
}

// SellRequest swaps NFTs for tokens across the best pairs.
type SellRequest struct {
	Sender     string
	Collection string
	Denom      string
	Orders     []SellOrder
	Params     Params
}

// BuyRequest buys one NFT per max input, cheapest first.
type BuyRequest struct {
	Sender     string
	Collection string
	Denom      string
	MaxInputs  []uint256.Int
	Params     Params
}

// DirectSellRequest sells one NFT to a chosen pair.
type DirectSellRequest struct {
	Sender    string
	Pair      string
	TokenID   string
	MinOutput uint256.Int
	Params    Params
}

// DirectBuyRequest buys from a chosen pair. An empty TokenID takes the
// lowest id the pair holds.
type DirectBuyRequest struct {
	Sender   string
	Pair     string
	TokenID  string
	MaxInput uint256.Int
	Params   Params
}

// Fill is one executed (or, for simulations, planned) unit.
type Fill struct {
	Unit      int             `json:"unit"`
	Pair      string          `json:"pair"`
	Direction types.Direction `json:"direction"`
	TokenID   string          `json:"token_id"`
	// Price is what the trader received (sell) or paid (buy).
	Price         uint256.Int         `json:"-"`
	Summary       payout.QuoteSummary `json:"summary"`
	CorrelationID uuid.UUID           `json:"correlation_id"`
}

// UnitError is the failure of one unit.
type UnitError struct {
	Unit    int
	TokenID string
	Err     error
}

func (e *UnitError) Error() string {
	if e.TokenID != "" {
		return fmt.Sprintf("unit %d (token %s): %v", e.Unit, e.TokenID, e.Err)
	}
	return fmt.Sprintf("unit %d: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Result summarises a request.
type Result struct {
	Fills   []Fill
	Skipped []UnitError
	// Volume is the gross amount traded.
	Volume uint256.Int
}

func (r *Result) add(f Fill) {
	r.Fills = append(r.Fills, f)
	r.Volume.Add(&r.Volume, f.Summary.Total())
}
