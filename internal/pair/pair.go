// internal/pair/pair.go
// Package pair models a single bonding-curve liquidity position.
package pair

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
)

// Immutable is fixed when the pair is created.
type Immutable struct {
	Collection string
	Owner      string
	Denom      string
}

// Config is owner-mutable. An empty AssetRecipient means the owner.
type Config struct {
	Type           Type
	Curve          curve.Curve
	IsActive       bool
	AssetRecipient string
}

// Internal caches the quotes derived from the rest of the pair. A nil quote
// means the pair cannot trade in that direction right now.
type Internal struct {
	TotalNFTs        uint64
	SellToPairQuote  *payout.QuoteSummary
	BuyFromPairQuote *payout.QuoteSummary
}

// Pair is one liquidity position and its escrow.
type Pair struct {
	Address     string
	Immutable   Immutable
	Config      Config
	Internal    Internal
	TotalTokens uint256.Int
	// NFTs holds escrowed token ids in ascending order.
	NFTs []string
}

// New returns an empty, inactive pair.
func New(address string, imm Immutable, cfg Config) *Pair {
	cfg.IsActive = false
	return &Pair{
		Address:   address,
		Immutable: imm,
		Config:    cfg,
		NFTs:      []string{},
	}
}

// Clone returns a detached copy. Quote summaries are never modified in place,
// so they are shared.
func (p *Pair) Clone() *Pair {
	c := *p
	c.NFTs = append([]string(nil), p.NFTs...)
	return &c
}

// Recipient is where the pair's proceeds and fees go.
func (p *Pair) Recipient() string {
	if p.Config.AssetRecipient != "" {
		return p.Config.AssetRecipient
	}
	return p.Immutable.Owner
}

// Authorize allows only the owner to manage the pair.
func (p *Pair) Authorize(sender string) error {
	if sender != p.Immutable.Owner {
		return ErrUnauthorized
	}
	return nil
}

// HoldsNFT reports whether tokenID is in escrow.
func (p *Pair) HoldsNFT(tokenID string) bool {
	i := sort.SearchStrings(p.NFTs, tokenID)
	return i < len(p.NFTs) && p.NFTs[i] == tokenID
}

func (p *Pair) reserves() curve.Reserves {
	return curve.Reserves{TotalTokens: p.TotalTokens, TotalNFTs: uint64(len(p.NFTs))}
}
