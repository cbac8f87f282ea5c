package settlement

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/payout"
)

// Kind distinguishes token legs from NFT legs.
type Kind string

const (
	KindToken Kind = "token"
	KindNFT   Kind = "nft"
)

// Transfer is one leg of a batch.
type Transfer struct {
	Kind Kind   `json:"kind"`
	From string `json:"from"`
	To   string `json:"to"`

	Denom  string      `json:"denom,omitempty"`
	Amount uint256.Int `json:"-"`

	Collection string `json:"collection,omitempty"`
	TokenID    string `json:"token_id,omitempty"`
}

func TokenTransfer(from, to, denom string, amount *uint256.Int) Transfer {
	return Transfer{Kind: KindToken, From: from, To: to, Denom: denom, Amount: *amount}
}

func NFTTransfer(collection, tokenID, from, to string) Transfer {
	return Transfer{Kind: KindNFT, From: from, To: to, Collection: collection, TokenID: tokenID}
}

func (t Transfer) String() string {
	if t.Kind == KindNFT {
		return fmt.Sprintf("nft %s/%s %s->%s", t.Collection, t.TokenID, t.From, t.To)
	}
	return fmt.Sprintf("%s%s %s->%s", t.Amount.Dec(), t.Denom, t.From, t.To)
}

// Batch is an ordered list of transfers settling one fill.
type Batch struct {
	Transfers []Transfer
}

func (b *Batch) Add(t ...Transfer) {
	b.Transfers = append(b.Transfers, t...)
}

// AddFees appends one token transfer per fee of q, paid by from.
func (b *Batch) AddFees(from, denom string, q *payout.QuoteSummary) {
	for _, fee := range q.Fees() {
		b.Add(TokenTransfer(from, fee.Recipient, denom, &fee.Amount))
	}
}

// Apply executes t against l. An empty From mints. Zero-amount and self
// transfers are no-ops.
func Apply(ctx context.Context, l Ledger, t Transfer) error {
	switch t.Kind {
	case KindToken:
		if t.Amount.IsZero() || t.From == t.To {
			return nil
		}
		if t.Denom == "" || t.To == "" {
			return fmt.Errorf("%w: %s", ErrInvalidTransfer, t)
		}
		if t.From != "" {
			if err := l.Debit(ctx, t.From, t.Denom, &t.Amount); err != nil {
				return err
			}
		}
		return l.Credit(ctx, t.To, t.Denom, &t.Amount)

	case KindNFT:
		if t.Collection == "" || t.TokenID == "" || t.To == "" {
			return fmt.Errorf("%w: %s", ErrInvalidTransfer, t)
		}
		owner, err := l.OwnerOf(ctx, t.Collection, t.TokenID)
		if err != nil {
			return err
		}
		if t.From != "" && owner != t.From {
			return fmt.Errorf("%w: %s/%s is held by %q", ErrNotOwner, t.Collection, t.TokenID, owner)
		}
		if owner == t.To {
			return nil
		}
		return l.SetOwner(ctx, t.Collection, t.TokenID, t.To)

	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTransfer, t.Kind)
	}
}
