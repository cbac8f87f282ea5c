package pair

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// Quote prices one unit in direction d from the pair's current state. It
// returns nil when the pair cannot trade that way.
func (p *Pair) Quote(pc *payout.Context, d types.Direction) *payout.QuoteSummary {
	if !p.Config.IsActive || !accepts(p.Config.Type, d) {
		return nil
	}
	if d == types.BuyFromPair && len(p.NFTs) == 0 {
		return nil
	}

	gross, err := curve.Price(p.Config.Curve, d, p.reserves())
	if err != nil || gross.IsZero() {
		return nil
	}
	if d == types.SellToPair && gross.Gt(&p.TotalTokens) {
		return nil
	}

	summary, err := pc.Split(gross, swapFeePercent(p.Config.Type), p.Recipient())
	if err != nil {
		return nil
	}
	return summary
}

// Refresh recomputes both cached quotes.
func (p *Pair) Refresh(pc *payout.Context) {
	p.Internal.TotalNFTs = uint64(len(p.NFTs))
	p.Internal.SellToPairQuote = p.Quote(pc, types.SellToPair)
	p.Internal.BuyFromPairQuote = p.Quote(pc, types.BuyFromPair)
}

// CachedQuote returns the quote stored by the last Refresh.
func (p *Pair) CachedQuote(d types.Direction) *payout.QuoteSummary {
	if d == types.SellToPair {
		return p.Internal.SellToPairQuote
	}
	return p.Internal.BuyFromPairQuote
}

// FillResult describes an applied fill.
type FillResult struct {
	Summary payout.QuoteSummary
	// TokenID is the NFT that entered (sell) or left (buy) the pair.
	TokenID string
	// KeptNFT is set when a sold NFT stays in escrow.
	KeptNFT bool
	// KeptTokens is set when the seller amount of a buy stays in escrow.
	KeptTokens bool
}

// ApplyFill trades one unit in direction d against p. For sells tokenID is
// the incoming NFT. For buys it picks the NFT to release; empty means the
// lowest held id.
func (p *Pair) ApplyFill(pc *payout.Context, d types.Direction, tokenID string) (*FillResult, error) {
	summary := p.Quote(pc, d)
	if summary == nil {
		return nil, ErrNoQuote
	}
	reserves := p.reserves()
	result := &FillResult{Summary: *summary}

	switch d {
	case types.SellToPair:
		left, err := fixedpoint.Sub(&p.TotalTokens, summary.Total())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
		p.TotalTokens = *left
		result.TokenID = tokenID
		if reinvestNFTs(p.Config.Type) {
			if err := p.addNFT(tokenID); err != nil {
				return nil, err
			}
			result.KeptNFT = true
		}

	case types.BuyFromPair:
		if tokenID == "" {
			tokenID = p.NFTs[0]
		}
		if err := p.removeNFT(tokenID); err != nil {
			return nil, err
		}
		result.TokenID = tokenID
		if reinvestTokens(p.Config.Type) {
			total, err := fixedpoint.Add(&p.TotalTokens, &summary.SellerAmount)
			if err != nil {
				return nil, err
			}
			p.TotalTokens = *total
			result.KeptTokens = true
		}

	default:
		return nil, fmt.Errorf("unknown direction %q", d)
	}

	next, err := curve.Advance(p.Config.Curve, d, reserves)
	if err != nil {
		// the curve cannot move further; stop trading instead of quoting stale prices
		p.Config.IsActive = false
	} else {
		p.Config.Curve = next
	}

	p.Refresh(pc)
	return result, nil
}

// SimulateFill applies one fill to a detached copy of p.
func (p *Pair) SimulateFill(pc *payout.Context, d types.Direction) (*Pair, error) {
	sim := p.Clone()
	tokenID := ""
	if d == types.SellToPair {
		tokenID = simulatedTokenID(sim)
	}
	if _, err := sim.ApplyFill(pc, d, tokenID); err != nil {
		return nil, err
	}
	return sim, nil
}

// simulatedTokenID returns an unused placeholder id. It sorts after plain
// alphanumeric ids so simulated buys keep releasing real ids first.
func simulatedTokenID(p *Pair) string {
	for i := len(p.NFTs); ; i++ {
		id := fmt.Sprintf("~sim-%d", i)
		if !p.HoldsNFT(id) {
			return id
		}
	}
}

// SimSwaps returns the quotes of up to limit consecutive fills in direction d.
func (p *Pair) SimSwaps(pc *payout.Context, d types.Direction, limit int) []payout.QuoteSummary {
	var quotes []payout.QuoteSummary
	sim := p
	for i := 0; i < limit; i++ {
		summary := sim.Quote(pc, d)
		if summary == nil {
			break
		}
		quotes = append(quotes, *summary)

		next, err := sim.SimulateFill(pc, d)
		if err != nil {
			break
		}
		sim = next
	}
	return quotes
}

// SpotPrice is the stored spot price, or nil for curves without one.
func (p *Pair) SpotPrice() *uint256.Int {
	switch c := p.Config.Curve.(type) {
	case curve.Linear:
		return new(uint256.Int).Set(&c.SpotPrice)
	case curve.Exponential:
		return new(uint256.Int).Set(&c.SpotPrice)
	default:
		return nil
	}
}
