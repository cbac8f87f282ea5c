package pair

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// DepositTokens adds amount to the token escrow. Callers must Refresh.
func (p *Pair) DepositTokens(amount *uint256.Int) error {
	total, err := fixedpoint.Add(&p.TotalTokens, amount)
	if err != nil {
		return fmt.Errorf("failed to deposit tokens: %w", err)
	}
	p.TotalTokens = *total
	return nil
}

// WithdrawTokens removes amount from the token escrow.
func (p *Pair) WithdrawTokens(amount *uint256.Int) error {
	left, err := fixedpoint.Sub(&p.TotalTokens, amount)
	if err != nil {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientFunds, p.TotalTokens.Dec(), amount.Dec())
	}
	p.TotalTokens = *left
	return nil
}

// DepositNFTs adds token ids to escrow. Nothing changes if any id is already held.
func (p *Pair) DepositNFTs(tokenIDs []string) error {
	seen := make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		if id == "" {
			return fmt.Errorf("%w: empty token id", ErrInvalidConfig)
		}
		if _, dup := seen[id]; dup || p.HoldsNFT(id) {
			return fmt.Errorf("%w: %s", ErrNFTAlreadyHeld, id)
		}
		seen[id] = struct{}{}
	}
	for _, id := range tokenIDs {
		if err := p.addNFT(id); err != nil {
			return err
		}
	}
	return nil
}

// WithdrawNFTs removes the given ids. Nothing changes if any id is missing.
func (p *Pair) WithdrawNFTs(tokenIDs []string) error {
	for _, id := range tokenIDs {
		if !p.HoldsNFT(id) {
			return fmt.Errorf("%w: %s", ErrNFTNotDeposited, id)
		}
	}
	for _, id := range tokenIDs {
		if err := p.removeNFT(id); err != nil {
			return err
		}
	}
	return nil
}

// WithdrawAnyNFTs removes up to n of the lowest ids and returns them.
func (p *Pair) WithdrawAnyNFTs(n int) []string {
	if n > len(p.NFTs) {
		n = len(p.NFTs)
	}
	taken := append([]string(nil), p.NFTs[:n]...)
	p.NFTs = append([]string{}, p.NFTs[n:]...)
	return taken
}

// WithdrawAll empties the escrow and deactivates the pair.
func (p *Pair) WithdrawAll() (uint256.Int, []string) {
	tokens := p.TotalTokens
	nfts := p.NFTs
	p.TotalTokens = uint256.Int{}
	p.NFTs = []string{}
	p.Config.IsActive = false
	return tokens, nfts
}

func (p *Pair) addNFT(tokenID string) error {
	i := sort.SearchStrings(p.NFTs, tokenID)
	if i < len(p.NFTs) && p.NFTs[i] == tokenID {
		return fmt.Errorf("%w: %s", ErrNFTAlreadyHeld, tokenID)
	}
	p.NFTs = append(p.NFTs, "")
	copy(p.NFTs[i+1:], p.NFTs[i:])
	p.NFTs[i] = tokenID
	return nil
}

func (p *Pair) removeNFT(tokenID string) error {
	i := sort.SearchStrings(p.NFTs, tokenID)
	if i >= len(p.NFTs) || p.NFTs[i] != tokenID {
		return fmt.Errorf("%w: %s", ErrNFTNotDeposited, tokenID)
	}
	p.NFTs = append(p.NFTs[:i], p.NFTs[i+1:]...)
	return nil
}

// NFTPage returns held ids after startAfter, ascending or descending.
func (p *Pair) NFTPage(startAfter string, limit int, descending bool) []string {
	var page []string
	if !descending {
		i := 0
		if startAfter != "" {
			i = sort.Search(len(p.NFTs), func(j int) bool { return p.NFTs[j] > startAfter })
		}
		for ; i < len(p.NFTs) && len(page) < limit; i++ {
			page = append(page, p.NFTs[i])
		}
		return page
	}

	i := len(p.NFTs) - 1
	if startAfter != "" {
		i = sort.SearchStrings(p.NFTs, startAfter) - 1
	}
	for ; i >= 0 && len(page) < limit; i-- {
		page = append(page, p.NFTs[i])
	}
	return page
}
