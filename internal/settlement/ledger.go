// internal/settlement/ledger.go
// Package settlement moves tokens and NFTs between accounts once a fill has
// been priced.
package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// Ledger holds token balances per (account, denom) and the owner of every
// NFT per (collection, token id).
type Ledger interface {
	Balance(ctx context.Context, account, denom string) (*uint256.Int, error)
	Credit(ctx context.Context, account, denom string, amount *uint256.Int) error
	// Debit fails with ErrInsufficientFunds when the balance is short.
	Debit(ctx context.Context, account, denom string, amount *uint256.Int) error
	// OwnerOf returns "" for an unknown NFT.
	OwnerOf(ctx context.Context, collection, tokenID string) (string, error)
	SetOwner(ctx context.Context, collection, tokenID, owner string) error
}

// Atomic is implemented by transactional ledgers that can run a group of
// writes so that a failure undoes only that group.
type Atomic interface {
	Atomically(ctx context.Context, fn func(Ledger) error) error
}

type balanceKey struct {
	account string
	denom   string
}

type nftKey struct {
	collection string
	tokenID    string
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint256.Int
	owners   map[nftKey]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[balanceKey]uint256.Int),
		owners:   make(map[nftKey]string),
	}
}

// Clone returns an independent copy.
func (l *MemoryLedger) Clone() *MemoryLedger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c := NewMemoryLedger()
	for k, v := range l.balances {
		c.balances[k] = v
	}
	for k, v := range l.owners {
		c.owners[k] = v
	}
	return c
}

func (l *MemoryLedger) Balance(_ context.Context, account, denom string) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b := l.balances[balanceKey{account, denom}]
	return &b, nil
}

func (l *MemoryLedger) Credit(_ context.Context, account, denom string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := balanceKey{account, denom}
	b := l.balances[k]
	sum, err := fixedpoint.Add(&b, amount)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", account, err)
	}
	l.balances[k] = *sum
	return nil
}

func (l *MemoryLedger) Debit(_ context.Context, account, denom string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := balanceKey{account, denom}
	b := l.balances[k]
	if b.Lt(amount) {
		return fmt.Errorf("%w: %s has %s%s, needs %s", ErrInsufficientFunds, account, b.Dec(), denom, amount.Dec())
	}
	l.balances[k] = *new(uint256.Int).Sub(&b, amount)
	return nil
}

func (l *MemoryLedger) OwnerOf(_ context.Context, collection, tokenID string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owners[nftKey{collection, tokenID}], nil
}

func (l *MemoryLedger) SetOwner(_ context.Context, collection, tokenID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owners[nftKey{collection, tokenID}] = owner
	return nil
}
