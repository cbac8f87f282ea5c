// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// ErrNotFound is returned for missing records.
var ErrNotFound = errors.New("not found")

// PairFilter narrows pair listings. Empty fields match everything.
type PairFilter struct {
	Collection string
	Owner      string
}

// PairRepository persists pairs. Every pair is stored as its immutable,
// config and internal records plus the set of escrowed NFTs.
type PairRepository interface {
	// Get returns a detached copy; changes are kept only through Save.
	Get(ctx context.Context, address string) (*pair.Pair, error)
	Save(ctx context.Context, p *pair.Pair) error
	// List pages by address.
	List(ctx context.Context, filter PairFilter, opts types.QueryOptions) ([]*pair.Pair, error)
}

// Tx is one atomic unit of work.
type Tx interface {
	Pairs() PairRepository
	Index() index.Index
	Ledger() settlement.Ledger
	// Savepoint runs fn so that an error from it rolls back only what fn did.
	Savepoint(ctx context.Context, fn func(Tx) error) error
}

// Store opens transactions.
type Store interface {
	// View runs fn against a consistent snapshot. fn must not write.
	View(ctx context.Context, fn func(Tx) error) error
	// Update commits everything fn did, or nothing if it returns an error.
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}
