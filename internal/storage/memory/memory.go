// internal/storage/memory/memory.go
// Package memory is an in-process Store. Transactions work on a private copy
// of the state that replaces the committed one on success.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

type state struct {
	pairs  map[string]*pair.Pair
	index  *index.Memory
	ledger *settlement.MemoryLedger
}

func newState() *state {
	return &state{
		pairs:  make(map[string]*pair.Pair),
		index:  index.NewMemory(),
		ledger: settlement.NewMemoryLedger(),
	}
}

func (s *state) clone() *state {
	c := &state{
		pairs:  make(map[string]*pair.Pair, len(s.pairs)),
		index:  s.index.Clone(),
		ledger: s.ledger.Clone(),
	}
	for k, p := range s.pairs {
		c.pairs[k] = p.Clone()
	}
	return c
}

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store.
type Store struct {
	mu    sync.RWMutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) View(ctx context.Context, fn func(storage.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.state})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{st: s.state.clone()}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	s.state = t.st
	return nil
}

func (s *Store) Close() error { return nil }

// tx resolves its state on every call so a rolled back savepoint is seen by
// repositories handed out earlier.
type tx struct {
	st *state
}

func (t *tx) Pairs() storage.PairRepository { return pairRepo{t} }
func (t *tx) Index() index.Index             { return indexView{t} }
func (t *tx) Ledger() settlement.Ledger      { return ledgerView{t} }

func (t *tx) Savepoint(ctx context.Context, fn func(storage.Tx) error) error {
	saved := t.st.clone()
	if err := fn(t); err != nil {
		t.st = saved
		return err
	}
	return nil
}

type pairRepo struct{ t *tx }

func (r pairRepo) Get(_ context.Context, address string) (*pair.Pair, error) {
	p, ok := r.t.st.pairs[address]
	if !ok {
		return nil, fmt.Errorf("pair %s: %w", address, storage.ErrNotFound)
	}
	return p.Clone(), nil
}

func (r pairRepo) Save(_ context.Context, p *pair.Pair) error {
	r.t.st.pairs[p.Address] = p.Clone()
	return nil
}

func (r pairRepo) List(_ context.Context, filter storage.PairFilter, opts types.QueryOptions) ([]*pair.Pair, error) {
	var matched []*pair.Pair
	for _, p := range r.t.st.pairs {
		if filter.Collection != "" && p.Immutable.Collection != filter.Collection {
			continue
		}
		if filter.Owner != "" && p.Immutable.Owner != filter.Owner {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if opts.Descending {
			return matched[i].Address > matched[j].Address
		}
		return matched[i].Address < matched[j].Address
	})

	limit := types.ClampLimit(opts.Limit)
	out := make([]*pair.Pair, 0, limit)
	for _, p := range matched {
		if opts.StartAfter != "" {
			if !opts.Descending && p.Address <= opts.StartAfter {
				continue
			}
			if opts.Descending && p.Address >= opts.StartAfter {
				continue
			}
		}
		out = append(out, p.Clone())
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type indexView struct{ t *tx }

func (v indexView) Upsert(ctx context.Context, e index.Entry) error {
	return v.t.st.index.Upsert(ctx, e)
}

func (v indexView) Remove(ctx context.Context, pairAddress string, d types.Direction) error {
	return v.t.st.index.Remove(ctx, pairAddress, d)
}

func (v indexView) Range(ctx context.Context, q index.Query) ([]index.Entry, error) {
	return v.t.st.index.Range(ctx, q)
}

type ledgerView struct{ t *tx }

func (v ledgerView) Atomically(ctx context.Context, fn func(settlement.Ledger) error) error {
	return v.t.Savepoint(ctx, func(storage.Tx) error { return fn(v) })
}

func (v ledgerView) Balance(ctx context.Context, account, denom string) (*uint256.Int, error) {
	return v.t.st.ledger.Balance(ctx, account, denom)
}

func (v ledgerView) Credit(ctx context.Context, account, denom string, amount *uint256.Int) error {
	return v.t.st.ledger.Credit(ctx, account, denom, amount)
}

func (v ledgerView) Debit(ctx context.Context, account, denom string, amount *uint256.Int) error {
	return v.t.st.ledger.Debit(ctx, account, denom, amount)
}

func (v ledgerView) OwnerOf(ctx context.Context, collection, tokenID string) (string, error) {
	return v.t.st.ledger.OwnerOf(ctx, collection, tokenID)
}

func (v ledgerView) SetOwner(ctx context.Context, collection, tokenID, owner string) error {
	return v.t.st.ledger.SetOwner(ctx, collection, tokenID, owner)
}
