package index

import (
	"context"
	"sort"
	"sync"

	"github.com/rovshanmuradov/nft-amm/internal/types"
)

type bucketKey struct {
	collection string
	denom      string
	direction  types.Direction
}

type entryKey struct {
	pair      string
	direction types.Direction
}

// Memory is an in-process Index. Each bucket is kept sorted ascending by
// (price, address).
type Memory struct {
	mu      sync.RWMutex
	buckets map[bucketKey][]Entry
	entries map[entryKey]Entry
}

func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[bucketKey][]Entry),
		entries: make(map[entryKey]Entry),
	}
}

func keyOf(e Entry) bucketKey {
	return bucketKey{collection: e.Collection, denom: e.Denom, direction: e.Direction}
}

// Clone returns an independent copy.
func (m *Memory) Clone() *Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := NewMemory()
	for k, b := range m.buckets {
		c.buckets[k] = append([]Entry(nil), b...)
	}
	for k, e := range m.entries {
		c.entries[k] = e
	}
	return c
}

func (m *Memory) Upsert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remove(e.Pair, e.Direction)

	k := keyOf(e)
	b := m.buckets[k]
	i := sort.Search(len(b), func(j int) bool { return Before(types.Ascending, e, b[j]) })
	b = append(b, Entry{})
	copy(b[i+1:], b[i:])
	b[i] = e
	m.buckets[k] = b
	m.entries[entryKey{pair: e.Pair, direction: e.Direction}] = e
	return nil
}

func (m *Memory) Remove(_ context.Context, pairAddress string, d types.Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(pairAddress, d)
	return nil
}

func (m *Memory) remove(pairAddress string, d types.Direction) {
	ek := entryKey{pair: pairAddress, direction: d}
	old, ok := m.entries[ek]
	if !ok {
		return
	}
	delete(m.entries, ek)

	k := keyOf(old)
	b := m.buckets[k]
	i := sort.Search(len(b), func(j int) bool { return !Before(types.Ascending, b[j], old) })
	if i < len(b) && b[i].Pair == old.Pair {
		b = append(b[:i], b[i+1:]...)
	}
	if len(b) == 0 {
		delete(m.buckets, k)
		return
	}
	m.buckets[k] = b
}

func (m *Memory) Range(_ context.Context, q Query) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := m.buckets[bucketKey{collection: q.Collection, denom: q.Denom, direction: q.Direction}]
	limit := types.ClampLimit(q.Limit)

	if q.Order == types.Descending {
		return rangeDescending(b, q.Cursor, limit), nil
	}

	start := 0
	if q.Cursor != nil {
		start = sort.Search(len(b), func(j int) bool { return after(types.Ascending, b[j], q.Cursor) })
	}
	end := start + limit
	if end > len(b) {
		end = len(b)
	}
	return append([]Entry(nil), b[start:end]...), nil
}

// rangeDescending walks an ascending bucket from the highest price group
// down, emitting each group in address order.
func rangeDescending(b []Entry, c *Cursor, limit int) []Entry {
	var out []Entry
	end := len(b)

	if c != nil {
		lo := sort.Search(len(b), func(j int) bool { return !b[j].Price.Lt(&c.Price) })
		hi := sort.Search(len(b), func(j int) bool { return b[j].Price.Gt(&c.Price) })
		for j := lo; j < hi && len(out) < limit; j++ {
			if b[j].Pair > c.Pair {
				out = append(out, b[j])
			}
		}
		end = lo
	}

	for end > 0 && len(out) < limit {
		price := b[end-1].Price
		start := sort.Search(end, func(j int) bool { return !b[j].Price.Lt(&price) })
		for j := start; j < end && len(out) < limit; j++ {
			out = append(out, b[j])
		}
		end = start
	}
	return out
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
