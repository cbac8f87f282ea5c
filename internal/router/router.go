package router

import (
	"context"

	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// Router merges sources of one direction into a single best-first stream.
type Router struct {
	direction types.Direction
	sources   []Source
}

func New(d types.Direction, sources ...Source) *Router {
	return &Router{direction: d, sources: sources}
}

func (r *Router) best() (Source, *Quote) {
	var (
		src  Source
		peek *Quote
	)
	for _, s := range r.sources {
		q := s.Peek()
		if q == nil {
			continue
		}
		if peek == nil || better(r.direction, q, peek) {
			src, peek = s, q
		}
	}
	return src, peek
}

// Peek returns the next quote without consuming it.
func (r *Router) Peek() *Quote {
	_, q := r.best()
	return q
}

// Next consumes and returns the best quote, or nil when liquidity ran out.
func (r *Router) Next(ctx context.Context) (*Quote, error) {
	src, _ := r.best()
	if src == nil {
		return nil, nil
	}
	return src.Pop(ctx)
}

// Take consumes up to n quotes.
func (r *Router) Take(ctx context.Context, n int) ([]*Quote, error) {
	out := make([]*Quote, 0, n)
	for len(out) < n {
		q, err := r.Next(ctx)
		if err != nil {
			return out, err
		}
		if q == nil {
			break
		}
		out = append(out, q)
	}
	return out, nil
}
