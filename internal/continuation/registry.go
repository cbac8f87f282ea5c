// internal/continuation/registry.go
// Package continuation correlates asynchronous collaborator replies with the
// request that is waiting for them.
package continuation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnknown means no continuation is pending under the id.
	ErrUnknown = errors.New("unknown continuation")
	// ErrDuplicate means the id is already pending.
	ErrDuplicate = errors.New("continuation already registered")
)

// Func runs when the reply for its id arrives. Its return value is delivered
// to the waiter.
type Func func(ctx context.Context, result error) error

type pending struct {
	fn   Func
	done chan error
}

// Registry holds pending continuations keyed by correlation id.
type Registry struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*pending
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		pending: make(map[uuid.UUID]*pending),
		logger:  logger.Named("continuations"),
	}
}

// Register stores fn under id. The returned channel receives exactly one
// value: fn's result, or the cancellation error.
func (r *Registry) Register(id uuid.UUID, fn Func) (<-chan error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	p := &pending{fn: fn, done: make(chan error, 1)}
	r.pending[id] = p

	r.logger.Debug("Continuation registered", zap.String("correlation_id", id.String()))
	return p.done, nil
}

// take removes and returns the continuation under id.
func (r *Registry) take(id uuid.UUID) (*pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return p, ok
}

// Complete resumes the continuation registered under id with result. A
// continuation runs at most once; later calls return ErrUnknown.
func (r *Registry) Complete(ctx context.Context, id uuid.UUID, result error) error {
	p, ok := r.take(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, id)
	}

	var err error
	if p.fn != nil {
		err = p.fn(ctx, result)
	} else {
		err = result
	}
	p.done <- err

	r.logger.Debug("Continuation completed",
		zap.String("correlation_id", id.String()),
		zap.Error(err))
	return nil
}

// Cancel drops the continuation under id and wakes its waiter with cause.
func (r *Registry) Cancel(id uuid.UUID, cause error) bool {
	p, ok := r.take(id)
	if !ok {
		return false
	}
	p.done <- cause
	return true
}

// Pending returns the number of continuations awaiting completion.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Wait blocks until done delivers or ctx ends. On ctx end the continuation is
// cancelled so a late reply is rejected.
func (r *Registry) Wait(ctx context.Context, id uuid.UUID, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if r.Cancel(id, ctx.Err()) {
			return ctx.Err()
		}
		// completed concurrently
		return <-done
	}
}
