// internal/events/handler.go
package events

import (
	"context"
	"slices"
)

// Handler processes events. Handle runs on a bus worker and should not block.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id      string
	bus     *Bus
	handler Handler
	// types is empty for a catch-all subscription.
	types []EventType
}

func (s *subscription) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}
