// internal/events/bus.go
// Package events fans domain events out to subscribers off the request path.
package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed  = errors.New("event bus is shutting down")
	ErrBufferFull = errors.New("event channel full")
)

// DefaultWorkers is the number of delivery shards.
const DefaultWorkers = 4

// Bus is an in-memory event bus. Events with the same Key are handled in
// publish order by one worker; different keys are handled concurrently.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool

	logger     *zap.Logger
	shards     []chan Event
	bufferSize int
	wg         sync.WaitGroup

	dropped atomic.Uint64
	handled atomic.Uint64
	failed  atomic.Uint64
}

type Option func(*Bus)

// WithWorkers sets the number of delivery shards.
func WithWorkers(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.shards = make([]chan Event, n)
		}
	}
}

// NewBus starts the bus workers. bufferSize is the queue length of each
// worker.
func NewBus(logger *zap.Logger, bufferSize int, opts ...Option) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		subs:       make(map[string]*subscription),
		logger:     logger.Named("event_bus"),
		shards:     make([]chan Event, DefaultWorkers),
		bufferSize: bufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}

	for i := range b.shards {
		b.shards[i] = make(chan Event, bufferSize)
		b.wg.Add(1)
		go b.worker(b.shards[i])
	}
	return b
}

// Subscribe registers handler for the given types, or for every event when
// no type is named.
func (b *Bus) Subscribe(handler Handler, types ...EventType) Subscription {
	sub := &subscription{
		id:      uuid.New().String(),
		bus:     b,
		handler: handler,
		types:   types,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("subscription_id", sub.id),
		zap.Any("event_types", types))
	return sub
}

func (b *Bus) SubscribeFunc(fn func(context.Context, Event) error, types ...EventType) Subscription {
	return b.Subscribe(HandlerFunc(fn), types...)
}

// Publish queues an event on its key's worker. It never blocks: a full
// queue drops the event.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.shards[b.shardOf(event)] <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())),
			zap.String("key", keyOf(event)))
		return ErrBufferFull
	}
}

// PublishSync runs every matching handler on the caller's goroutine.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	var targets []*subscription
	for _, sub := range b.subs {
		if sub.wants(event.Type()) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, sub := range targets {
		if err := sub.handler.Handle(ctx, event); err != nil {
			b.failed.Add(1)
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("subscription_id", sub.id),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("handler %s: %w", sub.id, err))
			continue
		}
		b.handled.Add(1)
	}
	return errors.Join(errs...)
}

func (b *Bus) worker(ch <-chan Event) {
	defer b.wg.Done()
	// a closed channel still yields what was queued before shutdown
	for event := range ch {
		_ = b.PublishSync(context.Background(), event)
	}
}

func (b *Bus) shardOf(event Event) int {
	key := keyOf(event)
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(b.shards)))
}

func keyOf(event Event) string {
	if k, ok := event.(Keyed); ok {
		return k.Key()
	}
	return ""
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()

	b.logger.Debug("Handler unsubscribed", zap.String("subscription_id", id))
}

// Shutdown stops accepting events and waits for queued ones to be handled.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, ch := range b.shards {
		close(ch)
	}
	b.mu.Unlock()

	b.logger.Info("Shutting down event bus")
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus shutdown complete",
			zap.Uint64("handled", b.handled.Load()),
			zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats describes the bus for the status endpoint.
type Stats struct {
	Workers       int    `json:"workers"`
	BufferSize    int    `json:"buffer_size"`
	PendingEvents int    `json:"pending_events"`
	Handled       uint64 `json:"handled"`
	Failed        uint64 `json:"failed"`
	Dropped       uint64 `json:"dropped"`
	// HandlersPerType counts catch-all subscriptions under "*".
	HandlersPerType map[string]int `json:"handlers_per_type"`
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		Workers:         len(b.shards),
		BufferSize:      b.bufferSize,
		Handled:         b.handled.Load(),
		Failed:          b.failed.Load(),
		Dropped:         b.dropped.Load(),
		HandlersPerType: make(map[string]int),
	}
	for _, ch := range b.shards {
		stats.PendingEvents += len(ch)
	}
	for _, sub := range b.subs {
		if len(sub.types) == 0 {
			stats.HandlersPerType["*"]++
			continue
		}
		for _, t := range sub.types {
			stats.HandlersPerType[string(t)]++
		}
	}
	return stats
}
