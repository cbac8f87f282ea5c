package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)
	rec := &recorder{}
	bus.Subscribe(rec, SwapExecuted)
	other := &recorder{}
	bus.Subscribe(other, PairCreated)
	all := &recorder{}
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(SwapExecutedEvent{BaseEvent: NewBase(SwapExecuted), Pair: "pair-a"}))
	require.NoError(t, bus.Publish(SwapBatchCompletedEvent{BaseEvent: NewBase(SwapBatchCompleted), Collection: "c"}))
	assert.Eventually(t, func() bool { return rec.count() == 1 && all.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, other.count())

	require.NoError(t, bus.Shutdown(context.Background()))
	assert.Equal(t, uint64(3), bus.Stats().Handled)
}

func TestEventsOfOnePairKeepOrder(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 64, WithWorkers(8))
	rec := &recorder{}
	bus.Subscribe(rec, PairUpdated)

	for i := 0; i < 50; i++ {
		require.NoError(t, bus.Publish(PairUpdatedEvent{
			BaseEvent: NewBase(PairUpdated),
			Pair:      "pair-a",
			Operation: fmt.Sprintf("op-%d", i),
		}))
	}
	require.NoError(t, bus.Shutdown(context.Background()))

	got := rec.snapshot()
	require.Len(t, got, 50)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("op-%d", i), e.(PairUpdatedEvent).Operation)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1, WithWorkers(1))
	release := make(chan struct{})
	bus.SubscribeFunc(func(context.Context, Event) error {
		<-release
		return nil
	}, PairCreated)

	// the first event may already be in the worker, so publish until the
	// queue rejects one
	var err error
	for i := 0; i < 5 && err == nil; i++ {
		err = bus.Publish(PairCreatedEvent{BaseEvent: NewBase(PairCreated), Pair: "p"})
	}
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, uint64(1), bus.Stats().Dropped)

	close(release)
	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	defer bus.Shutdown(context.Background())

	boom := errors.New("boom")
	bus.SubscribeFunc(func(context.Context, Event) error { return boom }, PairUpdated)
	bus.SubscribeFunc(func(context.Context, Event) error { return nil }, PairUpdated)

	err := bus.PublishSync(context.Background(), PairUpdatedEvent{BaseEvent: NewBase(PairUpdated)})
	assert.ErrorIs(t, err, boom)

	stats := bus.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Handled)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	defer bus.Shutdown(context.Background())

	rec := &recorder{}
	sub := bus.Subscribe(rec, PairCreated)
	catchAll := bus.Subscribe(rec)
	assert.Equal(t, 1, bus.Stats().HandlersPerType[string(PairCreated)])
	assert.Equal(t, 1, bus.Stats().HandlersPerType["*"])

	sub.Unsubscribe()
	catchAll.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), PairCreatedEvent{BaseEvent: NewBase(PairCreated)}))
	assert.Zero(t, rec.count())
	assert.Empty(t, bus.Stats().HandlersPerType)
}

func TestPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	require.NoError(t, bus.Shutdown(context.Background()))
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(PairCreatedEvent{BaseEvent: NewBase(PairCreated)})
	assert.ErrorIs(t, err, ErrBusClosed)
}
