// internal/events/types.go
package events

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// EventType represents the type of event.
type EventType string

const (
	PairCreated EventType = "pair.created"
	// PairUpdated covers deposits, withdrawals and config changes.
	PairUpdated EventType = "pair.updated"

	SwapExecuted       EventType = "swap.executed"
	SwapBatchCompleted EventType = "swap.batch_completed"
	SwapBatchFailed    EventType = "swap.batch_failed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Keyed events share a delivery worker with every event of the same key.
type Keyed interface {
	Key() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

func (e BaseEvent) Type() EventType {
	return e.EventType
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// PairCreatedEvent is emitted once a new pair is stored.
type PairCreatedEvent struct {
	BaseEvent
	Pair       string
	Collection string
	Denom      string
	Owner      string
}

func (e PairCreatedEvent) Key() string { return e.Pair }

// PairUpdatedEvent is emitted after an owner operation on a pair.
type PairUpdatedEvent struct {
	BaseEvent
	Pair      string
	Operation string
	IsActive  bool
}

func (e PairUpdatedEvent) Key() string { return e.Pair }

// SwapExecutedEvent is emitted per committed fill.
type SwapExecutedEvent struct {
	BaseEvent
	CorrelationID string
	Pair          string
	Collection    string
	Denom         string
	Direction     types.Direction
	TokenID       string
	Trader        string
	Price         uint256.Int
	Gross         uint256.Int
}

func (e SwapExecutedEvent) Key() string { return e.Pair }

// SwapBatchCompletedEvent is emitted once per committed request.
type SwapBatchCompletedEvent struct {
	BaseEvent
	OperationID string
	Collection  string
	Direction   types.Direction
	Fills       int
	Skipped     int
	Volume      uint256.Int
}

func (e SwapBatchCompletedEvent) Key() string { return e.Collection }

// SwapBatchFailedEvent is emitted when a request rolled back.
type SwapBatchFailedEvent struct {
	BaseEvent
	OperationID string
	Collection  string
	Direction   types.Direction
	Error       error
}

func (e SwapBatchFailedEvent) Key() string { return e.Collection }
