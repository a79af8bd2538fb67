// Package events fans out progress, status and transfer updates to the CLI
// and TUI over buffered channels.
package events

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cs2interlink/cs2-int/internal/constants"
)

// EventType names a kind of event. Subscribers filter on it.
type EventType string

const (
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventStatus   EventType = "status"
	EventComplete EventType = "complete"

	// One per item of a batch transfer
	EventTransferQueued    EventType = "transfer_queued"
	EventTransferStarted   EventType = "transfer_started"
	EventTransferRetrying  EventType = "transfer_retrying"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferFailed    EventType = "transfer_failed"
	EventTransferCancelled EventType = "transfer_cancelled"
)

// anyType keys the subscribers that receive every event.
const anyType EventType = ""

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent is embedded by every event.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func stamp(t EventType) BaseEvent { return BaseEvent{EventType: t, Time: time.Now()} }

// ProgressEvent reports a long-running load or batch.
type ProgressEvent struct {
	BaseEvent
	Operation string // load, store, retrieve, purchase
	Message   string // e.g. "Loading Storage Unit Contents (2/5)"
	Progress  float64
}

// ErrorEvent is published for every reported error.
// Level is "High", "Medium" or "Low".
type ErrorEvent struct {
	BaseEvent
	Level string
	Error error
}

// StatusEvent is one poll of the game interface status of a bot.
type StatusEvent struct {
	BaseEvent
	Bot                      string
	Connected                bool
	InventoryLoaded          bool
	UnprotectedInventorySize int
	InventorySize            int
}

// CompleteEvent ends a batch.
type CompleteEvent struct {
	BaseEvent
	Operation string
	Total     int
	Processed int
	Cancelled bool
	Duration  time.Duration
}

// TransferEvent tracks one item of a batch transfer.
type TransferEvent struct {
	BaseEvent
	Operation string // store or retrieve
	ItemID    string
	Name      string
	Attempt   int
	Error     error
}

// EventBus delivers events to subscriber channels without ever blocking the
// publisher. A full channel loses the event and bumps the drop counter.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[EventType][]chan Event
	size    int
	closed  bool
	dropped atomic.Int64
}

// NewEventBus returns a bus whose subscriber channels hold bufferSize events,
// clamped to the configured bounds.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	return &EventBus{
		subs: make(map[EventType][]chan Event),
		size: min(bufferSize, constants.EventBusMaxBuffer),
	}
}

// Subscribe returns a channel receiving events of type t. After Close the
// channel is already closed.
func (eb *EventBus) Subscribe(t EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, eb.size)
	eb.subs[t] = append(eb.subs[t], ch)
	return ch
}

// SubscribeAll returns a channel receiving every event.
func (eb *EventBus) SubscribeAll() <-chan Event {
	return eb.Subscribe(anyType)
}

// Unsubscribe detaches ch from type t. The channel is not closed.
func (eb *EventBus) Unsubscribe(t EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.subs[t] = slices.DeleteFunc(eb.subs[t], func(c chan Event) bool {
		return (<-chan Event)(c) == ch
	})
}

func (eb *EventBus) Publish(ev Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	eb.deliver(eb.subs[ev.Type()], ev)
	eb.deliver(eb.subs[anyType], ev)
}

func (eb *EventBus) deliver(chans []chan Event, ev Event) {
	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
			eb.dropped.Add(1)
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, chans := range eb.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
}

func (eb *EventBus) PublishProgress(operation, message string, progress float64) {
	eb.Publish(&ProgressEvent{
		BaseEvent: stamp(EventProgress),
		Operation: operation,
		Message:   message,
		Progress:  progress,
	})
}

func (eb *EventBus) PublishTransfer(t EventType, operation, itemID, name string, attempt int, err error) {
	eb.Publish(&TransferEvent{
		BaseEvent: stamp(t),
		Operation: operation,
		ItemID:    itemID,
		Name:      name,
		Attempt:   attempt,
		Error:     err,
	})
}

// GetDroppedEventCount reports how many deliveries were lost to full buffers.
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.dropped.Load()
}
