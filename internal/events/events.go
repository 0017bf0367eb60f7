// Package events is the in-process publish/subscribe bus the browser session
// reports through. Publishing never blocks; slow subscribers lose events and
// the loss is counted.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentdesk/workdir/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// EventNotification carries a user-facing message (errors and warnings
	// from an operation, partial upload failures, confirmations).
	EventNotification EventType = "notification"

	EventLoading        EventType = "loading"
	EventListingChanged EventType = "listing_changed"
	EventPathChanged    EventType = "path_changed"
	EventSortChanged    EventType = "sort_changed"
	EventSessionState   EventType = "session_state"
	EventTransfer       EventType = "transfer"
)

// Level defines notification severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// NotificationEvent is what a UI shows as a toast or status line.
type NotificationEvent struct {
	BaseEvent
	Level     Level
	Operation string // "fetch", "delete", "upload", "download"
	Kind      string // "network", "server", "validation", "" for non-errors
	Message   string
	Err       error
}

// LoadingEvent reports the start and end of a listing request.
type LoadingEvent struct {
	BaseEvent
	Path    string
	Loading bool
}

// ListingChangedEvent is published whenever the visible entries change.
type ListingChangedEvent struct {
	BaseEvent
	CurrentPath string
	ParentPath  string
	Count       int
	Source      string // "fetch", "upload", "delete", "close"
}

// PathChangedEvent is published when the current directory changes.
type PathChangedEvent struct {
	BaseEvent
	OldPath string
	NewPath string
}

// SortChangedEvent carries the new sort column and direction.
type SortChangedEvent struct {
	BaseEvent
	SortBy    string
	Direction string
}

// SessionStateEvent reports Open/Close of a browser session.
type SessionStateEvent struct {
	BaseEvent
	Open bool
}

// TransferEvent reports byte progress of an upload or download.
type TransferEvent struct {
	BaseEvent
	Direction string // "upload" or "download"
	Name      string
	Bytes     int64
	Total     int64 // -1 when unknown
	Done      bool
	Err       error
}

// Progress returns completion in 0.0..1.0, or 0 when the total is unknown.
func (e *TransferEvent) Progress() float64 {
	if e.Total <= 0 {
		return 0
	}
	return float64(e.Bytes) / float64(e.Total)
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type.
// Subscribing to a closed bus returns an already-closed channel.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// A nil bus is a valid no-op publisher.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		eb.send(ch, event)
	}
	for _, ch := range eb.all {
		eb.send(ch, event)
	}
}

func (eb *EventBus) send(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		eb.droppedEvents.Add(1)
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// Unsubscribe removes and closes a subscription channel.
// It looks in both the typed and the all-events subscriber lists.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				close(subCh)
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				return
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			close(subCh)
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			return
		}
	}
}

// DroppedEvents returns the total number of events dropped due to full buffers
func (eb *EventBus) DroppedEvents() int64 {
	return eb.droppedEvents.Load()
}

// PublishNotification is a convenience method for publishing notifications
func (eb *EventBus) PublishNotification(level Level, operation, kind, message string, err error) {
	eb.Publish(&NotificationEvent{
		BaseEvent: base(EventNotification),
		Level:     level,
		Operation: operation,
		Kind:      kind,
		Message:   message,
		Err:       err,
	})
}

// PublishLoading is a convenience method for publishing loading transitions
func (eb *EventBus) PublishLoading(path string, loading bool) {
	eb.Publish(&LoadingEvent{BaseEvent: base(EventLoading), Path: path, Loading: loading})
}

// PublishListing is a convenience method for publishing listing changes
func (eb *EventBus) PublishListing(currentPath, parentPath string, count int, source string) {
	eb.Publish(&ListingChangedEvent{
		BaseEvent:   base(EventListingChanged),
		CurrentPath: currentPath,
		ParentPath:  parentPath,
		Count:       count,
		Source:      source,
	})
}

// PublishPath is a convenience method for publishing directory changes
func (eb *EventBus) PublishPath(oldPath, newPath string) {
	eb.Publish(&PathChangedEvent{BaseEvent: base(EventPathChanged), OldPath: oldPath, NewPath: newPath})
}

// PublishSort is a convenience method for publishing sort changes
func (eb *EventBus) PublishSort(sortBy, direction string) {
	eb.Publish(&SortChangedEvent{BaseEvent: base(EventSortChanged), SortBy: sortBy, Direction: direction})
}

// PublishSession is a convenience method for publishing Open/Close
func (eb *EventBus) PublishSession(open bool) {
	eb.Publish(&SessionStateEvent{BaseEvent: base(EventSessionState), Open: open})
}

// PublishTransfer is a convenience method for publishing transfer progress
func (eb *EventBus) PublishTransfer(direction, name string, bytes, total int64, done bool, err error) {
	eb.Publish(&TransferEvent{
		BaseEvent: base(EventTransfer),
		Direction: direction,
		Name:      name,
		Bytes:     bytes,
		Total:     total,
		Done:      done,
		Err:       err,
	})
}
