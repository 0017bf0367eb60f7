package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventNotification)

	bus.PublishNotification(ErrorLevel, "fetch", "network", "Failed to load directory", errors.New("dial tcp: refused"))

	select {
	case received := <-ch:
		n, ok := received.(*NotificationEvent)
		if !ok {
			t.Fatal("Expected NotificationEvent")
		}
		if n.Operation != "fetch" {
			t.Errorf("Expected operation 'fetch', got '%s'", n.Operation)
		}
		if n.Kind != "network" {
			t.Errorf("Expected kind 'network', got '%s'", n.Kind)
		}
		if n.Err == nil {
			t.Error("Expected error to be carried")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventListingChanged)
	ch2 := bus.Subscribe(EventListingChanged)

	bus.PublishListing("/work", "/", 3, "fetch")

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d did not receive the event", i+1)
		}
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	sortCh := bus.Subscribe(EventSortChanged)
	pathCh := bus.Subscribe(EventPathChanged)

	bus.PublishSort("size", "desc")

	select {
	case ev := <-sortCh:
		s := ev.(*SortChangedEvent)
		if s.SortBy != "size" || s.Direction != "desc" {
			t.Errorf("unexpected sort event %+v", s)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Sort subscriber didn't receive event")
	}

	select {
	case <-pathCh:
		t.Error("Path subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.PublishLoading("/a", true)
	bus.PublishSession(true)

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventTransfer)

	for i := 0; i < 10; i++ {
		bus.PublishTransfer("upload", "a.txt", int64(i), 10, false, nil)
	}

	if got := bus.DroppedEvents(); got != 8 {
		t.Errorf("Expected 8 dropped events, got %d", got)
	}

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}
	if count != 2 {
		t.Errorf("Expected 2 buffered events, got %d", count)
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventNotification)

	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.PublishNotification(InfoLevel, "fetch", "", "late", nil)

	// Subscribing after close yields a closed channel
	if _, ok := <-bus.Subscribe(EventLoading); ok {
		t.Error("Subscribe on closed bus should return a closed channel")
	}
}

func TestEventBus_NilIsNoop(t *testing.T) {
	var bus *EventBus
	bus.PublishSession(false)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	typed := bus.Subscribe(EventLoading)
	all := bus.SubscribeAll()

	bus.Unsubscribe(typed)
	bus.Unsubscribe(all)

	if _, ok := <-typed; ok {
		t.Error("typed channel should be closed after Unsubscribe")
	}
	if _, ok := <-all; ok {
		t.Error("all-events channel should be closed after Unsubscribe")
	}

	bus.PublishLoading("/x", false)
	if bus.DroppedEvents() != 0 {
		t.Error("no subscriber should remain to drop events")
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
	}
}

func TestTransferEvent_Progress(t *testing.T) {
	e := &TransferEvent{Bytes: 25, Total: 100}
	if e.Progress() != 0.25 {
		t.Errorf("expected 0.25, got %f", e.Progress())
	}
	e.Total = -1
	if e.Progress() != 0 {
		t.Errorf("unknown total should report 0, got %f", e.Progress())
	}
}
