package events

import (
	"fmt"
	"testing"
	"time"
)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(16)
	defer sub.Close()

	phases := []string{TypeRequestStarted, TypeRequestUpdated, TypeRequestUpdated, TypeRequestCompleted}
	for _, typ := range phases {
		bus.Publish(Event{Type: typ, RequestID: "r1"})
	}

	for i, want := range phases {
		select {
		case got := <-sub.Events():
			if got.Type != want {
				t.Fatalf("event %d = %s, want %s", i, got.Type, want)
			}
			if got.Timestamp.IsZero() {
				t.Error("Publish must stamp the event time")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBus_SlowSubscriberDropsNonTerminal(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(2)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		bus.Publish(Event{Type: TypeRequestUpdated, RequestID: fmt.Sprintf("r%d", i)})
	}

	// Only the queue depth survives; the rest were dropped without
	// blocking the publisher.
	received := 0
	for {
		select {
		case <-sub.Events():
			received++
		default:
			if received != 2 {
				t.Errorf("received %d events, want 2 (queue depth)", received)
			}
			return
		}
	}
}

func TestBus_TerminalBlocksUntilDrained(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(1)
	defer sub.Close()

	bus.Publish(Event{Type: TypeRequestUpdated, RequestID: "r1"})

	published := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeRequestCompleted, RequestID: "r1"})
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("terminal publish should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	// Draining one slot lets the terminal event through.
	<-sub.Events()
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("terminal publish never completed after drain")
	}

	got := <-sub.Events()
	if got.Type != TypeRequestCompleted {
		t.Errorf("event = %s, want request_completed", got.Type)
	}
}

func TestBus_TerminalSkipsDetachedSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(1)
	bus.Publish(Event{Type: TypeRequestUpdated, RequestID: "r1"})
	sub.Close()

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeRequestCompleted, RequestID: "r1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("terminal publish must not block on a closed subscription")
	}
}

func TestBus_CloseStopsDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)

	bus.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("channel should be closed after bus shutdown")
	}

	// Publishing and subscribing after close are safe no-ops.
	bus.Publish(Event{Type: TypeRequestCompleted, RequestID: "r1"})
	late := bus.Subscribe(4)
	if _, ok := <-late.Events(); ok {
		t.Error("late subscription should receive a closed channel")
	}
	late.Close()
}

func TestBus_SubscriberCount(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := bus.Subscribe(1)
	b := bus.Subscribe(1)
	if got := bus.SubscriberCount(); got != 2 {
		t.Errorf("SubscriberCount() = %d, want 2", got)
	}

	a.Close()
	if got := bus.SubscriberCount(); got != 1 {
		t.Errorf("SubscriberCount() = %d after close, want 1", got)
	}
	b.Close()
}
