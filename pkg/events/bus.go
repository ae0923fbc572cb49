package events

import (
	"sync"
	"time"
)

// Event types published by the activity tracker and monitor.
const (
	TypeRequestStarted   = "request_started"
	TypeRequestUpdated   = "request_updated"
	TypeRequestCompleted = "request_completed"
	TypeMetricsUpdated   = "metrics_updated"
)

// Event is one monitor notification. Payload is a JSON-serializable
// snapshot owned by the subscriber once delivered.
type Event struct {
	Type      string    `json:"type"`
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Terminal reports whether the event closes a request's lifecycle.
// Terminal events are never dropped on a full subscriber queue.
func (e Event) Terminal() bool {
	return e.Type == TypeRequestCompleted
}

// subscriber is one consumer's buffered queue.
type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Subscription is a live event feed. Close it when done or the publisher
// will keep the queue alive.
type Subscription struct {
	sub *subscriber
	bus *Bus
	id  int
}

// Events returns the receive channel. It is closed when the bus shuts
// down.
func (s *Subscription) Events() <-chan Event {
	return s.sub.ch
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.sub.close()
	s.bus.remove(s.id)
}

// Bus fans events out to subscribers. Each subscriber has its own
// buffered queue; a slow subscriber loses non-terminal events rather
// than stalling the publishers, while terminal events block until the
// subscriber drains or detaches. Publishing is serialized per caller,
// so events published in order for one request arrive in order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a consumer with the given queue depth. A depth
// below 1 gets a default of 64.
func (b *Bus) Subscribe(depth int) *Subscription {
	if depth < 1 {
		depth = 64
	}
	sub := &subscriber{
		ch:   make(chan Event, depth),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		sub.close()
		return &Subscription{sub: sub, bus: b, id: -1}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	return &Subscription{sub: sub, bus: b, id: id}
}

// Publish delivers an event to every subscriber. Non-terminal events
// are dropped per subscriber when the queue is full; terminal events
// wait for the subscriber to drain or detach.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return
	}

	for _, sub := range subs {
		if evt.Terminal() {
			select {
			case sub.ch <- evt:
			case <-sub.done:
			}
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// SubscriberCount returns the number of attached subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches all subscribers and closes their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close()
		close(sub.ch)
		delete(b.subs, id)
	}
}

func (b *Bus) remove(id int) {
	if id < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}
