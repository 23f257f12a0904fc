// Package events implements the named-topic event bus over which the
// engine republishes prediction and confidence updates.
package events

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"foresight/internal/logging"
)

// Topic names emitted by the engine.
const (
	TopicPredictions         = "predictions"
	TopicEnhancedPredictions = "enhanced-predictions"
	TopicConfidence          = "confidence"
)

// Event is a single published occurrence on a topic. ID is a bus-global
// sequence number assigned at emit time.
type Event struct {
	ID        uint64
	Topic     string
	Payload   any
	Timestamp time.Time
}

// Bus dispatches events to per-topic subscribers. Delivery is best-effort:
// a subscriber whose channel is full misses the event rather than blocking
// the emitter.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	sequence    atomic.Uint64
	closed      bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]chan Event)}
}

// Subscribe returns a buffered channel receiving events for one topic.
// Subscribers registered earlier receive each event earlier.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, 50)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	logging.EventsDebug("Subscriber added to topic %q (total %d)", topic, len(b.subscribers[topic]))
	return ch
}

// Unsubscribe removes a subscriber channel from a topic and closes it.
func (b *Bus) Unsubscribe(topic string, ch <-chan Event) {
	if ch == nil {
		return
	}
	target := reflect.ValueOf(ch).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[topic]
	for i, sub := range subs {
		if reflect.ValueOf(sub).Pointer() == target {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
}

// Emit publishes an event to every subscriber of the topic, in
// registration order. Safe to call from any goroutine.
func (b *Bus) Emit(topic string, payload any) {
	event := Event{
		ID:        b.sequence.Add(1),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subscribers[topic] {
		select {
		case sub <- event:
		default: // Drop if subscriber is slow
		}
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub)
		}
		delete(b.subscribers, topic)
	}
}

// Stats reports current bus statistics.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, subs := range b.subscribers {
		total += len(subs)
	}
	return BusStats{
		TopicCount:      len(b.subscribers),
		SubscriberCount: total,
		TotalEmitted:    b.sequence.Load(),
	}
}

// BusStats holds event bus statistics.
type BusStats struct {
	TopicCount      int
	SubscriberCount int
	TotalEmitted    uint64
}
