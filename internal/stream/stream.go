// Package stream provides the small push-based stream primitives the
// prediction pipeline is built from: a multicast Subject, a latest-value
// Holder, and the Debounce/Distinct/CombineLatest stages.
//
// Observers are invoked synchronously in registration order. No ordering
// is guaranteed across observers beyond that.
package stream

import (
	"sync"
	"time"
)

// Observable is anything observers can attach to. Subscribe returns a
// cancel function detaching the observer.
type Observable[T any] interface {
	Subscribe(fn func(T)) (cancel func())
}

// =============================================================================
// SUBJECT
// =============================================================================

// Subject is a multicast stream with no replay: observers see only values
// pushed after they subscribe.
type Subject[T any] struct {
	mu        sync.Mutex
	observers map[int]func(T)
	order     []int
	nextID    int
	closed    bool
}

// NewSubject creates an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{observers: make(map[int]func(T))}
}

// Subscribe attaches an observer. The returned cancel function is
// idempotent.
func (s *Subject[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.order = append(s.order, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Next pushes a value to all current observers in registration order.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fns := s.snapshotLocked()
	s.mu.Unlock()

	// Observers run outside the lock so they may re-enter the subject.
	for _, fn := range fns {
		fn(v)
	}
}

// Close stops the subject; subsequent Next calls are no-ops.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.observers = make(map[int]func(T))
	s.order = nil
}

func (s *Subject[T]) snapshotLocked() []func(T) {
	fns := make([]func(T), 0, len(s.observers))
	for _, id := range s.order {
		if fn, ok := s.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

// =============================================================================
// HOLDER
// =============================================================================

// Holder always carries a latest value which is synchronously readable and
// replayed to late subscribers.
type Holder[T any] struct {
	mu        sync.Mutex
	value     T
	observers map[int]func(T)
	order     []int
	nextID    int
}

// NewHolder creates a Holder seeded with an initial value.
func NewHolder[T any](initial T) *Holder[T] {
	return &Holder[T]{value: initial, observers: make(map[int]func(T))}
}

// Get returns the current value.
func (h *Holder[T]) Get() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// Set stores a new value and pushes it to all observers.
func (h *Holder[T]) Set(v T) {
	h.mu.Lock()
	h.value = v
	fns := make([]func(T), 0, len(h.observers))
	for _, id := range h.order {
		if fn, ok := h.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe attaches an observer, immediately replaying the current value.
func (h *Holder[T]) Subscribe(fn func(T)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	h.order = append(h.order, id)
	current := h.value
	h.mu.Unlock()

	fn(current)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers, id)
	}
}

// =============================================================================
// STAGES
// =============================================================================

// Debounce emits the last value seen on src once no new value has arrived
// for the quiet period. The returned stop function detaches from src and
// cancels any pending emission.
func Debounce[T any](src Observable[T], quiet time.Duration) (*Subject[T], func()) {
	out := NewSubject[T]()

	var mu sync.Mutex
	var pending T
	var timer *time.Timer
	stopped := false

	cancel := src.Subscribe(func(v T) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		pending = v
		// A new input supersedes the pending timer.
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(quiet, func() {
			mu.Lock()
			if stopped {
				mu.Unlock()
				return
			}
			v := pending
			timer = nil
			mu.Unlock()
			out.Next(v)
		})
	})

	stop := func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		mu.Unlock()
		cancel()
		out.Close()
	}
	return out, stop
}

// Distinct forwards values from src, dropping any value equal to the
// immediately preceding one.
func Distinct[T comparable](src Observable[T]) (*Subject[T], func()) {
	out := NewSubject[T]()

	var mu sync.Mutex
	var last T
	seeded := false

	cancel := src.Subscribe(func(v T) {
		mu.Lock()
		if seeded && v == last {
			mu.Unlock()
			return
		}
		last = v
		seeded = true
		mu.Unlock()
		out.Next(v)
	})

	stop := func() {
		cancel()
		out.Close()
	}
	return out, stop
}

// CombineLatest invokes fn with the latest values of both holders whenever
// either changes. Holders always carry a value, so fn fires immediately.
func CombineLatest[A, B any](a *Holder[A], b *Holder[B], fn func(A, B)) func() {
	var mu sync.Mutex
	emit := func() {
		mu.Lock()
		defer mu.Unlock()
		fn(a.Get(), b.Get())
	}

	first := true
	cancelA := a.Subscribe(func(A) {
		if first {
			// Skip the replay from the first subscription; the second
			// subscription's replay performs the initial emit.
			first = false
			return
		}
		emit()
	})
	cancelB := b.Subscribe(func(B) { emit() })

	return func() {
		cancelA()
		cancelB()
	}
}
