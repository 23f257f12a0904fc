package stream

import (
	"sync"
	"testing"
	"time"
)

func TestSubjectMulticastOrder(t *testing.T) {
	s := NewSubject[int]()
	var got []string

	s.Subscribe(func(v int) { got = append(got, "first") })
	s.Subscribe(func(v int) { got = append(got, "second") })
	s.Next(1)

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("delivery order = %v", got)
	}
}

func TestSubjectCancel(t *testing.T) {
	s := NewSubject[int]()
	count := 0
	cancel := s.Subscribe(func(v int) { count++ })

	s.Next(1)
	cancel()
	cancel() // idempotent
	s.Next(2)

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestSubjectClosedDropsValues(t *testing.T) {
	s := NewSubject[int]()
	count := 0
	s.Subscribe(func(v int) { count++ })
	s.Close()
	s.Next(1)

	if count != 0 {
		t.Fatalf("count = %d, want 0 after close", count)
	}
}

func TestHolderReplaysOnSubscribe(t *testing.T) {
	h := NewHolder(42)
	var got []int
	h.Subscribe(func(v int) { got = append(got, v) })
	h.Set(43)

	if len(got) != 2 || got[0] != 42 || got[1] != 43 {
		t.Fatalf("got = %v, want [42 43]", got)
	}
	if h.Get() != 43 {
		t.Fatalf("Get = %d", h.Get())
	}
}

func TestDebounceCollapsesBurst(t *testing.T) {
	src := NewSubject[string]()
	out, stop := Debounce[string](src, 20*time.Millisecond)
	defer stop()

	var mu sync.Mutex
	var got []string
	out.Subscribe(func(v string) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	src.Next("a")
	src.Next("ab")
	src.Next("abc")

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "abc" {
		t.Fatalf("got = %v, want the last value once", got)
	}
}

func TestDebounceSeparateWindows(t *testing.T) {
	src := NewSubject[string]()
	out, stop := Debounce[string](src, 10*time.Millisecond)
	defer stop()

	var mu sync.Mutex
	var got []string
	out.Subscribe(func(v string) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	src.Next("a")
	time.Sleep(50 * time.Millisecond)
	src.Next("b")
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got = %v, want [a b]", got)
	}
}

func TestDebounceStopCancelsPending(t *testing.T) {
	src := NewSubject[string]()
	out, stop := Debounce[string](src, 20*time.Millisecond)

	fired := make(chan struct{}, 1)
	out.Subscribe(func(v string) { fired <- struct{}{} })

	src.Next("a")
	stop()

	select {
	case <-fired:
		t.Fatal("pending emission should have been cancelled")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDistinctDropsConsecutiveDuplicates(t *testing.T) {
	src := NewSubject[string]()
	out, stop := Distinct[string](src)
	defer stop()

	var got []string
	out.Subscribe(func(v string) { got = append(got, v) })

	for _, v := range []string{"a", "a", "b", "b", "a"} {
		src.Next(v)
	}

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "a" {
		t.Fatalf("got = %v, want [a b a]", got)
	}
}

func TestCombineLatest(t *testing.T) {
	a := NewHolder(1)
	b := NewHolder("x")

	type pair struct {
		n int
		s string
	}
	var got []pair
	cancel := CombineLatest(a, b, func(n int, s string) {
		got = append(got, pair{n, s})
	})
	defer cancel()

	if len(got) != 1 || got[0] != (pair{1, "x"}) {
		t.Fatalf("initial emit = %v", got)
	}

	a.Set(2)
	b.Set("y")

	if len(got) != 3 || got[1] != (pair{2, "x"}) || got[2] != (pair{2, "y"}) {
		t.Fatalf("got = %v", got)
	}

	cancel()
	a.Set(3)
	if len(got) != 3 {
		t.Fatalf("emit after cancel: %v", got)
	}
}
