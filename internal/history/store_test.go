package history

import (
	"testing"
	"time"

	"foresight/internal/types"
)

func TestAddRoutesByCategory(t *testing.T) {
	s := New(10)

	s.Add(types.Action{Type: types.ActionCommand, Value: "go build"})
	s.Add(types.Action{Type: types.ActionWorkflow, Value: "code-review"})
	s.Add(types.Action{Type: types.ActionFile, Value: "main.go"})
	s.Add(types.Action{Type: types.ActionText, Value: "free text"})

	if got := s.Len(types.ActionCommand); got != 1 {
		t.Fatalf("command entries = %d, want 1", got)
	}
	if got := s.Len(types.ActionWorkflow); got != 1 {
		t.Fatalf("workflow entries = %d, want 1", got)
	}
	if got := s.Len(types.ActionFile); got != 1 {
		t.Fatalf("file entries = %d, want 1", got)
	}
	if got := s.TotalActions(); got != 3 {
		t.Fatalf("total = %d, want 3 (text is not routed)", got)
	}
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	s := New(3)

	for _, v := range []string{"a", "b", "c", "d", "e"} {
		s.Add(types.Action{Type: types.ActionCommand, Value: v})
	}

	recent := s.Recent(types.ActionCommand, 0)
	if len(recent) != 3 {
		t.Fatalf("len = %d, want capacity 3", len(recent))
	}
	for i, want := range []string{"c", "d", "e"} {
		if recent[i].Value != want {
			t.Fatalf("recent[%d] = %q, want %q", i, recent[i].Value, want)
		}
	}
}

func TestPatternExtraction(t *testing.T) {
	s := New(10)
	// Pin the clock inside the morning bucket.
	s.SetClock(func() time.Time {
		return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	})

	labels := s.Add(types.Action{
		Type:    types.ActionCommand,
		Value:   "go test ./...",
		Context: map[string]any{"branch": "feature/login"},
	})

	want := map[string]bool{"morning-work": true, "testing": true, "feature-development": true}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for _, l := range labels {
		if !want[l] {
			t.Fatalf("unexpected label %q in %v", l, labels)
		}
	}

	if got := s.PatternCount(); got != 3 {
		t.Fatalf("pattern count = %d, want 3", got)
	}
	if got := s.Patterns()["testing"]; got != 1 {
		t.Fatalf("testing tally = %d, want 1", got)
	}
}

func TestPatternTallySurvivesEviction(t *testing.T) {
	s := New(2)
	s.SetClock(func() time.Time {
		return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	})

	for i := 0; i < 5; i++ {
		s.Add(types.Action{Type: types.ActionCommand, Value: "git commit"})
	}

	if got := s.Len(types.ActionCommand); got != 2 {
		t.Fatalf("entries = %d, want 2", got)
	}
	if got := s.Patterns()["committing"]; got != 5 {
		t.Fatalf("committing tally = %d, want 5 (tally never evicts)", got)
	}
}

func TestSeenWithin(t *testing.T) {
	s := New(10)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	current := now.Add(-10 * time.Minute)
	s.SetClock(func() time.Time { return current })

	s.Add(types.Action{Type: types.ActionCommand, Value: "old"})
	current = now.Add(-1 * time.Minute)
	s.Add(types.Action{Type: types.ActionCommand, Value: "fresh"})
	current = now

	if !s.SeenWithin(types.ActionCommand, "fresh", 5*time.Minute) {
		t.Fatal("fresh should be seen within 5m")
	}
	if s.SeenWithin(types.ActionCommand, "old", 5*time.Minute) {
		t.Fatal("old should be outside the 5m window")
	}
	if s.SeenWithin(types.ActionFile, "fresh", 5*time.Minute) {
		t.Fatal("wrong category should never match")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New(10)
	s.Add(types.Action{Type: types.ActionCommand, Value: "go vet"})
	s.Add(types.Action{Type: types.ActionFile, Value: "a.go", Context: map[string]any{"previousFile": "b.go"}})
	s.RecordPattern("refactoring")

	restored := New(10)
	restored.Restore(s.Snapshot())

	if got := restored.TotalActions(); got != 2 {
		t.Fatalf("restored total = %d, want 2", got)
	}
	last, ok := restored.Last(types.ActionFile)
	if !ok || last.Value != "a.go" {
		t.Fatalf("restored last file = %+v, ok=%v", last, ok)
	}
	if last.Context["previousFile"] != "b.go" {
		t.Fatalf("context lost in round trip: %v", last.Context)
	}
	if got := restored.Patterns()["refactoring"]; got != 1 {
		t.Fatalf("restored tally = %d, want 1", got)
	}
}

func TestRestoreReappliesCapacity(t *testing.T) {
	big := New(10)
	for _, v := range []string{"a", "b", "c", "d"} {
		big.Add(types.Action{Type: types.ActionCommand, Value: v})
	}

	small := New(2)
	small.Restore(big.Snapshot())

	recent := small.Recent(types.ActionCommand, 0)
	if len(recent) != 2 || recent[0].Value != "c" || recent[1].Value != "d" {
		t.Fatalf("restored entries = %+v, want [c d]", recent)
	}
}

func TestReset(t *testing.T) {
	s := New(10)
	s.Add(types.Action{Type: types.ActionCommand, Value: "go test"})
	s.Reset()

	if s.TotalActions() != 0 || s.PatternCount() != 0 {
		t.Fatalf("reset left state: total=%d patterns=%d", s.TotalActions(), s.PatternCount())
	}
}
