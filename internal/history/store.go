// Package history implements the bounded per-category action log and the
// pattern-frequency tally the engine learns from.
package history

import (
	"strings"
	"sync"
	"time"

	"foresight/internal/logging"
	"foresight/internal/types"
)

// Entry is a single immutable record of a learned action.
type Entry struct {
	Type      string         `json:"type"`
	Value     string         `json:"value"`
	Context   map[string]any `json:"context,omitempty"`
	Result    any            `json:"result,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Store keeps fixed-capacity sliding windows of actions per category plus
// an unbounded tally of derived pattern labels. Categories are FIFO: the
// oldest entry is evicted first, never by age.
type Store struct {
	mu         sync.RWMutex
	capacity   int
	categories map[string][]Entry
	patterns   map[string]int
	clock      func() time.Time
}

// Snapshot is the JSON-safe persistent form of a Store.
type Snapshot struct {
	Categories map[string][]Entry `json:"categories"`
	Patterns   map[string]int     `json:"patterns"`
}

// routedCategories are the action types stored as history entries. Other
// types contribute pattern labels only.
var routedCategories = map[string]bool{
	types.ActionCommand:  true,
	types.ActionWorkflow: true,
	types.ActionFile:     true,
}

// New creates a Store with the given per-category capacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Store{
		capacity: capacity,
		categories: map[string][]Entry{
			types.ActionCommand:  nil,
			types.ActionWorkflow: nil,
			types.ActionFile:     nil,
		},
		patterns: make(map[string]int),
		clock:    time.Now,
	}
}

// Add records an action: routed types become history entries (trimmed to
// capacity), and every action contributes derived pattern labels to the
// tally. Returns the labels extracted.
func (s *Store) Add(action types.Action) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if routedCategories[action.Type] && action.Value != "" {
		entries := append(s.categories[action.Type], Entry{
			Type:      action.Type,
			Value:     action.Value,
			Context:   action.Context,
			Result:    action.Result,
			Timestamp: now,
		})
		if over := len(entries) - s.capacity; over > 0 {
			entries = entries[over:]
		}
		s.categories[action.Type] = entries
	}

	labels := extractPatterns(action, now)
	for _, label := range labels {
		s.patterns[label]++
	}
	if len(labels) > 0 {
		logging.HistoryDebug("Extracted %d pattern labels from %s action", len(labels), action.Type)
	}
	return labels
}

// RecordPattern increments a single pattern label, used for externally
// inferred patterns.
func (s *Store) RecordPattern(label string) {
	if label == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[label]++
}

// Recent returns up to n most recent entries of a category, oldest first.
func (s *Store) Recent(category string, n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.categories[category]
	if n <= 0 || n > len(entries) {
		n = len(entries)
	}
	out := make([]Entry, n)
	copy(out, entries[len(entries)-n:])
	return out
}

// Last returns the most recent entry of a category, if any.
func (s *Store) Last(category string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.categories[category]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

// Len returns the number of entries in a category.
func (s *Store) Len(category string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories[category])
}

// TotalActions returns the number of entries across all categories.
func (s *Store) TotalActions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, entries := range s.categories {
		total += len(entries)
	}
	return total
}

// Patterns returns a copy of the pattern tally.
func (s *Store) Patterns() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.patterns))
	for k, v := range s.patterns {
		out[k] = v
	}
	return out
}

// PatternCount returns the number of distinct pattern labels.
func (s *Store) PatternCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// SeenWithin reports whether a value appears in a category's history with
// a timestamp inside the given window.
func (s *Store) SeenWithin(category, value string, window time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.clock().Add(-window)
	entries := s.categories[category]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Timestamp.Before(cutoff) {
			return false
		}
		if entries[i].Value == value {
			return true
		}
	}
	return false
}

// Snapshot copies the store's full state for persistence.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Categories: make(map[string][]Entry, len(s.categories)),
		Patterns:   make(map[string]int, len(s.patterns)),
	}
	for cat, entries := range s.categories {
		copied := make([]Entry, len(entries))
		copy(copied, entries)
		snap.Categories[cat] = copied
	}
	for k, v := range s.patterns {
		snap.Patterns[k] = v
	}
	return snap
}

// Restore replaces the store's state from a snapshot, re-applying the
// capacity bound in case it shrank since the snapshot was taken.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cat := range s.categories {
		entries := snap.Categories[cat]
		if over := len(entries) - s.capacity; over > 0 {
			entries = entries[over:]
		}
		copied := make([]Entry, len(entries))
		copy(copied, entries)
		s.categories[cat] = copied
	}
	s.patterns = make(map[string]int, len(snap.Patterns))
	for k, v := range snap.Patterns {
		s.patterns[k] = v
	}
	logging.History("Restored history: %d command, %d workflow, %d file entries, %d pattern labels",
		len(s.categories[types.ActionCommand]), len(s.categories[types.ActionWorkflow]),
		len(s.categories[types.ActionFile]), len(s.patterns))
}

// Reset clears all history and pattern state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cat := range s.categories {
		s.categories[cat] = nil
	}
	s.patterns = make(map[string]int)
}

// SetClock overrides the store's time source. Intended for tests.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// extractPatterns derives behavioral labels from an action: time-of-day
// buckets (local clock), activity hints in the value, and branch hints in
// the context.
func extractPatterns(action types.Action, now time.Time) []string {
	var labels []string

	switch hour := now.Hour(); {
	case hour >= 9 && hour < 12:
		labels = append(labels, "morning-work")
	case hour >= 14 && hour < 18:
		labels = append(labels, "afternoon-work")
	case hour >= 18:
		labels = append(labels, "evening-work")
	}

	value := strings.ToLower(action.Value)
	for hint, label := range valueHints {
		if strings.Contains(value, hint) {
			labels = append(labels, label)
		}
	}

	if branch, ok := action.Context["branch"].(string); ok {
		branch = strings.ToLower(branch)
		if strings.Contains(branch, "feature") {
			labels = append(labels, "feature-development")
		}
		if strings.Contains(branch, "fix") || strings.Contains(branch, "bug") {
			labels = append(labels, "bug-fixing")
		}
	}

	return labels
}

var valueHints = map[string]string{
	"test":   "testing",
	"commit": "committing",
	"push":   "pushing",
	"review": "reviewing",
}
