package models

import (
	"strings"
	"sync"
	"time"

	"foresight/internal/history"
	"foresight/internal/types"
)

const (
	// Per-word prefix depth and per-prefix completion cap.
	completionPrefixDepth = 5
	completionListLimit   = 5

	// Unanchored full-text reuse is less certain than a learned prefix.
	fullTextPenalty = 0.8
)

// CompletionModel predicts text completions from a bounded prefix index.
// Its domain is all textual input: every action carrying a value teaches
// it, regardless of the action's category.
type CompletionModel struct {
	mu           sync.RWMutex
	weight       float64
	completions  map[string]*completionStat
	prefixCounts map[string]map[string]int
	prefixes     map[string][]Ranked
}

type completionStat struct {
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

// NewCompletionModel creates an empty completion model.
func NewCompletionModel() *CompletionModel {
	return &CompletionModel{
		weight:       1.0,
		completions:  make(map[string]*completionStat),
		prefixCounts: make(map[string]map[string]int),
		prefixes:     make(map[string][]Ranked),
	}
}

// Name implements Model.
func (m *CompletionModel) Name() string { return NameCompletion }

// Learn indexes the action value under every compound prefix: for each
// word boundary and each sub-length 1..min(len,5), the prior words plus
// the partial current word map to a ranked completion list capped at 5.
func (m *CompletionModel) Learn(action types.Action) {
	value := strings.TrimSpace(action.Value)
	if value == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stat, ok := m.completions[value]
	if !ok {
		stat = &completionStat{}
		m.completions[value] = stat
	}
	stat.Count++
	stat.Frequency = saturate(stat.Count, 10)

	for _, prefix := range compoundPrefixes(value) {
		counts, ok := m.prefixCounts[prefix]
		if !ok {
			counts = make(map[string]int)
			m.prefixCounts[prefix] = counts
		}
		counts[value]++
		m.prefixes[prefix] = rankCounts(counts, completionListLimit)
	}
}

// Predict returns the ranked completions indexed under the input prefix,
// plus previously seen full strings starting with the input at a 0.8
// penalty.
func (m *CompletionModel) Predict(input string, h *history.Store) []types.Prediction {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var predictions []types.Prediction
	seen := make(map[string]bool)

	for _, r := range m.prefixes[needle] {
		seen[r.Value] = true
		predictions = append(predictions, types.Prediction{
			Value:       r.Value,
			Confidence:  r.Score * m.weight,
			Description: "Completion for " + input,
			Type:        types.ActionText,
			Timestamp:   now,
		})
	}

	for value, stat := range m.completions {
		if seen[value] || !strings.HasPrefix(strings.ToLower(value), needle) {
			continue
		}
		predictions = append(predictions, types.Prediction{
			Value:       value,
			Confidence:  stat.Frequency * m.weight * fullTextPenalty,
			Description: "Previously entered text",
			Type:        types.ActionText,
			Timestamp:   now,
		})
	}

	return predictions
}

// UpdateContext is a reserved extension point.
func (m *CompletionModel) UpdateContext(ctx types.Context) {}

// SetWeight implements Model.
func (m *CompletionModel) SetWeight(w float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weight = w
}

// Confidence implements Model.
func (m *CompletionModel) Confidence() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.completions) == 0 {
		return 0
	}
	return 0.9
}

// Statistics implements Model.
func (m *CompletionModel) Statistics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]any{
		"completions": len(m.completions),
		"prefixes":    len(m.prefixes),
		"weight":      m.weight,
	}
}

// Reset implements Model.
func (m *CompletionModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = make(map[string]*completionStat)
	m.prefixCounts = make(map[string]map[string]int)
	m.prefixes = make(map[string][]Ranked)
	m.weight = 1.0
}

// compoundPrefixes enumerates every indexable prefix of the value: all
// prior words joined with a deepening slice of the current word.
func compoundPrefixes(value string) []string {
	words := strings.Fields(strings.ToLower(value))
	var prefixes []string
	for i, word := range words {
		base := strings.Join(words[:i], " ")
		runes := []rune(word)
		depth := len(runes)
		if depth > completionPrefixDepth {
			depth = completionPrefixDepth
		}
		for l := 1; l <= depth; l++ {
			prefix := string(runes[:l])
			if base != "" {
				prefix = base + " " + prefix
			}
			prefixes = append(prefixes, prefix)
		}
	}
	return prefixes
}
