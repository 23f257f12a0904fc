// Package models implements the four prediction models behind the
// Foresight engine: command, workflow, file, and completion. Each model is
// an independent scorer sharing one capability contract; all state is
// owned by the model itself and reached only through that contract.
package models

import (
	"sort"

	"foresight/internal/history"
	"foresight/internal/types"
)

// Model names used to tag predictions.
const (
	NameCommand    = "command"
	NameWorkflow   = "workflow"
	NameFile       = "file"
	NameCompletion = "completion"
)

// Model is the capability contract every prediction model implements.
type Model interface {
	// Name identifies the model in tags and statistics.
	Name() string

	// Predict scores suggestions for the input against current model state
	// and the shared history store. It never mutates state.
	Predict(input string, h *history.Store) []types.Prediction

	// Learn updates model state from an action. Actions outside the
	// model's domain are ignored.
	Learn(action types.Action)

	// UpdateContext is a reserved hook for context-driven adjustments.
	UpdateContext(ctx types.Context)

	// SetWeight adjusts the model's contribution to prediction scores.
	SetWeight(w float64)

	// Confidence reports the model's fixed trust constant once it holds
	// any state, and 0 before that.
	Confidence() float64

	// Statistics returns a snapshot of internal counters.
	Statistics() map[string]any

	// Reset clears all learned state.
	Reset()
}

// All constructs the standard model set in engine fan-out order.
func All() []Model {
	return []Model{
		NewCommandModel(),
		NewWorkflowModel(),
		NewFileModel(),
		NewCompletionModel(),
	}
}

// Ranked is one entry of a model's ranked association list.
type Ranked struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// rankCounts converts an occurrence-count map into a descending ranked
// list of value shares. A positive limit truncates the result. Ties break
// lexicographically so ranking is deterministic.
func rankCounts(counts map[string]int, limit int) []Ranked {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return nil
	}

	ranked := make([]Ranked, 0, len(counts))
	for value, c := range counts {
		ranked = append(ranked, Ranked{Value: value, Score: float64(c) / float64(total)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Value < ranked[j].Value
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// saturate converts a raw occurrence count into a frequency in [0,1]
// using the model's saturation divisor.
func saturate(count int, divisor float64) float64 {
	f := float64(count) / divisor
	if f > 1 {
		return 1
	}
	return f
}

// contextString extracts a string field from an action context.
func contextString(ctx map[string]any, key string) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx[key].(string)
	return s
}

// contextStrings extracts a string slice field from an action context,
// tolerating both []string and []any encodings (the latter is what JSON
// round-trips produce).
func contextStrings(ctx map[string]any, key string) []string {
	if ctx == nil {
		return nil
	}
	switch v := ctx[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
