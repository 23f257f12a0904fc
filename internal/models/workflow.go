package models

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"foresight/internal/history"
	"foresight/internal/logging"
	"foresight/internal/types"
)

// TransitionCondition gates a learned workflow transition. It is evaluated
// against the context recorded with the most recent workflow action.
type TransitionCondition func(ctx map[string]any) bool

// WorkflowModel predicts workflow transitions learned from observed
// previous-type to next-type pairs, plus whole workflows matching free
// text.
type WorkflowModel struct {
	mu          sync.RWMutex
	weight      float64
	workflows   map[string]*workflowStat
	transCounts map[string]map[string]int
	transitions map[string][]Ranked
	conditions  map[string]TransitionCondition
}

type workflowStat struct {
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

// NewWorkflowModel creates an empty workflow model.
func NewWorkflowModel() *WorkflowModel {
	return &WorkflowModel{
		weight:      1.0,
		workflows:   make(map[string]*workflowStat),
		transCounts: make(map[string]map[string]int),
		transitions: make(map[string][]Ranked),
		conditions:  make(map[string]TransitionCondition),
	}
}

// Name implements Model.
func (m *WorkflowModel) Name() string { return NameWorkflow }

// Learn updates workflow frequency and records the previous-type to
// next-type transition with recomputed probabilities.
func (m *WorkflowModel) Learn(action types.Action) {
	if action.Type != types.ActionWorkflow || action.Value == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stat, ok := m.workflows[action.Value]
	if !ok {
		stat = &workflowStat{}
		m.workflows[action.Value] = stat
	}
	stat.Count++
	stat.Frequency = saturate(stat.Count, 50)

	if prev := contextString(action.Context, "previousWorkflow"); prev != "" {
		counts, ok := m.transCounts[prev]
		if !ok {
			counts = make(map[string]int)
			m.transCounts[prev] = counts
		}
		counts[action.Value]++
		m.transitions[prev] = rankCounts(counts, 0)
		logging.ModelsDebug("workflow: learned transition %q -> %q", prev, action.Value)
	}
}

// Predict returns learned transitions out of the current workflow (the
// most recent workflow entry in history), each gated by an optional
// condition, plus whole workflows matching the input.
func (m *WorkflowModel) Predict(input string, h *history.Store) []types.Prediction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var predictions []types.Prediction
	seen := make(map[string]bool)

	if current, ok := h.Last(types.ActionWorkflow); ok {
		for _, r := range m.transitions[current.Value] {
			if cond, ok := m.conditions[conditionKey(current.Value, r.Value)]; ok && !cond(current.Context) {
				continue
			}
			seen[r.Value] = true
			predictions = append(predictions, types.Prediction{
				Value:       r.Value,
				Confidence:  r.Score * m.weight,
				Description: fmt.Sprintf("Usually follows %s", current.Value),
				Type:        types.ActionWorkflow,
				Metadata:    map[string]any{"workflow": r.Value},
				Timestamp:   now,
			})
		}
	}

	if needle := strings.ToLower(strings.TrimSpace(input)); needle != "" {
		for value, stat := range m.workflows {
			if seen[value] || !strings.Contains(strings.ToLower(value), needle) {
				continue
			}
			predictions = append(predictions, types.Prediction{
				Value:       value,
				Confidence:  stat.Frequency * m.weight,
				Description: fmt.Sprintf("Started %d times", stat.Count),
				Type:        types.ActionWorkflow,
				Metadata:    map[string]any{"workflow": value},
				Timestamp:   now,
			})
		}
	}

	return predictions
}

// RegisterCondition attaches a predicate gating the from -> to transition.
func (m *WorkflowModel) RegisterCondition(from, to string, cond TransitionCondition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conditions[conditionKey(from, to)] = cond
}

// UpdateContext is a reserved extension point.
func (m *WorkflowModel) UpdateContext(ctx types.Context) {}

// SetWeight implements Model.
func (m *WorkflowModel) SetWeight(w float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weight = w
}

// Confidence implements Model.
func (m *WorkflowModel) Confidence() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.workflows) == 0 {
		return 0
	}
	return 0.6
}

// Statistics implements Model.
func (m *WorkflowModel) Statistics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]any{
		"workflows":   len(m.workflows),
		"transitions": len(m.transitions),
		"weight":      m.weight,
	}
}

// Reset implements Model.
func (m *WorkflowModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows = make(map[string]*workflowStat)
	m.transCounts = make(map[string]map[string]int)
	m.transitions = make(map[string][]Ranked)
	m.conditions = make(map[string]TransitionCondition)
	m.weight = 1.0
}

func conditionKey(from, to string) string {
	return from + ":" + to
}
