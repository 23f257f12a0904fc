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

// Command sequence lookups consider at most this many trailing commands.
const commandSequenceDepth = 3

// sequence evidence is rewarded over raw frequency.
const sequenceBoost = 1.2

// CommandModel predicts shell/tool commands from usage frequency and
// Markov-style transitions keyed by the preceding command sequence.
type CommandModel struct {
	mu        sync.RWMutex
	weight    float64
	commands  map[string]*commandStat
	seqCounts map[string]map[string]int
	sequences map[string][]Ranked
}

type commandStat struct {
	Count       int     `json:"count"`
	Frequency   float64 `json:"frequency"`
	Description string  `json:"description"`
}

// NewCommandModel creates an empty command model.
func NewCommandModel() *CommandModel {
	return &CommandModel{
		weight:    1.0,
		commands:  make(map[string]*commandStat),
		seqCounts: make(map[string]map[string]int),
		sequences: make(map[string][]Ranked),
	}
}

// Name implements Model.
func (m *CommandModel) Name() string { return NameCommand }

// Learn updates command frequency and the transition table keyed by the
// joined previous-command sequence. Non-command actions are ignored.
func (m *CommandModel) Learn(action types.Action) {
	if action.Type != types.ActionCommand || action.Value == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stat, ok := m.commands[action.Value]
	if !ok {
		stat = &commandStat{}
		m.commands[action.Value] = stat
	}
	stat.Count++
	stat.Frequency = saturate(stat.Count, 100)
	stat.Description = fmt.Sprintf("Executed %d times", stat.Count)

	previous := contextStrings(action.Context, "previousCommands")
	if len(previous) > 0 {
		key := sequenceKey(previous)
		counts, ok := m.seqCounts[key]
		if !ok {
			counts = make(map[string]int)
			m.seqCounts[key] = counts
		}
		counts[action.Value]++
		m.sequences[key] = rankCounts(counts, 0)
		logging.ModelsDebug("command: learned transition %q -> %q", key, action.Value)
	}
}

// Predict returns substring matches on known commands and sequence-based
// suggestions for the trailing commands in history.
func (m *CommandModel) Predict(input string, h *history.Store) []types.Prediction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var predictions []types.Prediction
	seen := make(map[string]bool)

	if needle := strings.ToLower(strings.TrimSpace(input)); needle != "" {
		for value, stat := range m.commands {
			if !strings.Contains(strings.ToLower(value), needle) {
				continue
			}
			predictions = append(predictions, types.Prediction{
				Value:       value,
				Confidence:  stat.Frequency * m.weight,
				Description: stat.Description,
				Type:        types.ActionCommand,
				Timestamp:   now,
			})
			seen[value] = true
		}
	}

	// Sequence lookup: walk suffixes of the recent command history,
	// longest first; the first learned key wins.
	recent := h.Recent(types.ActionCommand, commandSequenceDepth)
	for n := len(recent); n >= 1; n-- {
		values := make([]string, 0, n)
		for _, e := range recent[len(recent)-n:] {
			values = append(values, e.Value)
		}
		key := sequenceKey(values)
		ranked, ok := m.sequences[key]
		if !ok {
			continue
		}
		for _, r := range ranked {
			if seen[r.Value] {
				continue
			}
			seen[r.Value] = true
			predictions = append(predictions, types.Prediction{
				Value:       r.Value,
				Confidence:  r.Score * m.weight * sequenceBoost,
				Description: fmt.Sprintf("Likely next command after %s", strings.Join(values, ", ")),
				Type:        types.ActionCommand,
				Metadata:    map[string]any{"sequence": key},
				Timestamp:   now,
			})
		}
		break
	}

	return predictions
}

// UpdateContext is a reserved extension point.
func (m *CommandModel) UpdateContext(ctx types.Context) {}

// SetWeight implements Model.
func (m *CommandModel) SetWeight(w float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weight = w
}

// Confidence implements Model.
func (m *CommandModel) Confidence() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.commands) == 0 {
		return 0
	}
	return 0.7
}

// Statistics implements Model.
func (m *CommandModel) Statistics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]any{
		"commands":  len(m.commands),
		"sequences": len(m.sequences),
		"weight":    m.weight,
	}
}

// Reset implements Model.
func (m *CommandModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = make(map[string]*commandStat)
	m.seqCounts = make(map[string]map[string]int)
	m.sequences = make(map[string][]Ranked)
	m.weight = 1.0
}

// sequenceKey joins the trailing commands (at most commandSequenceDepth)
// into a transition-table key.
func sequenceKey(commands []string) string {
	if len(commands) > commandSequenceDepth {
		commands = commands[len(commands)-commandSequenceDepth:]
	}
	return strings.Join(commands, ",")
}
