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

// Association lists are kept to the strongest co-occurrences.
const fileAssociationLimit = 10

// FileModel predicts file accesses from co-occurrence associations with
// the current file and recency-weighted path matches against free text.
type FileModel struct {
	mu           sync.RWMutex
	weight       float64
	files        map[string]*fileStat
	assocCounts  map[string]map[string]int
	associations map[string][]Ranked
	clock        func() time.Time
}

type fileStat struct {
	Count        int       `json:"count"`
	Frequency    float64   `json:"frequency"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// NewFileModel creates an empty file model.
func NewFileModel() *FileModel {
	return &FileModel{
		weight:       1.0,
		files:        make(map[string]*fileStat),
		assocCounts:  make(map[string]map[string]int),
		associations: make(map[string][]Ranked),
		clock:        time.Now,
	}
}

// Name implements Model.
func (m *FileModel) Name() string { return NameFile }

// Learn updates file frequency and last access, and records the
// previous-file association with recomputed scores.
func (m *FileModel) Learn(action types.Action) {
	if action.Type != types.ActionFile || action.Value == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stat, ok := m.files[action.Value]
	if !ok {
		stat = &fileStat{}
		m.files[action.Value] = stat
	}
	stat.Count++
	stat.Frequency = saturate(stat.Count, 20)
	stat.LastAccessed = m.clock()

	if prev := contextString(action.Context, "previousFile"); prev != "" && prev != action.Value {
		counts, ok := m.assocCounts[prev]
		if !ok {
			counts = make(map[string]int)
			m.assocCounts[prev] = counts
		}
		counts[action.Value]++
		m.associations[prev] = rankCounts(counts, fileAssociationLimit)
		logging.ModelsDebug("file: learned association %q -> %q", prev, action.Value)
	}
}

// Predict returns files associated with the current file (the most recent
// file entry in history) plus path substring matches weighted by
// recency-normalized frequency.
func (m *FileModel) Predict(input string, h *history.Store) []types.Prediction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock()
	var predictions []types.Prediction
	seen := make(map[string]bool)

	if current, ok := h.Last(types.ActionFile); ok {
		for _, r := range m.associations[current.Value] {
			seen[r.Value] = true
			predictions = append(predictions, types.Prediction{
				Value:       r.Value,
				Confidence:  r.Score * m.weight,
				Description: fmt.Sprintf("Often accessed with %s", current.Value),
				Type:        types.ActionFile,
				Timestamp:   now,
			})
		}
	}

	if needle := strings.ToLower(strings.TrimSpace(input)); needle != "" {
		for path, stat := range m.files {
			if seen[path] || !strings.Contains(strings.ToLower(path), needle) {
				continue
			}
			predictions = append(predictions, types.Prediction{
				Value:       path,
				Confidence:  stat.Frequency * recencyFactor(now.Sub(stat.LastAccessed)) * m.weight,
				Description: fmt.Sprintf("Accessed %d times", stat.Count),
				Type:        types.ActionFile,
				Timestamp:   now,
			})
		}
	}

	return predictions
}

// UpdateContext is a reserved extension point.
func (m *FileModel) UpdateContext(ctx types.Context) {}

// SetWeight implements Model.
func (m *FileModel) SetWeight(w float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weight = w
}

// Confidence implements Model.
func (m *FileModel) Confidence() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.files) == 0 {
		return 0
	}
	return 0.8
}

// Statistics implements Model.
func (m *FileModel) Statistics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]any{
		"files":        len(m.files),
		"associations": len(m.associations),
		"weight":       m.weight,
	}
}

// Reset implements Model.
func (m *FileModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]*fileStat)
	m.assocCounts = make(map[string]map[string]int)
	m.associations = make(map[string][]Ranked)
	m.weight = 1.0
}

// SetClock overrides the model's time source. Intended for tests.
func (m *FileModel) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// recencyFactor normalizes frequency by access age: a file touched just
// now scores 1.0, one untouched for a day scores 0.5, decaying further
// from there.
func recencyFactor(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	return 1.0 / (1.0 + age.Hours()/24.0)
}
