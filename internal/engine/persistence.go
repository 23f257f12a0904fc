package engine

import (
	"encoding/json"
	"sort"

	"foresight/internal/history"
	"foresight/internal/logging"
	"foresight/internal/types"
)

// stateKey is the state store key the history blob lives under.
const stateKey = "predictive_history"

// loadHistory restores persisted history from the state store and replays
// the restored entries into the models so learned statistics survive a
// restart. Persistence failures are logged and swallowed: the engine
// starts empty rather than failing.
func (e *Engine) loadHistory() {
	if e.state == nil {
		return
	}

	data, err := e.state.GetState(stateKey)
	if err != nil {
		logging.StoreError("History load skipped: %v", err)
		return
	}
	if data == nil {
		logging.StoreDebug("No persisted history under %q, starting fresh", stateKey)
		return
	}

	var snap history.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logging.StoreError("History load skipped, corrupt snapshot: %v", err)
		return
	}

	e.mu.Lock()
	e.history.Restore(snap)
	e.replayIntoModels(snap)
	e.adjustModelWeightsLocked()
	conf := e.calculateConfidenceLocked()
	e.mu.Unlock()
	e.confidence.Set(conf)
}

// replayIntoModels feeds restored entries to the models in chronological
// order. History routing already happened when the entries were first
// learned, so this goes straight to the models.
func (e *Engine) replayIntoModels(snap history.Snapshot) {
	var entries []history.Entry
	for _, cat := range snap.Categories {
		entries = append(entries, cat...)
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].Timestamp.Before(entries[b].Timestamp)
	})

	for _, entry := range entries {
		action := types.Action{
			Type:    entry.Type,
			Value:   entry.Value,
			Context: entry.Context,
			Result:  entry.Result,
		}
		for _, m := range e.models {
			m.Learn(action)
		}
	}
	if len(entries) > 0 {
		logging.Engine("Replayed %d restored actions into models", len(entries))
	}
}

// saveHistoryAsync persists a history snapshot off the caller's goroutine.
// Errors are logged, never propagated: persistence must not break
// learning.
func (e *Engine) saveHistoryAsync(snap history.Snapshot) {
	e.saveWG.Add(1)
	go func() {
		defer e.saveWG.Done()
		data, err := json.Marshal(snap)
		if err != nil {
			logging.StoreError("History save skipped, encode failed: %v", err)
			return
		}
		if err := e.state.SetState(stateKey, data); err != nil {
			logging.StoreError("History save skipped: %v", err)
		}
	}()
}
