package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"foresight/internal/events"
	"foresight/internal/logging"
	"foresight/internal/stream"
	"foresight/internal/types"
)

// PredictionBatch is the payload published on the prediction topics: one
// pipeline tick's worth of predictions with a batch identity.
type PredictionBatch struct {
	ID          string             `json:"id"`
	Input       string             `json:"input,omitempty"`
	Predictions []types.Prediction `json:"predictions"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// startPipeline wires input through debounce and dedup into prediction
// generation, and combines generated predictions with the latest context
// into the enhanced stream.
func (e *Engine) startPipeline() {
	debounced, stopDebounce := stream.Debounce[string](e.input, e.cfg.DebounceInterval)
	deduped, stopDistinct := stream.Distinct[string](debounced)
	cancelGen := deduped.Subscribe(e.generatePredictions)

	stopCombine := stream.CombineLatest(e.predictions, e.context, func(preds []types.Prediction, ctx types.Context) {
		enhanced := e.enhance(preds, ctx)
		e.enhanced.Set(enhanced)
		e.bus.Emit(events.TopicEnhancedPredictions, PredictionBatch{
			ID:          uuid.NewString(),
			Predictions: enhanced,
			GeneratedAt: time.Now(),
		})
	})

	e.stops = []func(){stopCombine, cancelGen, stopDistinct, stopDebounce}
}

// generatePredictions fans input out to every model in parallel, then
// merges, ranks, filters, and truncates the results before publishing.
func (e *Engine) generatePredictions(input string) {
	timer := logging.StartTimer(logging.CategoryPipeline, "generatePredictions")
	defer timer.StopWithThreshold(50 * time.Millisecond)

	e.mu.RLock()
	results := make([][]types.Prediction, len(e.models))
	var g errgroup.Group
	for i, m := range e.models {
		i, m := i, m
		g.Go(func() error {
			preds := m.Predict(input, e.history)
			name := m.Name()
			now := time.Now()
			for j := range preds {
				preds[j].Model = name
				preds[j].Timestamp = now
			}
			results[i] = preds
			return nil
		})
	}
	_ = g.Wait()
	e.mu.RUnlock()

	var merged []types.Prediction
	for _, preds := range results {
		merged = append(merged, preds...)
	}

	// Ranking is stable across identical learned state: confidence
	// descending, value ascending on ties.
	sort.SliceStable(merged, func(a, b int) bool {
		if merged[a].Confidence != merged[b].Confidence {
			return merged[a].Confidence > merged[b].Confidence
		}
		return merged[a].Value < merged[b].Value
	})

	kept := merged[:0]
	for _, p := range merged {
		if p.Confidence >= e.cfg.MinConfidence {
			kept = append(kept, p)
		}
	}
	if len(kept) > e.cfg.MaxPredictions {
		kept = kept[:e.cfg.MaxPredictions]
	}

	logging.PipelineDebug("Generated %d predictions for input %q (%d before filtering)", len(kept), input, len(merged))

	e.predictions.Set(kept)
	e.bus.Emit(events.TopicPredictions, PredictionBatch{
		ID:          uuid.NewString(),
		Input:       input,
		Predictions: kept,
		GeneratedAt: time.Now(),
	})
}
