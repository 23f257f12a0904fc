// Package engine implements the Foresight prediction engine: a
// continuously-learning service that ingests user actions and produces
// ranked, confidence-scored predictions of what the user will do next.
//
// Learning is synchronous; prediction flows through a debounced,
// deduplicated reactive pipeline and is republished on named event
// topics. The only asynchronous boundary is history persistence, which
// never blocks or fails a Learn call.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"foresight/internal/config"
	"foresight/internal/events"
	"foresight/internal/history"
	"foresight/internal/logging"
	"foresight/internal/models"
	"foresight/internal/store"
	"foresight/internal/stream"
	"foresight/internal/types"
)

// Confidence blend weights: data volume, pattern diversity, model trust.
const (
	volumeWeight    = 0.3
	diversityWeight = 0.3
	modelWeight     = 0.4

	volumeSaturation    = 100.0
	diversitySaturation = 20.0
)

// Window within which a just-used value is de-prioritized.
const recentWindow = 5 * time.Minute

// Engine is the predictive suggestion engine.
type Engine struct {
	cfg       config.EngineConfig
	sessionID string

	// mu orders mutation of history and model state against prediction
	// generation: Learn writes, generation reads.
	mu      sync.RWMutex
	history *history.Store
	models  []models.Model

	bus   *events.Bus
	state store.StateStore

	input       *stream.Subject[string]
	predictions *stream.Holder[[]types.Prediction]
	enhanced    *stream.Holder[[]types.Prediction]
	context     *stream.Holder[types.Context]
	confidence  *stream.Holder[float64]

	stops  []func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	saveWG sync.WaitGroup
	closed atomic.Bool
}

// New creates an engine, restores persisted history from the state store
// (nil disables persistence), and starts the prediction pipeline.
func New(cfg config.EngineConfig, state store.StateStore) *Engine {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 1000
	}
	if cfg.MaxPredictions <= 0 {
		cfg.MaxPredictions = 5
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.3
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}

	e := &Engine{
		cfg:         cfg,
		sessionID:   uuid.NewString(),
		history:     history.New(cfg.HistorySize),
		models:      models.All(),
		bus:         events.NewBus(),
		state:       state,
		input:       stream.NewSubject[string](),
		predictions: stream.NewHolder[[]types.Prediction](nil),
		enhanced:    stream.NewHolder[[]types.Prediction](nil),
		context:     stream.NewHolder(types.Context{}),
		confidence:  stream.NewHolder(0.0),
		stopCh:      make(chan struct{}),
	}

	e.loadHistory()
	e.startPipeline()

	logging.Engine("Engine started (session %s, history size %d)", e.sessionID, cfg.HistorySize)
	return e
}

// Bus exposes the engine's event bus for subscribers.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Learn records an action: it lands in the bounded history, feeds every
// model, updates pattern-derived weights and the global confidence, and
// schedules an asynchronous history save. Malformed actions fall through
// every model's type guard and contribute nothing.
func (e *Engine) Learn(action types.Action) {
	if e.closed.Load() {
		return
	}
	timer := logging.StartTimer(logging.CategoryEngine, "Learn")
	defer timer.Stop()

	e.mu.Lock()
	e.history.Add(action)
	for _, m := range e.models {
		m.Learn(action)
	}
	e.adjustModelWeightsLocked()
	conf := e.calculateConfidenceLocked()
	var snap history.Snapshot
	if e.state != nil {
		snap = e.history.Snapshot()
	}
	e.mu.Unlock()

	e.publishConfidence(conf)
	if e.state != nil {
		e.saveHistoryAsync(snap)
	}
	logging.EngineDebug("Learned %s action %q (confidence %.3f)", action.Type, action.Value, conf)
}

// Predict pushes input into the prediction pipeline and returns the
// current (pre-update) predictions. The authoritative result for this
// input arrives later on the predictions topic, or via
// GetCurrentPredictions once the debounce window has elapsed.
func (e *Engine) Predict(input string) []types.Prediction {
	if !e.closed.Load() {
		e.input.Next(input)
	}
	return e.predictions.Get()
}

// GetCurrentPredictions returns the latest generated predictions.
func (e *Engine) GetCurrentPredictions() []types.Prediction {
	return e.predictions.Get()
}

// GetEnhancedPredictions returns the latest context-enhanced predictions.
func (e *Engine) GetEnhancedPredictions() []types.Prediction {
	return e.enhanced.Get()
}

// GetConfidence returns the engine's current global confidence in [0,1].
func (e *Engine) GetConfidence() float64 {
	return e.confidence.Get()
}

// AttachProvider consumes a context provider's streams until they close
// or the engine shuts down.
func (e *Engine) AttachProvider(p types.ContextProvider) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		updates, inferences := p.Updates(), p.Inferences()
		for updates != nil || inferences != nil {
			select {
			case ctx, ok := <-updates:
				if !ok {
					updates = nil
					continue
				}
				e.applyContext(ctx)
			case inf, ok := <-inferences:
				if !ok {
					inferences = nil
					continue
				}
				e.applyInference(inf)
			case <-e.stopCh:
				return
			}
		}
	}()
}

// applyContext forwards a context snapshot to every model's reserved hook
// and into the enhancement stage.
func (e *Engine) applyContext(ctx types.Context) {
	e.mu.Lock()
	for _, m := range e.models {
		m.UpdateContext(ctx)
	}
	e.mu.Unlock()
	e.context.Set(ctx)
}

// applyInference records externally inferred pattern types into the tally
// and re-derives weights and confidence from it.
func (e *Engine) applyInference(inf types.InferenceUpdate) {
	if len(inf.Patterns) == 0 {
		return
	}
	e.mu.Lock()
	for _, p := range inf.Patterns {
		e.history.RecordPattern(p.Type)
	}
	e.adjustModelWeightsLocked()
	conf := e.calculateConfidenceLocked()
	e.mu.Unlock()

	e.publishConfidence(conf)
	logging.EngineDebug("Applied inference update with %d patterns", len(inf.Patterns))
}

// adjustModelWeightsLocked redistributes model weights from the pattern
// tally. Only labels literally named after a model move its weight;
// extracted behavioral labels never are, so weights shift only when
// inference updates report model-domain pattern types.
func (e *Engine) adjustModelWeightsLocked() {
	tally := e.history.Patterns()
	total := 0
	for _, c := range tally {
		total += c
	}
	if total == 0 {
		return
	}
	for _, m := range e.models {
		if count := tally[m.Name()]; count > 0 {
			m.SetWeight(float64(count) / float64(total))
		}
	}
}

// calculateConfidenceLocked blends data volume, pattern diversity, and
// mean model trust into one global confidence score.
func (e *Engine) calculateConfidenceLocked() float64 {
	volume := float64(e.history.TotalActions()) / volumeSaturation
	if volume > 1 {
		volume = 1
	}
	diversity := float64(e.history.PatternCount()) / diversitySaturation
	if diversity > 1 {
		diversity = 1
	}
	modelSum := 0.0
	for _, m := range e.models {
		modelSum += m.Confidence()
	}
	modelMean := modelSum / float64(len(e.models))

	conf := volumeWeight*volume + diversityWeight*diversity + modelWeight*modelMean
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

func (e *Engine) publishConfidence(conf float64) {
	e.confidence.Set(conf)
	e.bus.Emit(events.TopicConfidence, conf)
}

// Reset clears all learned state, history, and published values, and
// persists the emptied history.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.history.Reset()
	for _, m := range e.models {
		m.Reset()
	}
	var snap history.Snapshot
	if e.state != nil {
		snap = e.history.Snapshot()
	}
	e.mu.Unlock()

	e.predictions.Set(nil)
	e.enhanced.Set(nil)
	e.publishConfidence(0)
	if e.state != nil {
		e.saveHistoryAsync(snap)
	}
	logging.Engine("Engine state reset")
}

// Statistics is a snapshot of engine counters.
type Statistics struct {
	SessionID    string                    `json:"sessionId"`
	Actions      map[string]int            `json:"actions"`
	TotalActions int                       `json:"totalActions"`
	PatternCount int                       `json:"patternCount"`
	Confidence   float64                   `json:"confidence"`
	Models       map[string]map[string]any `json:"models"`
	Bus          events.BusStats           `json:"bus"`
}

// GetStatistics reports current engine state.
func (e *Engine) GetStatistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	actions := map[string]int{
		types.ActionCommand:  e.history.Len(types.ActionCommand),
		types.ActionWorkflow: e.history.Len(types.ActionWorkflow),
		types.ActionFile:     e.history.Len(types.ActionFile),
	}
	modelStats := make(map[string]map[string]any, len(e.models))
	for _, m := range e.models {
		modelStats[m.Name()] = m.Statistics()
	}
	return Statistics{
		SessionID:    e.sessionID,
		Actions:      actions,
		TotalActions: e.history.TotalActions(),
		PatternCount: e.history.PatternCount(),
		Confidence:   e.confidence.Get(),
		Models:       modelStats,
		Bus:          e.bus.Stats(),
	}
}

// Close stops the pipeline, waits for provider readers and pending saves,
// and shuts down the event bus.
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	close(e.stopCh)
	for _, stop := range e.stops {
		stop()
	}
	e.input.Close()
	e.wg.Wait()
	e.saveWG.Wait()
	e.bus.Close()
	logging.Engine("Engine closed (session %s)", e.sessionID)
}
