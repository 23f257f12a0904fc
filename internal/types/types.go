// Package types defines the shared data types exchanged between the
// Foresight engine, its prediction models, and external collaborators.
package types

import "time"

// Action categories routed into bounded history. Any other Type is
// treated as free text: it feeds pattern extraction and the completion
// model but is not stored as a history entry.
const (
	ActionCommand  = "command"
	ActionWorkflow = "workflow"
	ActionFile     = "file"
	ActionText     = "text"
)

// Action is a single observed user action fed to the engine for learning.
// It is ephemeral: the engine derives history entries and model state from
// it but never retains the Action itself.
type Action struct {
	Type    string         `json:"type"`
	Value   string         `json:"value"`
	Context map[string]any `json:"context,omitempty"`
	Result  any            `json:"result,omitempty"`
}

// Prediction is a scored, typed suggestion of a next likely user action.
// Predictions are transient: regenerated on every pipeline tick, never
// persisted.
type Prediction struct {
	Value       string         `json:"value"`
	Confidence  float64        `json:"confidence"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type"`
	Model       string         `json:"model,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// WorkflowContext identifies the workflow the user is currently in.
type WorkflowContext struct {
	Type string `json:"type"`
}

// Context is a point-in-time snapshot of project state supplied by a
// context provider. All fields are optional; prediction enhancement
// degrades gracefully when they are absent.
type Context struct {
	Workflow    *WorkflowContext `json:"workflow,omitempty"`
	CurrentFile string           `json:"currentFile,omitempty"`
	Branch      string           `json:"branch,omitempty"`
	RecentFiles []string         `json:"recentFiles,omitempty"`
}

// InferencePattern is a single pattern reported by an inference update.
// Only the Type field is consumed by the engine.
type InferencePattern struct {
	Type string `json:"type"`
}

// InferenceUpdate carries externally inferred behavioral patterns into the
// engine's pattern tally.
type InferenceUpdate struct {
	Patterns []InferencePattern `json:"patterns,omitempty"`
}

// ContextProvider is the boundary to the external context subsystem. The
// engine consumes both streams until they are closed or the engine shuts
// down.
type ContextProvider interface {
	// Updates emits full context snapshots whenever project state changes.
	Updates() <-chan Context
	// Inferences emits externally inferred pattern updates.
	Inferences() <-chan InferenceUpdate
}
