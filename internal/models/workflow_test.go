package models

import (
	"testing"

	"foresight/internal/history"
	"foresight/internal/types"
)

func TestWorkflowModelTransitionPrediction(t *testing.T) {
	m := NewWorkflowModel()
	h := history.New(10)

	m.Learn(types.Action{Type: types.ActionWorkflow, Value: "coding"})
	m.Learn(types.Action{
		Type: types.ActionWorkflow, Value: "testing",
		Context: map[string]any{"previousWorkflow": "coding"},
	})
	m.Learn(types.Action{
		Type: types.ActionWorkflow, Value: "testing",
		Context: map[string]any{"previousWorkflow": "coding"},
	})
	m.Learn(types.Action{
		Type: types.ActionWorkflow, Value: "review",
		Context: map[string]any{"previousWorkflow": "coding"},
	})

	h.Add(types.Action{Type: types.ActionWorkflow, Value: "coding"})

	preds := m.Predict("", h)
	if len(preds) != 2 {
		t.Fatalf("predictions = %d, want 2: %+v", len(preds), preds)
	}
	byValue := map[string]types.Prediction{}
	for _, p := range preds {
		byValue[p.Value] = p
	}
	testing2, ok := byValue["testing"]
	if !ok {
		t.Fatalf("missing testing prediction: %+v", preds)
	}
	if testing2.Confidence <= byValue["review"].Confidence {
		t.Fatalf("testing (%v) should outrank review (%v)",
			testing2.Confidence, byValue["review"].Confidence)
	}
	if testing2.Metadata["workflow"] != "testing" {
		t.Fatalf("workflow metadata = %v", testing2.Metadata)
	}
}

func TestWorkflowModelConditionGatesTransition(t *testing.T) {
	m := NewWorkflowModel()
	h := history.New(10)

	m.Learn(types.Action{
		Type: types.ActionWorkflow, Value: "deploy",
		Context: map[string]any{"previousWorkflow": "testing"},
	})
	m.RegisterCondition("testing", "deploy", func(ctx map[string]any) bool {
		passed, _ := ctx["testsPassed"].(bool)
		return passed
	})

	h.Add(types.Action{
		Type: types.ActionWorkflow, Value: "testing",
		Context: map[string]any{"testsPassed": false},
	})
	if preds := m.Predict("", h); len(preds) != 0 {
		t.Fatalf("gated transition predicted anyway: %+v", preds)
	}

	h.Add(types.Action{
		Type: types.ActionWorkflow, Value: "testing",
		Context: map[string]any{"testsPassed": true},
	})
	preds := m.Predict("", h)
	if len(preds) != 1 || preds[0].Value != "deploy" {
		t.Fatalf("predictions = %+v, want deploy", preds)
	}
}

func TestWorkflowModelTextMatch(t *testing.T) {
	m := NewWorkflowModel()
	h := history.New(10)

	for i := 0; i < 25; i++ {
		m.Learn(types.Action{Type: types.ActionWorkflow, Value: "code-review"})
	}

	preds := m.Predict("review", h)
	if len(preds) != 1 || preds[0].Value != "code-review" {
		t.Fatalf("predictions = %+v", preds)
	}
	// 25 occurrences against the /50 saturation divisor.
	if preds[0].Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", preds[0].Confidence)
	}
}
