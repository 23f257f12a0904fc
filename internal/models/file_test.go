package models

import (
	"testing"
	"time"

	"foresight/internal/history"
	"foresight/internal/types"
)

func TestFileModelAssociations(t *testing.T) {
	m := NewFileModel()
	h := history.New(10)

	m.Learn(types.Action{Type: types.ActionFile, Value: "handler.go"})
	m.Learn(types.Action{
		Type: types.ActionFile, Value: "handler_test.go",
		Context: map[string]any{"previousFile": "handler.go"},
	})

	h.Add(types.Action{Type: types.ActionFile, Value: "handler.go"})

	preds := m.Predict("", h)
	if len(preds) != 1 {
		t.Fatalf("predictions = %d, want 1: %+v", len(preds), preds)
	}
	if preds[0].Value != "handler_test.go" {
		t.Fatalf("value = %q", preds[0].Value)
	}
	if preds[0].Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0 (sole association)", preds[0].Confidence)
	}
}

func TestFileModelSelfAssociationIgnored(t *testing.T) {
	m := NewFileModel()
	h := history.New(10)

	m.Learn(types.Action{
		Type: types.ActionFile, Value: "main.go",
		Context: map[string]any{"previousFile": "main.go"},
	})

	h.Add(types.Action{Type: types.ActionFile, Value: "main.go"})
	if preds := m.Predict("", h); len(preds) != 0 {
		t.Fatalf("self association should not predict: %+v", preds)
	}
}

func TestFileModelRecencyDecay(t *testing.T) {
	m := NewFileModel()
	h := history.New(10)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	current := now.Add(-24 * time.Hour)
	m.SetClock(func() time.Time { return current })

	for i := 0; i < 10; i++ {
		m.Learn(types.Action{Type: types.ActionFile, Value: "stale/config.yaml"})
	}
	current = now
	for i := 0; i < 10; i++ {
		m.Learn(types.Action{Type: types.ActionFile, Value: "fresh/config.yaml"})
	}

	preds := m.Predict("config", h)
	if len(preds) != 2 {
		t.Fatalf("predictions = %d, want 2", len(preds))
	}
	byValue := map[string]float64{}
	for _, p := range preds {
		byValue[p.Value] = p.Confidence
	}
	// Equal frequency (10/20 each); the day-old file decays to half.
	if byValue["fresh/config.yaml"] != 0.5 {
		t.Fatalf("fresh confidence = %v, want 0.5", byValue["fresh/config.yaml"])
	}
	if byValue["stale/config.yaml"] != 0.25 {
		t.Fatalf("stale confidence = %v, want 0.25", byValue["stale/config.yaml"])
	}
}

func TestRecencyFactor(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{0, 1.0},
		{24 * time.Hour, 0.5},
		{-time.Hour, 1.0},
	}
	for _, c := range cases {
		if got := recencyFactor(c.age); got != c.want {
			t.Fatalf("recencyFactor(%v) = %v, want %v", c.age, got, c.want)
		}
	}
}
