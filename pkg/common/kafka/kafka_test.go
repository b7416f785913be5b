package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/synaptica-ai/diseaseform/pkg/common/models"
)

func TestPredictionFromEvent(t *testing.T) {
	// Round-trip through JSON so numbers arrive as float64, as they do off the wire.
	raw, _ := json.Marshal(models.Event{
		ID:   "e1",
		Type: EventPredictionCompleted,
		Data: map[string]interface{}{
			"session_id":    "s1",
			"panel_id":      "parkinsons",
			"outcome":       "negative",
			"feature_count": 22,
			"model_kind":    "onnx",
			"latency_ms":    2.5,
		},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	var event models.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rec, err := PredictionFromEvent(event)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.PanelID != "parkinsons" || rec.FeatureCount != 22 || rec.Latency != 2500*time.Microsecond || rec.Timestamp.Year() != 2026 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestPredictionFromEventRejectsOtherTypes(t *testing.T) {
	_, err := PredictionFromEvent(models.Event{Type: "session.ended"})
	if !errors.Is(err, ErrNotPrediction) {
		t.Fatalf("expected ErrNotPrediction, got %v", err)
	}
	if _, err := PredictionFromEvent(models.Event{Type: EventPredictionCompleted}); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
