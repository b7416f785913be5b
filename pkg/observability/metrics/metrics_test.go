package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesDomainMetrics(t *testing.T) {
	ObservePrediction("diabetes", "positive", 3*time.Millisecond)
	ObserveVoiceCapture("heart", "timeout")
	ObserveSessionStarted()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`predictform_predictions_total{outcome="positive",panel="diabetes"} 1`,
		`predictform_voice_captures_total{outcome="timeout",panel="heart"} 1`,
		`predictform_prediction_duration_seconds_count{panel="diabetes"} 1`,
		`predictform_sessions_started_total 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, out)
		}
	}
}
