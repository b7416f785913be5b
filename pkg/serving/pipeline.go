// Package serving turns a filled-in form into a prediction and records the
// outcome.
package serving

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
	"github.com/synaptica-ai/diseaseform/pkg/common/models"
	"github.com/synaptica-ai/diseaseform/pkg/form"
	"github.com/synaptica-ai/diseaseform/pkg/observability/metrics"
	"github.com/synaptica-ai/diseaseform/pkg/session"
)

type Outcome string

const (
	OutcomePositive     Outcome = "positive"
	OutcomeNegative     Outcome = "negative"
	OutcomeInvalidInput Outcome = "invalid_input"
	OutcomeModelError   Outcome = "model_error"
)

const (
	InvalidInputMessage = "Please enter valid numeric values."
	ModelErrorMessage   = "The prediction model could not process these values."
)

// Result is the panel-level answer shown under the submit button.
type Result struct {
	PanelID string
	Outcome Outcome
	Message string
}

// Recorder receives one record per prediction. Failures are logged and do
// not change the result.
type Recorder interface {
	RecordPrediction(ctx context.Context, rec models.PredictionRecord) error
}

// DefaultRecordTimeout bounds how long a prediction response waits on its
// recorder.
const DefaultRecordTimeout = 2 * time.Second

type Pipeline struct {
	recorder      Recorder
	recordTimeout time.Duration
}

type Option func(*Pipeline)

func WithRecordTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.recordTimeout = d }
}

// NewPipeline returns a pipeline; recorder may be nil.
func NewPipeline(recorder Recorder, opts ...Option) *Pipeline {
	p := &Pipeline{recorder: recorder, recordTimeout: DefaultRecordTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict parses the panel's stored values and classifies them. Only store
// failures are returned as errors; bad input and classifier failures are
// outcomes.
func (p *Pipeline) Predict(ctx context.Context, fp *form.Panel) (Result, error) {
	start := time.Now()
	def := fp.Definition()

	values, err := fp.Values(ctx)
	if err != nil {
		return Result{}, err
	}

	result := Result{PanelID: def.ID()}
	vector, err := parseValues(values)
	if err != nil {
		result.Outcome = OutcomeInvalidInput
		result.Message = InvalidInputMessage
	} else if label, cerr := def.Classifier().Classify(ctx, vector); cerr != nil {
		logger.Log.WithError(cerr).WithField("panel_id", def.ID()).Error("Classifier failed")
		result.Outcome = OutcomeModelError
		result.Message = ModelErrorMessage
	} else {
		msg, positive := def.Message(label)
		result.Message = msg
		result.Outcome = OutcomeNegative
		if positive {
			result.Outcome = OutcomePositive
		}
	}

	latency := time.Since(start)
	metrics.ObservePrediction(def.ID(), string(result.Outcome), latency)
	logger.Log.WithFields(map[string]interface{}{
		"panel_id":   def.ID(),
		"outcome":    result.Outcome,
		"latency_ms": latency.Milliseconds(),
	}).Info("Prediction completed")

	if p.recorder != nil {
		rec := models.PredictionRecord{
			SessionID:    session.IDFromContext(ctx),
			PanelID:      def.ID(),
			Outcome:      string(result.Outcome),
			FeatureCount: def.FeatureCount(),
			ModelKind:    def.Classifier().Kind(),
			Latency:      latency,
			Timestamp:    time.Now().UTC(),
		}
		p.record(ctx, rec)
	}
	return result, nil
}

func (p *Pipeline) record(ctx context.Context, rec models.PredictionRecord) {
	if p.recordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.recordTimeout)
		defer cancel()
	}
	if err := p.recorder.RecordPrediction(ctx, rec); err != nil {
		logger.Log.WithError(err).WithField("panel_id", rec.PanelID).Warn("Failed to record prediction")
	}
}

// parseValues converts every value to a finite float64, in order.
func parseValues(values []string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("value %d: %q is not finite", i, v)
		}
		out[i] = f
	}
	return out, nil
}

// Recorders fans a record out to every recorder. All are attempted; the
// errors are joined.
type Recorders []Recorder

func (rs Recorders) RecordPrediction(ctx context.Context, rec models.PredictionRecord) error {
	var errs []error
	for _, r := range rs {
		if err := r.RecordPrediction(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
