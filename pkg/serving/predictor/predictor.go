package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/diseaseform/pkg/ml/linear"
)

// ErrFeatureMismatch is returned when an artifact's declared features do not
// match the panel's feature order exactly.
var ErrFeatureMismatch = errors.New("artifact features do not match panel feature order")

// Classifier is a loaded binary model. Classify receives one row in the
// panel's declared feature order and returns the predicted label.
type Classifier interface {
	Classify(ctx context.Context, features []float64) (int, error)
	Kind() string
}

// Options tunes artifact loading. Zero values select defaults.
type Options struct {
	// ONNX tensor names; skl2onnx exports use float_input/label.
	InputName  string
	OutputName string
}

// Open loads the artifact at path, choosing the backend by file extension,
// and checks it against the panel's ordered feature names.
func Open(path string, features []string, opts Options) (Classifier, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadLogistic(path, features)
	case ".onnx":
		return LoadONNX(path, features, opts)
	default:
		return nil, fmt.Errorf("unsupported model artifact %q (expected .json or .onnx)", path)
	}
}

type Artifact struct {
	Model struct {
		Type         string         `json:"type"`
		Algorithm    string         `json:"algorithm"`
		FeatureNames []string       `json:"feature_names"`
		Threshold    float64        `json:"threshold"`
		Weights      linear.Weights `json:"weights"`
	} `json:"model"`
}

// LogisticModel scores JSON logistic-regression artifacts.
type LogisticModel struct {
	path     string
	artifact Artifact
}

func LoadLogistic(path string, features []string) (*LogisticModel, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if algo := artifact.Model.Algorithm; algo != "" && algo != "logistic_regression" {
		return nil, fmt.Errorf("artifact %s: unsupported algorithm %q", path, algo)
	}
	if err := checkFeatureOrder(artifact.Model.FeatureNames, features); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	if n := len(artifact.Model.Weights.Coefficients); n != len(features) {
		return nil, fmt.Errorf("artifact %s: %d coefficients for %d features", path, n, len(features))
	}
	return &LogisticModel{path: path, artifact: artifact}, nil
}

func (m *LogisticModel) Classify(ctx context.Context, features []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return linear.Classify(m.artifact.Model.Weights, features, m.artifact.Model.Threshold)
}

func (m *LogisticModel) Kind() string { return "logistic" }

func checkFeatureOrder(declared, want []string) error {
	if len(declared) == 0 {
		return fmt.Errorf("%w: artifact missing feature names", ErrFeatureMismatch)
	}
	if len(declared) != len(want) {
		return fmt.Errorf("%w: artifact has %d features, panel has %d", ErrFeatureMismatch, len(declared), len(want))
	}
	for i := range want {
		if declared[i] != want[i] {
			return fmt.Errorf("%w: position %d is %q, panel expects %q", ErrFeatureMismatch, i, declared[i], want[i])
		}
	}
	return nil
}
