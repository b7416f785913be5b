package linear

import (
	"fmt"
	"math"
)

const DefaultThreshold = 0.5

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

// Predict returns the positive-class probability for sample.
func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

// Classify returns 1 when the probability reaches threshold, else 0.
// A non-positive threshold means DefaultThreshold.
func Classify(weights Weights, sample []float64, threshold float64) (int, error) {
	if len(sample) != len(weights.Coefficients) {
		return 0, fmt.Errorf("sample has %d values, model expects %d", len(sample), len(weights.Coefficients))
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	p := Predict(weights, sample)
	if math.IsNaN(p) {
		return 0, fmt.Errorf("model produced NaN probability")
	}
	if p >= threshold {
		return 1, nil
	}
	return 0, nil
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
