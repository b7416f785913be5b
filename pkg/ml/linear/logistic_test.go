package linear

import (
	"math"
	"testing"
)

func TestPredictAtZeroIsHalf(t *testing.T) {
	w := Weights{Bias: 0, Coefficients: []float64{1, -1}}
	if p := Predict(w, []float64{2, 2}); math.Abs(p-0.5) > 1e-12 {
		t.Fatalf("expected 0.5, got %f", p)
	}
}

func TestClassify(t *testing.T) {
	w := Weights{Bias: -1, Coefficients: []float64{0.5, 0.25}}

	cases := []struct {
		name      string
		sample    []float64
		threshold float64
		want      int
	}{
		{name: "well above", sample: []float64{10, 10}, want: 1},
		{name: "well below", sample: []float64{-10, 0}, want: 0},
		{name: "boundary counts as positive", sample: []float64{2, 0}, want: 1},
		{name: "custom threshold", sample: []float64{2, 0}, threshold: 0.9, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(w, tc.sample, tc.threshold)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestClassifyRejectsWrongLength(t *testing.T) {
	w := Weights{Coefficients: []float64{1, 2, 3}}
	if _, err := Classify(w, []float64{1, 2}, 0); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
