package panel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ModelSpec locates a panel's classifier artifact inside the model directory.
// A File without extension is probed as .json, then .onnx; an empty File
// means "<id>_model".
type ModelSpec struct {
	File   string `yaml:"file" json:"file"`
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
}

// Spec is the static configuration a Definition is built from.
type Spec struct {
	ID              string    `yaml:"id" json:"id"`
	Title           string    `yaml:"title" json:"title"`
	SubmitLabel     string    `yaml:"submit_label" json:"submit_label"`
	Features        []string  `yaml:"features" json:"features"`
	PositiveMessage string    `yaml:"positive_message" json:"positive_message"`
	NegativeMessage string    `yaml:"negative_message" json:"negative_message"`
	Model           ModelSpec `yaml:"model" json:"model"`
}

type SpecFile struct {
	Panels []Spec `yaml:"panels" json:"panels"`
}

// LoadSpecs reads panel specs from a YAML file. An empty path yields the
// built-in panels.
func LoadSpecs(path string) ([]Spec, error) {
	if path == "" {
		return DefaultSpecs(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var file SpecFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("decode panels file %s: %w", path, err)
	}
	if len(file.Panels) == 0 {
		return nil, errors.New("no panels configured")
	}
	if err := ValidateSpecs(file.Panels); err != nil {
		return nil, err
	}
	return file.Panels, nil
}

// ValidateSpecs reports every problem found, joined.
func ValidateSpecs(specs []Spec) error {
	var errs []error
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("panels[%d]: id is required", i))
		} else if seen[s.ID] {
			errs = append(errs, fmt.Errorf("panels[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true
		if len(s.Features) == 0 {
			errs = append(errs, fmt.Errorf("panel %q: no features", s.ID))
		}
		names := make(map[string]bool, len(s.Features))
		for _, f := range s.Features {
			if f == "" {
				errs = append(errs, fmt.Errorf("panel %q: empty feature name", s.ID))
			} else if names[f] {
				errs = append(errs, fmt.Errorf("panel %q: duplicate feature %q", s.ID, f))
			}
			names[f] = true
		}
		if s.PositiveMessage == "" || s.NegativeMessage == "" {
			errs = append(errs, fmt.Errorf("panel %q: positive and negative messages are required", s.ID))
		}
	}
	return errors.Join(errs...)
}

func DefaultSpecs() []Spec {
	return []Spec{
		{
			ID:          "diabetes",
			Title:       "Diabetes Prediction using ML",
			SubmitLabel: "Predict Diabetes",
			Features: []string{
				"Pregnancies", "Glucose", "BloodPressure", "SkinThickness",
				"Insulin", "BMI", "DiabetesPedigreeFunction", "Age",
			},
			PositiveMessage: "The person is diabetic",
			NegativeMessage: "The person is not diabetic",
		},
		{
			ID:          "heart",
			Title:       "Heart Disease Prediction using ML",
			SubmitLabel: "Predict Heart Disease",
			Features: []string{
				"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
				"thalach", "exang", "oldpeak", "slope", "ca", "thal",
			},
			PositiveMessage: "The person has heart disease",
			NegativeMessage: "The person does not have heart disease",
			Model:           ModelSpec{File: "heart_disease_model"},
		},
		{
			ID:          "parkinsons",
			Title:       "Parkinson's Disease Prediction using ML",
			SubmitLabel: "Predict Parkinson's Disease",
			Features: []string{
				"MDVP:Fo(Hz)", "MDVP:Fhi(Hz)", "MDVP:Flo(Hz)", "MDVP:Jitter(%)",
				"MDVP:Jitter(Abs)", "MDVP:RAP", "MDVP:PPQ", "Jitter:DDP",
				"MDVP:Shimmer", "MDVP:Shimmer(dB)", "Shimmer:APQ3",
				"Shimmer:APQ5", "MDVP:APQ", "Shimmer:DDA", "NHR", "HNR",
				"RPDE", "DFA", "spread1", "spread2", "D2", "PPE",
			},
			PositiveMessage: "The person has Parkinson's disease",
			NegativeMessage: "The person does not have Parkinson's disease",
		},
	}
}
