// Package panel holds the immutable descriptors of the prediction forms: the
// ordered feature list, the messages shown for each classifier label and the
// loaded classifier itself.
package panel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/synaptica-ai/diseaseform/pkg/serving/predictor"
)

// Definition is one disease panel. It is built once at startup and only
// exposes copies of its slices, so it can be shared across sessions.
type Definition struct {
	id              string
	title           string
	submitLabel     string
	features        []string
	positiveMessage string
	negativeMessage string
	classifier      predictor.Classifier
}

// New builds a Definition from spec and an already loaded classifier.
func New(spec Spec, clf predictor.Classifier) (Definition, error) {
	if err := ValidateSpecs([]Spec{spec}); err != nil {
		return Definition{}, err
	}
	if clf == nil {
		return Definition{}, fmt.Errorf("panel %q: classifier is required", spec.ID)
	}
	submit := spec.SubmitLabel
	if submit == "" {
		submit = "Predict"
	}
	title := spec.Title
	if title == "" {
		title = spec.ID
	}
	features := make([]string, len(spec.Features))
	copy(features, spec.Features)
	return Definition{
		id:              spec.ID,
		title:           title,
		submitLabel:     submit,
		features:        features,
		positiveMessage: spec.PositiveMessage,
		negativeMessage: spec.NegativeMessage,
		classifier:      clf,
	}, nil
}

func (d Definition) ID() string          { return d.id }
func (d Definition) Title() string       { return d.title }
func (d Definition) SubmitLabel() string { return d.submitLabel }
func (d Definition) FeatureCount() int   { return len(d.features) }

// Features returns the feature names in declared order.
func (d Definition) Features() []string {
	out := make([]string, len(d.features))
	copy(out, d.features)
	return out
}

func (d Definition) HasFeature(name string) bool {
	for _, f := range d.features {
		if f == name {
			return true
		}
	}
	return false
}

func (d Definition) Classifier() predictor.Classifier { return d.classifier }

// Message maps a classifier label to the panel's sentence. Only 1 is positive.
func (d Definition) Message(label int) (string, bool) {
	if label == 1 {
		return d.positiveMessage, true
	}
	return d.negativeMessage, false
}

// OpenFunc loads a classifier artifact; predictor.Open in production.
type OpenFunc func(path string, features []string, opts predictor.Options) (predictor.Classifier, error)

// Build loads every panel's artifact from modelDir. Any failure is returned
// with the panel and path named; callers treat it as fatal.
func Build(specs []Spec, modelDir string, open OpenFunc) ([]Definition, error) {
	if open == nil {
		open = predictor.Open
	}
	defs := make([]Definition, 0, len(specs))
	for _, spec := range specs {
		path, err := ResolveModelPath(modelDir, spec)
		if err != nil {
			return nil, err
		}
		clf, err := open(path, spec.Features, predictor.Options{
			InputName:  spec.Model.Input,
			OutputName: spec.Model.Output,
		})
		if err != nil {
			return nil, fmt.Errorf("panel %q: load model %s: %w", spec.ID, path, err)
		}
		def, err := New(spec, clf)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ResolveModelPath returns the artifact path for spec inside modelDir.
func ResolveModelPath(modelDir string, spec Spec) (string, error) {
	name := spec.Model.File
	if name == "" {
		name = spec.ID + "_model"
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(modelDir, name)
	}
	if filepath.Ext(name) != "" {
		return name, nil
	}
	for _, ext := range []string{".json", ".onnx"} {
		candidate := name + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("panel %q: stat %s: %w", spec.ID, candidate, err)
		}
	}
	return "", fmt.Errorf("panel %q: no model artifact found at %s.json or %s.onnx", spec.ID, name, name)
}
