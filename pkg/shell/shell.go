// Package shell is the top level of the application: it keeps the selected
// panel per session and routes every interaction to that panel's form and
// the prediction pipeline.
package shell

import (
	"context"
	"errors"
	"fmt"

	"github.com/synaptica-ai/diseaseform/pkg/form"
	"github.com/synaptica-ai/diseaseform/pkg/panel"
	"github.com/synaptica-ai/diseaseform/pkg/serving"
	"github.com/synaptica-ai/diseaseform/pkg/session"
	"github.com/synaptica-ai/diseaseform/pkg/voice"
)

var ErrUnknownPanel = errors.New("unknown panel")

type Shell struct {
	panels   []panel.Definition
	capturer form.Capturer
	pipeline *serving.Pipeline
}

func New(panels []panel.Definition, capturer form.Capturer, pipeline *serving.Pipeline) (*Shell, error) {
	if len(panels) == 0 {
		return nil, errors.New("at least one panel is required")
	}
	seen := make(map[string]bool, len(panels))
	for _, p := range panels {
		if seen[p.ID()] {
			return nil, fmt.Errorf("duplicate panel %q", p.ID())
		}
		seen[p.ID()] = true
	}
	return &Shell{panels: panels, capturer: capturer, pipeline: pipeline}, nil
}

// Panels returns the definitions in configured order.
func (s *Shell) Panels() []panel.Definition {
	out := make([]panel.Definition, len(s.panels))
	copy(out, s.panels)
	return out
}

func (s *Shell) lookup(id string) (panel.Definition, bool) {
	for _, p := range s.panels {
		if p.ID() == id {
			return p, true
		}
	}
	return panel.Definition{}, false
}

// Select makes panelID the active panel of sess. Field values of every panel
// are left as they are.
func (s *Shell) Select(ctx context.Context, sess session.Session, panelID string) error {
	if _, ok := s.lookup(panelID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPanel, panelID)
	}
	if err := sess.Select(ctx, panelID); err != nil {
		return fmt.Errorf("store selection: %w", err)
	}
	return nil
}

// Active returns the selected panel, or the first one if nothing valid is
// selected.
func (s *Shell) Active(ctx context.Context, sess session.Session) (panel.Definition, error) {
	id, err := sess.Selected(ctx)
	if err != nil {
		return panel.Definition{}, fmt.Errorf("read selection: %w", err)
	}
	if def, ok := s.lookup(id); ok {
		return def, nil
	}
	return s.panels[0], nil
}

func (s *Shell) activeForm(ctx context.Context, sess session.Session) (*form.Panel, error) {
	def, err := s.Active(ctx, sess)
	if err != nil {
		return nil, err
	}
	return form.New(def, sess, s.capturer), nil
}

func (s *Shell) Render(ctx context.Context, sess session.Session) (form.View, error) {
	fp, err := s.activeForm(ctx, sess)
	if err != nil {
		return form.View{}, err
	}
	return fp.Render(ctx)
}

// Edit writes feature on the active panel and returns the key it wrote, so
// callers never resolve the active panel a second time.
func (s *Shell) Edit(ctx context.Context, sess session.Session, feature, value string) (session.FieldKey, error) {
	fp, err := s.activeForm(ctx, sess)
	if err != nil {
		return session.FieldKey{}, err
	}
	if err := fp.Edit(ctx, feature, value); err != nil {
		return session.FieldKey{}, err
	}
	return session.FieldKey{PanelID: fp.Definition().ID(), Feature: feature}, nil
}

func (s *Shell) Speak(ctx context.Context, sess session.Session, feature string, device voice.Device) (form.VoiceResult, error) {
	fp, err := s.activeForm(ctx, sess)
	if err != nil {
		return form.VoiceResult{}, err
	}
	return fp.Speak(ctx, feature, device)
}

func (s *Shell) Submit(ctx context.Context, sess session.Session) (serving.Result, error) {
	fp, err := s.activeForm(ctx, sess)
	if err != nil {
		return serving.Result{}, err
	}
	return s.pipeline.Predict(ctx, fp)
}
