// Package form binds one panel definition to one session's field store and
// handles the per-field interactions: typing a value or dictating it.
package form

import (
	"context"
	"errors"
	"fmt"

	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
	"github.com/synaptica-ai/diseaseform/pkg/observability/metrics"
	"github.com/synaptica-ai/diseaseform/pkg/panel"
	"github.com/synaptica-ai/diseaseform/pkg/session"
	"github.com/synaptica-ai/diseaseform/pkg/voice"
)

var ErrUnknownFeature = errors.New("unknown feature")

// Capturer records one phrase from a device; *voice.Capturer in production.
type Capturer interface {
	Capture(ctx context.Context, device voice.Device, label string) (string, error)
}

type Field struct {
	Key     session.FieldKey
	Feature string
	Value   string
}

type View struct {
	PanelID     string
	Title       string
	SubmitLabel string
	Fields      []Field
}

// VoiceResult describes one dictation attempt. Value is the field's stored
// value afterwards, unchanged when Success is false.
type VoiceResult struct {
	Feature    string
	Success    bool
	Transcript string
	Kind       voice.Kind
	Message    string
	Value      string
}

type Panel struct {
	def      panel.Definition
	store    session.FieldStore
	capturer Capturer
}

func New(def panel.Definition, store session.FieldStore, capturer Capturer) *Panel {
	return &Panel{def: def, store: store, capturer: capturer}
}

func (p *Panel) Definition() panel.Definition { return p.def }

func (p *Panel) key(feature string) session.FieldKey {
	return session.FieldKey{PanelID: p.def.ID(), Feature: feature}
}

func (p *Panel) keys() []session.FieldKey {
	features := p.def.Features()
	keys := make([]session.FieldKey, len(features))
	for i, f := range features {
		keys[i] = p.key(f)
	}
	return keys
}

// Render initializes any field the session has not seen and returns every
// field in declared order.
func (p *Panel) Render(ctx context.Context) (View, error) {
	keys := p.keys()
	if err := p.store.EnsureInitialized(ctx, keys); err != nil {
		return View{}, fmt.Errorf("initialize %s fields: %w", p.def.ID(), err)
	}
	fields := make([]Field, len(keys))
	for i, k := range keys {
		v, err := p.store.Get(ctx, k)
		if err != nil {
			return View{}, fmt.Errorf("read %s: %w", k, err)
		}
		fields[i] = Field{Key: k, Feature: k.Feature, Value: v}
	}
	return View{
		PanelID:     p.def.ID(),
		Title:       p.def.Title(),
		SubmitLabel: p.def.SubmitLabel(),
		Fields:      fields,
	}, nil
}

// Edit overwrites one field with the text the user typed.
func (p *Panel) Edit(ctx context.Context, feature, value string) error {
	if !p.def.HasFeature(feature) {
		return fmt.Errorf("%w: %q on panel %s", ErrUnknownFeature, feature, p.def.ID())
	}
	if err := p.store.Set(ctx, p.key(feature), value); err != nil {
		return fmt.Errorf("write %s: %w", p.key(feature), err)
	}
	return nil
}

// Speak dictates one field. A failed capture is reported in the result and
// leaves the stored value as it was; only device and store failures are
// returned as errors.
func (p *Panel) Speak(ctx context.Context, feature string, device voice.Device) (VoiceResult, error) {
	if !p.def.HasFeature(feature) {
		return VoiceResult{}, fmt.Errorf("%w: %q on panel %s", ErrUnknownFeature, feature, p.def.ID())
	}
	key := p.key(feature)
	if err := p.store.EnsureInitialized(ctx, p.keys()); err != nil {
		return VoiceResult{}, fmt.Errorf("initialize %s fields: %w", p.def.ID(), err)
	}

	log := logger.Log.WithFields(map[string]interface{}{
		"panel_id": p.def.ID(),
		"feature":  feature,
	})

	text, err := p.capturer.Capture(ctx, device, feature)
	if err != nil {
		var ce *voice.CaptureError
		if !errors.As(err, &ce) {
			return VoiceResult{}, err
		}
		metrics.ObserveVoiceCapture(p.def.ID(), ce.Kind.String())
		log.WithField("kind", ce.Kind.String()).Info("Voice capture failed")
		current, gerr := p.store.Get(ctx, key)
		if gerr != nil {
			return VoiceResult{}, fmt.Errorf("read %s: %w", key, gerr)
		}
		return VoiceResult{
			Feature: feature,
			Kind:    ce.Kind,
			Message: ce.Message(),
			Value:   current,
		}, nil
	}

	if err := p.store.Set(ctx, key, text); err != nil {
		return VoiceResult{}, fmt.Errorf("write %s: %w", key, err)
	}
	metrics.ObserveVoiceCapture(p.def.ID(), "success")
	log.Debug("Voice capture stored")
	return VoiceResult{
		Feature:    feature,
		Success:    true,
		Transcript: text,
		Message:    "You said: " + text,
		Value:      text,
	}, nil
}

// Values returns the stored text of every field in declared order.
func (p *Panel) Values(ctx context.Context) ([]string, error) {
	keys := p.keys()
	values := make([]string, len(keys))
	for i, k := range keys {
		v, err := p.store.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		values[i] = v
	}
	return values, nil
}
