//go:build whisper

package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// NativeWhisper transcribes in-process with the whisper.cpp bindings. The
// model is loaded once and shared; each call gets its own context.
type NativeWhisper struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
}

func NewNativeWhisper(modelPath, language string) (*NativeWhisper, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	if language == "" {
		language = "en"
	}
	return &NativeWhisper{model: model, language: language}, nil
}

func (w *NativeWhisper) Transcribe(ctx context.Context, clip Clip) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return "", errors.New("whisper: model closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(w.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", w.language, err)
	}
	samples := clip.Resample(whisperSampleRate).Float32()
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (w *NativeWhisper) Health(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return errors.New("whisper: model closed")
	}
	return nil
}

func (w *NativeWhisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}
