// Package voice turns one spoken phrase into text. A Capturer opens an input
// device, waits for speech, hands the clip to a Transcriber and classifies
// every failure into a CaptureError the form can show to the user.
package voice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
)

const (
	DefaultListenWindow = 5 * time.Second
	DefaultPhraseLimit  = 15 * time.Second
)

// Device is an audio input that can be acquired for one capture.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an acquired device. Listen waits at most window for speech to
// start and returns ErrTimeout if none does.
type Stream interface {
	Listen(ctx context.Context, window time.Duration) (Clip, error)
	Close() error
}

// Transcriber converts a clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip Clip) (string, error)
}

type Capturer struct {
	transcriber  Transcriber
	listenWindow time.Duration
	phraseLimit  time.Duration
}

type Option func(*Capturer)

func WithListenWindow(d time.Duration) Option {
	return func(c *Capturer) {
		if d > 0 {
			c.listenWindow = d
		}
	}
}

func WithPhraseLimit(d time.Duration) Option {
	return func(c *Capturer) {
		if d > 0 {
			c.phraseLimit = d
		}
	}
}

func NewCapturer(t Transcriber, opts ...Option) *Capturer {
	c := &Capturer{
		transcriber:  t,
		listenWindow: DefaultListenWindow,
		phraseLimit:  DefaultPhraseLimit,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Capture records one phrase from device and returns its transcript. The
// device is released before Capture returns, on every path.
func (c *Capturer) Capture(ctx context.Context, device Device, label string) (string, error) {
	stream, err := device.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open input device: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			logger.Log.WithError(cerr).Warn("Failed to release input device")
		}
	}()

	log := logger.Log.WithField("field", label)
	log.Infof("Speak now for %s...", label)

	clip, err := stream.Listen(ctx, c.listenWindow)
	if err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return "", &CaptureError{Kind: KindTimeout, Err: err}
		}
		return "", fmt.Errorf("listen: %w", err)
	}
	clip = clip.Truncate(c.phraseLimit)

	start := time.Now()
	raw, err := c.transcriber.Transcribe(ctx, clip)
	if err != nil {
		log.WithError(err).Warn("Transcription request failed")
		return "", &CaptureError{Kind: KindServiceUnavailable, Err: err}
	}
	text := CleanTranscript(raw)
	if text == "" {
		return "", &CaptureError{Kind: KindUnintelligible, Err: fmt.Errorf("no words in transcript %q", raw)}
	}

	log.WithFields(map[string]interface{}{
		"clip_ms":    clip.Duration().Milliseconds(),
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Transcription complete")
	return text, nil
}

var (
	markerPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	wordPattern   = regexp.MustCompile(`[\p{L}\p{N}]`)
)

// CleanTranscript strips recognizer markers such as [BLANK_AUDIO] or
// (silence) and collapses whitespace. It returns "" when nothing spoken is
// left.
func CleanTranscript(raw string) string {
	text := markerPattern.ReplaceAllString(raw, " ")
	text = strings.Join(strings.Fields(text), " ")
	if !wordPattern.MatchString(text) {
		return ""
	}
	return text
}
