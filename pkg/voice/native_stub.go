//go:build !whisper

package voice

import (
	"context"
	"errors"
)

var errNativeUnavailable = errors.New("whisper: binary built without the whisper tag")

// NativeWhisper is unavailable in this build; rebuild with -tags whisper.
type NativeWhisper struct{}

func NewNativeWhisper(modelPath, language string) (*NativeWhisper, error) {
	return nil, errNativeUnavailable
}

func (*NativeWhisper) Transcribe(context.Context, Clip) (string, error) {
	return "", errNativeUnavailable
}

func (*NativeWhisper) Health(context.Context) error { return errNativeUnavailable }

func (*NativeWhisper) Close() error { return nil }
