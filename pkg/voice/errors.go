package voice

import "errors"

// Kind classifies a failed capture. Each kind has its own user-facing message.
type Kind int

const (
	KindUnintelligible Kind = iota + 1
	KindServiceUnavailable
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnintelligible:
		return "unintelligible"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Message is the sentence shown to the user for this kind.
func (k Kind) Message() string {
	switch k {
	case KindUnintelligible:
		return "Could not understand audio"
	case KindServiceUnavailable:
		return "Could not request results"
	case KindTimeout:
		return "Listening timed out"
	default:
		return "Voice capture failed"
	}
}

// CaptureError is returned by Capture for every recoverable voice failure.
// Any other error from Capture means the device itself could not be used.
type CaptureError struct {
	Kind Kind
	Err  error
}

var (
	ErrUnintelligible     = &CaptureError{Kind: KindUnintelligible}
	ErrServiceUnavailable = &CaptureError{Kind: KindServiceUnavailable}
	ErrTimeout            = &CaptureError{Kind: KindTimeout}
)

// ErrInvalidAudio is returned by devices whose input cannot be decoded.
var ErrInvalidAudio = errors.New("invalid audio")

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return e.Kind.Message()
	}
	return e.Kind.Message() + ": " + e.Err.Error()
}

func (e *CaptureError) Message() string { return e.Kind.Message() }

func (e *CaptureError) Unwrap() error { return e.Err }

// Is matches any CaptureError of the same kind, so errors.Is(err, ErrTimeout)
// works regardless of the wrapped cause.
func (e *CaptureError) Is(target error) bool {
	t, ok := target.(*CaptureError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a capture failure, or 0 if err is not one.
func KindOf(err error) Kind {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
