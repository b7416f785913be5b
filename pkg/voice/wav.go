package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	frameDuration = 20 * time.Millisecond
	// speechRMSThreshold is the 16-bit PCM energy above which a frame counts
	// as speech.
	speechRMSThreshold = 300.0
	// preRoll is kept before the first speech frame so onsets are not clipped.
	preRoll = 100 * time.Millisecond

	maxWAVBytes = 32 << 20

	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVDevice is an input device backed by a recorded RIFF/WAVE clip, as
// uploaded by a browser. Only 16-bit PCM is accepted; multi-channel audio is
// downmixed to mono.
type WAVDevice struct {
	r         io.Reader
	threshold float64
}

func NewWAVDevice(r io.Reader) *WAVDevice {
	return &WAVDevice{r: r, threshold: speechRMSThreshold}
}

func (d *WAVDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(d.r, maxWAVBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) > maxWAVBytes {
		return nil, fmt.Errorf("%w: clip larger than %d bytes", ErrInvalidAudio, maxWAVBytes)
	}
	clip, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	return &wavStream{clip: clip, threshold: d.threshold}, nil
}

type wavStream struct {
	mu        sync.Mutex
	clip      Clip
	threshold float64
	closed    bool
}

// Listen returns the clip from shortly before the first speech frame. If no
// frame inside the first window of audio crosses the threshold it fails
// with ErrTimeout.
func (s *wavStream) Listen(ctx context.Context, window time.Duration) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Clip{}, errors.New("stream closed")
	}
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}

	rate := s.clip.SampleRate
	frame := samplesFor(rate, frameDuration)
	limit := len(s.clip.PCM)
	if window > 0 {
		limit = min(limit, samplesFor(rate, window))
	}
	for start := 0; start < limit; start += frame {
		end := min(start+frame, len(s.clip.PCM))
		if rms(s.clip.PCM[start:end]) >= s.threshold {
			from := max(0, start-samplesFor(rate, preRoll))
			return Clip{PCM: s.clip.PCM[from:], SampleRate: rate}, nil
		}
	}
	return Clip{}, fmt.Errorf("%w: no speech within %s", ErrTimeout, window)
}

func (s *wavStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.clip = Clip{}
	return nil
}

func samplesFor(rate int, d time.Duration) int {
	n := int(int64(rate) * int64(d) / int64(time.Second))
	return max(n, 1)
}

// DecodeWAV parses a RIFF/WAVE file holding 16-bit PCM and downmixes it to
// mono.
func DecodeWAV(data []byte) (Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	if dec.NumChans < 1 {
		return Clip{}, fmt.Errorf("%w: no channels", ErrInvalidAudio)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return Clip{}, fmt.Errorf("%w: unsupported format tag %d", ErrInvalidAudio, dec.WavAudioFormat)
	}
	if dec.BitDepth != bitsPerSample {
		return Clip{}, fmt.Errorf("%w: %d-bit samples, want 16", ErrInvalidAudio, dec.BitDepth)
	}
	if dec.SampleRate == 0 {
		return Clip{}, fmt.Errorf("%w: zero sample rate", ErrInvalidAudio)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}

	channels := int(dec.NumChans)
	frames := len(buf.Data) / channels
	if frames == 0 {
		return Clip{}, fmt.Errorf("%w: no samples", ErrInvalidAudio)
	}
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += buf.Data[i*channels+ch]
		}
		out[i] = int16(sum / channels)
	}
	return Clip{PCM: out, SampleRate: int(dec.SampleRate)}, nil
}

// encodeWAV writes interleaved 16-bit samples as a RIFF/WAVE file.
func encodeWAV(rate, channels int, interleaved []int16) ([]byte, error) {
	data := make([]int, len(interleaved))
	for i, s := range interleaved {
		data[i] = int(s)
	}
	out := &memFile{}
	enc := wav.NewEncoder(out, rate, bitsPerSample, channels, wavFormatPCM)
	err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return out.buf, nil
}

// memFile is the in-memory io.WriteSeeker the encoder patches its header
// sizes into.
type memFile struct {
	buf []byte
	pos int
}

func (f *memFile) Write(p []byte) (int, error) {
	if end := f.pos + len(p); end > len(f.buf) {
		f.buf = append(f.buf, make([]byte, end-len(f.buf))...)
	}
	n := copy(f.buf[f.pos:], p)
	f.pos += n
	return n, nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(f.pos) + offset
	case io.SeekEnd:
		pos = int64(len(f.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("seek: negative position")
	}
	f.pos = int(pos)
	return pos, nil
}
