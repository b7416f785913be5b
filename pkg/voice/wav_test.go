package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func listenTo(t *testing.T, wav []byte, window time.Duration) (Clip, error) {
	t.Helper()
	stream, err := NewWAVDevice(bytes.NewReader(wav)).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer stream.Close()
	return stream.Listen(context.Background(), window)
}

func TestWAVDeviceFindsSpeech(t *testing.T) {
	src := tone(16000, time.Second, 500*time.Millisecond, 4000)
	clip, err := listenTo(t, src.WAV(), 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clip.SampleRate != 16000 {
		t.Fatalf("unexpected rate %d", clip.SampleRate)
	}
	// Speech starts at 1s; the returned clip keeps 100ms of pre-roll.
	want := 600 * time.Millisecond
	if d := clip.Duration(); d < want-20*time.Millisecond || d > want+20*time.Millisecond {
		t.Fatalf("expected ~%v clip, got %v", want, d)
	}
}

func TestWAVDeviceSilenceTimesOut(t *testing.T) {
	silent := Clip{PCM: make([]int16, 16000*2), SampleRate: 16000}
	_, err := listenTo(t, silent.WAV(), time.Second)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWAVDeviceLateSpeechTimesOut(t *testing.T) {
	src := tone(8000, 3*time.Second, time.Second, 4000)
	_, err := listenTo(t, src.WAV(), 2*time.Second)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout for speech after the window, got %v", err)
	}
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	pcm := []int16{1000, 3000, -200, -400}
	wav := stereoWAV(t, 22050, pcm)
	clip, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clip.PCM) != 2 || clip.PCM[0] != 2000 || clip.PCM[1] != -300 {
		t.Fatalf("unexpected downmix %v", clip.PCM)
	}
	if clip.SampleRate != 22050 {
		t.Fatalf("unexpected rate %d", clip.SampleRate)
	}
}

func TestDecodeWAVRejectsBadInput(t *testing.T) {
	eightBit := tone(8000, 0, 10*time.Millisecond, 100).WAV()
	binary.LittleEndian.PutUint16(eightBit[34:36], 8)

	for name, data := range map[string][]byte{
		"empty":   nil,
		"not wav": []byte("ID3\x03 definitely an mp3 file"),
		"8-bit":   eightBit,
		"no data": tone(8000, 0, 0, 0).WAV()[:36],
	} {
		if _, err := DecodeWAV(data); !errors.Is(err, ErrInvalidAudio) {
			t.Fatalf("%s: expected ErrInvalidAudio, got %v", name, err)
		}
	}
}

func TestClipResample(t *testing.T) {
	src := tone(8000, 0, time.Second, 2000)
	out := src.Resample(16000)
	if out.SampleRate != 16000 || len(out.PCM) != 16000 {
		t.Fatalf("unexpected resample result: rate=%d len=%d", out.SampleRate, len(out.PCM))
	}
	if out.Duration() != src.Duration() {
		t.Fatalf("duration changed: %v vs %v", out.Duration(), src.Duration())
	}
}

func stereoWAV(t *testing.T, rate int, interleaved []int16) []byte {
	t.Helper()
	data, err := encodeWAV(rate, 2, interleaved)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestClipWAVRoundTrip(t *testing.T) {
	src := Clip{PCM: []int16{0, 1200, -1200, 32767, -32768}, SampleRate: 16000}
	data := src.WAV()
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || len(data) != 44+2*len(src.PCM) {
		t.Fatalf("unexpected header or size: %q %d", data[:12], len(data))
	}
	got, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SampleRate != 16000 || len(got.PCM) != len(src.PCM) {
		t.Fatalf("unexpected clip %+v", got)
	}
	for i := range src.PCM {
		if got.PCM[i] != src.PCM[i] {
			t.Fatalf("sample %d: got %d want %d", i, got.PCM[i], src.PCM[i])
		}
	}
}
