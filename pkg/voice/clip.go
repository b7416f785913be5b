package voice

import (
	"math"
	"time"
)

const bitsPerSample = 16

// Clip is a mono 16-bit PCM utterance.
type Clip struct {
	PCM        []int16
	SampleRate int
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(c.SampleRate)
}

// Truncate returns the first d of the clip. A non-positive d keeps everything.
func (c Clip) Truncate(d time.Duration) Clip {
	if d <= 0 || c.SampleRate <= 0 {
		return c
	}
	n := int(int64(c.SampleRate) * int64(d) / int64(time.Second))
	if n >= len(c.PCM) {
		return c
	}
	return Clip{PCM: c.PCM[:n], SampleRate: c.SampleRate}
}

// Resample converts the clip to rate using linear interpolation.
func (c Clip) Resample(rate int) Clip {
	if rate <= 0 || c.SampleRate <= 0 || rate == c.SampleRate || len(c.PCM) == 0 {
		return c
	}
	n := int(int64(len(c.PCM)) * int64(rate) / int64(c.SampleRate))
	out := make([]int16, n)
	step := float64(c.SampleRate) / float64(rate)
	last := len(c.PCM) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = c.PCM[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(math.Round(float64(c.PCM[j])*(1-frac) + float64(c.PCM[j+1])*frac))
	}
	return Clip{PCM: out, SampleRate: rate}
}

// Float32 returns the samples scaled to [-1, 1), the layout whisper.cpp expects.
func (c Clip) Float32() []float32 {
	out := make([]float32, len(c.PCM))
	for i, s := range c.PCM {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// WAV wraps the clip in a mono RIFF/WAVE container.
func (c Clip) WAV() []byte {
	// memFile writes cannot fail, so the only error is a bad sample rate.
	out, err := encodeWAV(c.SampleRate, 1, c.PCM)
	if err != nil {
		return nil
	}
	return out
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
