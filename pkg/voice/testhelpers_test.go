package voice

import (
	"math"
	"time"
)

// tone builds a mono clip: silence for `lead`, then a 440 Hz sine of the
// given amplitude for `length`.
func tone(rate int, lead, length time.Duration, amplitude float64) Clip {
	silent := int(int64(rate) * int64(lead) / int64(time.Second))
	voiced := int(int64(rate) * int64(length) / int64(time.Second))
	pcm := make([]int16, silent+voiced)
	for i := 0; i < voiced; i++ {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
		pcm[silent+i] = int16(v)
	}
	return Clip{PCM: pcm, SampleRate: rate}
}
