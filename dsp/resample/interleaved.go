package resample

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-stretch/dsp/core"
)

// Interleaved converts interleaved audio from inRate to outRate. The
// filter delay is removed, so output frame i lines up with input time
// i*inRate/outRate.
func Interleaved(samples []float64, channels int, inRate, outRate float64, opts ...Option) ([]float64, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}

	if !core.IsFinitePositive(inRate) || !core.IsFinitePositive(outRate) {
		return nil, fmt.Errorf("%w: %v -> %v", ErrInvalidRate, inRate, outRate)
	}

	frames := len(samples) / channels
	if inRate == outRate {
		return append([]float64(nil), samples[:frames*channels]...), nil
	}

	var (
		out  []float64
		want int
	)

	mono := make([]float64, frames)
	var y []float64

	for c := range channels {
		r, err := NewForRates(inRate, outRate, opts...)
		if err != nil {
			return nil, err
		}

		up, down := r.Ratio()
		if out == nil {
			want = int(math.Round(float64(frames) * float64(up) / float64(down)))
			out = make([]float64, want*channels)
		}

		for i := range mono {
			mono[i] = samples[i*channels+c]
		}

		pad := make([]float64, (r.Delay()+1)*down/up+2)
		y = r.Process(y[:0], mono)
		y = r.Process(y, pad)

		for i := range want {
			if idx := i + r.Delay(); idx < len(y) {
				out[i*channels+c] = y[idx]
			}
		}
	}

	return out, nil
}
