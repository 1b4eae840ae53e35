package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// BinSine generates a sine that completes exactly bin cycles every fftSize
// samples, so it lands in the centre of one transform bin.
func BinSine(bin float64, fftSize int, amplitude float64, length int) []float64 {
	return DeterministicSine(bin, float64(fftSize), amplitude, length)
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Interleave packs equally long channel slices into one frame-major buffer.
// Shorter channels are zero-padded to the longest.
func Interleave(channels ...[]float64) []float64 {
	frames := 0
	for _, ch := range channels {
		frames = max(frames, len(ch))
	}

	out := make([]float64, frames*len(channels))
	for c, ch := range channels {
		for i, v := range ch {
			out[i*len(channels)+c] = v
		}
	}
	return out
}

// Deinterleave splits a frame-major buffer into per-channel slices.
func Deinterleave(data []float64, channels int) [][]float64 {
	frames := len(data) / channels
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, frames)
		for i := range frames {
			out[c][i] = data[i*channels+c]
		}
	}
	return out
}
