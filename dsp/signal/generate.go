// Package signal generates deterministic test signals.
package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-stretch/dsp/core"
)

// Generator creates deterministic interleaved test signals.
type Generator struct {
	sampleRate float64
	channels   int
	seed       int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithChannels sets the number of interleaved channels (default 1).
func WithChannels(channels int) Option {
	return func(g *Generator) {
		g.channels = channels
	}
}

// NewGenerator creates a generator for the given sample rate.
func NewGenerator(sampleRate float64, opts ...Option) (*Generator, error) {
	g := &Generator{sampleRate: sampleRate, channels: 1, seed: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if !core.IsFinitePositive(sampleRate) {
		return nil, fmt.Errorf("signal: sample rate must be > 0: %f", sampleRate)
	}

	if g.channels <= 0 {
		return nil, fmt.Errorf("signal: channels must be > 0: %d", g.channels)
	}

	return g, nil
}

// SampleRate returns the generator sample rate.
func (g *Generator) SampleRate() float64 { return g.sampleRate }

// Channels returns the number of interleaved channels.
func (g *Generator) Channels() int { return g.channels }

// Sine generates frames frames of a sine wave, identical on every channel.
func (g *Generator) Sine(freqHz, amplitude float64, frames int) ([]float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("signal: sine frames must be > 0: %d", frames)
	}

	out := make([]float64, frames*g.channels)
	step := 2 * math.Pi * freqHz / g.sampleRate
	for i := range frames {
		v := amplitude * math.Sin(step*float64(i))
		for c := range g.channels {
			out[i*g.channels+c] = v
		}
	}

	return out, nil
}

// WhiteNoise generates frames frames of uniform noise in
// [-amplitude, amplitude], independent per channel.
func (g *Generator) WhiteNoise(amplitude float64, frames int) ([]float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("signal: noise frames must be > 0: %d", frames)
	}

	if amplitude < 0 {
		return nil, fmt.Errorf("signal: noise amplitude must be >= 0: %f", amplitude)
	}

	out := make([]float64, frames*g.channels)
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out, nil
}

// Normalize scales data to target peak amplitude and returns a new slice.
func Normalize(data []float64, targetPeak float64) ([]float64, error) {
	if targetPeak < 0 {
		return nil, fmt.Errorf("signal: normalize target peak must be >= 0: %f", targetPeak)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("signal: normalize input must not be empty")
	}

	out := make([]float64, len(data))

	peak := core.Peak(data)
	if peak == 0 || targetPeak == 0 {
		return out, nil
	}

	scale := targetPeak / peak
	for i, v := range data {
		out[i] = v * scale
	}

	return out, nil
}
