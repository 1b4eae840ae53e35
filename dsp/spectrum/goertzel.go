package spectrum

import (
	"fmt"
	"math"
)

// Goertzel measures the level of a single frequency over a block of samples.
//
// The state accumulates across ProcessBlock calls until Reset. For a tone
// that completes an integer number of cycles in the processed block,
// Amplitude returns its peak amplitude.
type Goertzel struct {
	coeff   float64
	s0, s1  float64
	samples int
}

// NewGoertzel creates a meter for frequency at sampleRate.
// frequency must lie in [0, sampleRate/2].
func NewGoertzel(frequency, sampleRate float64) (*Goertzel, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("goertzel: sample rate must be > 0: %v", sampleRate)
	}

	if frequency < 0 || frequency > sampleRate/2 || math.IsNaN(frequency) {
		return nil, fmt.Errorf("goertzel: frequency must be between 0 and sampleRate/2: %v", frequency)
	}

	return &Goertzel{coeff: 2 * math.Cos(2*math.Pi*frequency/sampleRate)}, nil
}

// Reset clears the accumulated state.
func (g *Goertzel) Reset() {
	g.s0, g.s1, g.samples = 0, 0, 0
}

// ProcessBlock feeds a block of samples.
func (g *Goertzel) ProcessBlock(input []float64) {
	s0, s1 := g.s0, g.s1
	coeff := g.coeff
	for _, x := range input {
		s := x + coeff*s0 - s1
		s1 = s0
		s0 = s
	}

	g.s0, g.s1 = s0, s1
	g.samples += len(input)
}

// Power returns |X|^2 of the tracked bin, equivalent to one DFT term over
// the processed samples.
func (g *Goertzel) Power() float64 {
	return g.s0*g.s0 + g.s1*g.s1 - g.coeff*g.s0*g.s1
}

// Amplitude returns the estimated peak amplitude of the tracked tone.
func (g *Goertzel) Amplitude() float64 {
	p := g.Power()
	if p <= 0 || g.samples == 0 {
		return 0
	}

	return 2 * math.Sqrt(p) / float64(g.samples)
}

// ToneLevel returns the estimated peak amplitude of frequency in input.
func ToneLevel(input []float64, frequency, sampleRate float64) (float64, error) {
	g, err := NewGoertzel(frequency, sampleRate)
	if err != nil {
		return 0, err
	}

	g.ProcessBlock(input)
	return g.Amplitude(), nil
}
