package dither

import (
	"fmt"
	"math"
)

const (
	defaultBitDepth  = 16
	defaultType      = TypeTriangular
	defaultAmplitude = 1.0
	minBitDepth      = 2
	maxBitDepth      = 32
)

type config struct {
	bitDepth  int
	typ       Type
	amplitude float64
	shaping   []float64
	seed      uint64
	seeded    bool
}

func defaultConfig() config {
	return config{
		bitDepth:  defaultBitDepth,
		typ:       defaultType,
		amplitude: defaultAmplitude,
	}
}

// Option configures a Quantizer.
type Option func(*config) error

// WithBitDepth sets the target bit depth (2-32, default 16).
func WithBitDepth(bits int) Option {
	return func(cfg *config) error {
		if bits < minBitDepth || bits > maxBitDepth {
			return fmt.Errorf("dither: bit depth must be in [%d, %d]: %d", minBitDepth, maxBitDepth, bits)
		}

		cfg.bitDepth = bits

		return nil
	}
}

// WithType sets the dither noise PDF (default TypeTriangular).
func WithType(t Type) Option {
	return func(cfg *config) error {
		if !t.Valid() {
			return fmt.Errorf("dither: invalid dither type: %d", t)
		}

		cfg.typ = t

		return nil
	}
}

// WithAmplitude scales the dither noise (default 1 step).
func WithAmplitude(amp float64) Option {
	return func(cfg *config) error {
		if amp < 0 || math.IsNaN(amp) || math.IsInf(amp, 0) {
			return fmt.Errorf("dither: amplitude must be >= 0 and finite: %f", amp)
		}

		cfg.amplitude = amp

		return nil
	}
}

// WithShaping enables error-feedback noise shaping with the given FIR
// coefficients, applied per channel.
func WithShaping(coeffs []float64) Option {
	return func(cfg *config) error {
		cfg.shaping = append([]float64(nil), coeffs...)
		return nil
	}
}

// WithSeed makes the dither noise reproducible.
func WithSeed(seed uint64) Option {
	return func(cfg *config) error {
		cfg.seed = seed
		cfg.seeded = true

		return nil
	}
}
