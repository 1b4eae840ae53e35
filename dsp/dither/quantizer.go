package dither

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cwbudde/algo-stretch/dsp/core"
)

// Quantizer converts interleaved samples in [-1, 1] to integers of a given
// bit depth with dither and optional noise shaping.
type Quantizer struct {
	channels  int
	bitDepth  int
	typ       Type
	amplitude float64
	shapers   []*firShaper
	rng       *rand.Rand

	bitMul  float64
	limitLo int
	limitHi int
}

// NewQuantizer returns a 16-bit TPDF quantizer for channels interleaved
// channels unless options say otherwise.
func NewQuantizer(channels int, opts ...Option) (*Quantizer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("dither: channels must be > 0: %d", channels)
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	seed := cfg.seed
	if !cfg.seeded {
		seed = rand.Uint64()
	}

	q := &Quantizer{
		channels:  channels,
		bitDepth:  cfg.bitDepth,
		typ:       cfg.typ,
		amplitude: cfg.amplitude,
		shapers:   make([]*firShaper, channels),
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}

	for c := range q.shapers {
		q.shapers[c] = newFIRShaper(cfg.shaping)
	}

	q.bitMul = math.Exp2(float64(q.bitDepth-1)) - 0.5
	q.limitLo = -int(math.Round(q.bitMul + 0.5))
	q.limitHi = int(math.Round(q.bitMul - 0.5))

	return q, nil
}

// BitDepth returns the target bit depth.
func (q *Quantizer) BitDepth() int { return q.bitDepth }

// Limits returns the smallest and largest output value.
func (q *Quantizer) Limits() (lo, hi int) { return q.limitLo, q.limitHi }

// Quantize writes one integer per sample of src into dst. Non-finite
// samples are treated as silence.
func (q *Quantizer) Quantize(dst []int, src []float64) error {
	if len(dst) < len(src) {
		return fmt.Errorf("dither: dst holds %d values, need %d", len(dst), len(src))
	}

	for i, x := range src {
		if !core.IsFinite(x) {
			x = 0
		}

		shaper := q.shapers[i%q.channels]
		shaped := shaper.shape(q.bitMul * x)
		result := int(math.Floor(shaped + q.noise()))
		result = max(q.limitLo, min(q.limitHi, result))
		shaper.record(float64(result) - shaped)
		dst[i] = result
	}

	return nil
}

func (q *Quantizer) noise() float64 {
	switch q.typ {
	case TypeRectangular:
		return q.amplitude * (q.rng.Float64()*2 - 1)
	case TypeTriangular:
		return q.amplitude * (q.rng.Float64() - q.rng.Float64())
	default:
		return 0
	}
}

// Reset clears the noise-shaping history.
func (q *Quantizer) Reset() {
	for _, s := range q.shapers {
		s.reset()
	}
}
