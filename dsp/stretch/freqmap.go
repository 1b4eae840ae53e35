package stretch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-stretch/dsp/core"
)

type mapKind int

const (
	mapTranspose mapKind = iota
	mapCustom
)

// freqMap is the frequency-mapping policy. Frequencies are normalised to
// the sample rate (cycles per sample).
type freqMap struct {
	kind   mapKind
	factor float64
	limit  float64
	custom func(float64) float64
}

func identityMap() freqMap {
	return freqMap{kind: mapTranspose, factor: 1, limit: 1}
}

// active reports whether the map can move energy between bins.
func (m *freqMap) active() bool {
	switch m.kind {
	case mapCustom:
		return true
	case mapTranspose:
		return m.factor != 1
	}

	return false
}

func (m *freqMap) apply(freq float64) float64 {
	switch m.kind {
	case mapCustom:
		return m.custom(freq)
	case mapTranspose:
		if freq > m.limit {
			return m.limit*m.factor + (freq - m.limit)
		}

		return freq * m.factor
	}

	return freq
}

// SetTransposeFactor transposes by multiplier. Frequencies above
// tonalityLimit (a fraction of the sample rate) are shifted rather than
// scaled, which keeps upper partials from drifting; a limit of zero or less
// scales the whole spectrum. The change applies from the next analysis frame.
func (s *Stretcher) SetTransposeFactor(multiplier, tonalityLimit float64) error {
	if !core.IsFinitePositive(multiplier) {
		return fmt.Errorf("%w: transpose factor %v", ErrInvalidConfig, multiplier)
	}

	if !core.IsFinite(tonalityLimit) {
		return fmt.Errorf("%w: tonality limit %v", ErrInvalidConfig, tonalityLimit)
	}

	limit := 1.0
	if tonalityLimit > 0 {
		limit = tonalityLimit / math.Sqrt(multiplier)
	}

	s.freqMap = freqMap{kind: mapTranspose, factor: multiplier, limit: limit}

	return nil
}

// SetTransposeSemitones is SetTransposeFactor with the factor given in
// equal-tempered semitones.
func (s *Stretcher) SetTransposeSemitones(semitones, tonalityLimit float64) error {
	if !core.IsFinite(semitones) {
		return fmt.Errorf("%w: semitones %v", ErrInvalidConfig, semitones)
	}

	return s.SetTransposeFactor(core.SemitonesToRatio(semitones), tonalityLimit)
}

// SetFreqMap installs a custom mapping from input to output frequency, both
// in cycles per sample. The mapping should be monotonically increasing.
func (s *Stretcher) SetFreqMap(inputToOutput func(float64) float64) error {
	if inputToOutput == nil {
		return fmt.Errorf("%w: nil frequency map", ErrInvalidConfig)
	}

	s.freqMap = freqMap{kind: mapCustom, custom: inputToOutput}

	return nil
}
