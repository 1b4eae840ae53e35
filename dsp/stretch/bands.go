package stretch

import "math"

// band is the per-(channel, bin) phase memory.
type band struct {
	input, prevInput   complex128
	output, prevOutput complex128
	inputEnergy        float64
}

// bandField selects one of the complex fields of a band.
type bandField int

const (
	fieldInput bandField = iota
	fieldPrevInput
	fieldOutput
	fieldPrevOutput
)

// prediction is recomputed every analysis frame. Only energy survives to
// the next frame, where it is read back as the previous energy.
type prediction struct {
	energy             float64
	input              complex128
	shortVerticalTwist complex128
	longVerticalTwist  complex128
}

// makeOutput scales phase to the predicted energy, falling back to the
// predicted input when phase is too weak to carry a direction.
func (p *prediction) makeOutput(phase complex128) complex128 {
	phaseNorm := norm(phase)
	if phaseNorm <= noiseFloor {
		phase = p.input
		phaseNorm = norm(p.input) + noiseFloor
	}

	return phase * complex(math.Sqrt(p.energy/phaseNorm), 0)
}

// bandStore is a flat (channel, bin) arena indexed channel*bands + bin.
type bandStore struct {
	bands       int
	data        []band
	predictions []prediction
}

func newBandStore(channels, bands int) bandStore {
	return bandStore{
		bands:       bands,
		data:        make([]band, channels*bands),
		predictions: make([]prediction, channels*bands),
	}
}

func (s *bandStore) channel(c int) []band {
	return s.data[c*s.bands : (c+1)*s.bands]
}

func (s *bandStore) channelPredictions(c int) []prediction {
	return s.predictions[c*s.bands : (c+1)*s.bands]
}

// at returns field f of bin b in channel c, or zero outside [0, bands).
func (s *bandStore) at(c, b int, f bandField) complex128 {
	if b < 0 || b >= s.bands {
		return 0
	}

	bd := &s.data[c*s.bands+b]
	switch f {
	case fieldInput:
		return bd.input
	case fieldPrevInput:
		return bd.prevInput
	case fieldOutput:
		return bd.output
	case fieldPrevOutput:
		return bd.prevOutput
	}

	return 0
}

func (s *bandStore) energyAt(c, b int) float64 {
	if b < 0 || b >= s.bands {
		return 0
	}

	return s.data[c*s.bands+b].inputEnergy
}

// lerp reads field f between bins low and low+1.
func (s *bandStore) lerp(c, low int, frac float64, f bandField) complex128 {
	lo := s.at(c, low, f)
	hi := s.at(c, low+1, f)

	return lo + (hi-lo)*complex(frac, 0)
}

// fractional reads field f at a fractional bin position.
func (s *bandStore) fractional(c int, index float64, f bandField) complex128 {
	low := math.Floor(index)
	return s.lerp(c, int(low), index-low, f)
}

func (s *bandStore) lerpEnergy(c, low int, frac float64) float64 {
	lo := s.energyAt(c, low)
	hi := s.energyAt(c, low+1)

	return lo + (hi-lo)*frac
}

func (s *bandStore) reset() {
	clear(s.data)
	clear(s.predictions)
}

// endPhaseChain drops the previous-frame references so the next frame
// starts a new phase chain.
func (s *bandStore) endPhaseChain() {
	for i := range s.data {
		s.data[i].prevInput = 0
		s.data[i].prevOutput = 0
	}
}

func norm(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}

func conj(z complex128) complex128 {
	return complex(real(z), -imag(z))
}
