package stretch

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-stretch/dsp/core"
)

// peak is one spectral event: the energy centroid of a run of bins and the
// bin it is mapped to.
type peak struct {
	input, output float64
}

// mapPoint tells an output bin which (fractional) input bin to read and how
// strongly the map stretches around it.
type mapPoint struct {
	inputBin float64
	freqGrad float64
}

func (s *Stretcher) bandToFreq(b float64) float64 {
	return b / float64(s.fftSize)
}

func (s *Stretcher) freqToBand(f float64) float64 {
	return f * float64(s.fftSize)
}

// measureEnergy stores |input|^2 per band and sums it across channels into
// s.energy.
func (s *Stretcher) measureEnergy() {
	clear(s.energy)

	for c := range s.channels {
		bins := s.store.channel(c)
		for b := range bins {
			s.reScratch[b] = real(bins[b].input)
			s.imScratch[b] = imag(bins[b].input)
		}

		vecmath.Power(s.powerScratch, s.reScratch, s.imScratch)

		for b := range bins {
			e := s.powerScratch[b]
			bins[b].inputEnergy = e
			s.energy[b] += e
		}
	}
}

// smoothEnergy fills s.smoothed with a slowly varying envelope of s.energy.
// The filter state carries across passes.
func (s *Stretcher) smoothEnergy(smoothingBins float64) {
	slew := 1 / (1 + smoothingBins*0.5)
	copy(s.smoothed, s.energy)

	e := 0.0
	for range 2 {
		for b := len(s.smoothed) - 1; b >= 0; b-- {
			e += (s.smoothed[b] - e) * slew
			s.smoothed[b] = e
		}

		for b := range s.smoothed {
			e += (s.smoothed[b] - e) * slew
			s.smoothed[b] = e
		}
	}
}

// findPeaks collapses every run of bins whose energy rises above the
// smoothed envelope into one peak at its energy centroid.
func (s *Stretcher) findPeaks(smoothingBins float64) {
	s.measureEnergy()
	s.smoothEnergy(smoothingBins)

	s.peaks = s.peaks[:0]

	for start := 0; start < s.bandCount; start++ {
		if !s.aboveEnvelope(start) {
			continue
		}

		end := start
		bandSum, energySum := 0.0, 0.0
		for end < s.bandCount && s.aboveEnvelope(end) {
			bandSum += float64(end) * s.energy[end]
			energySum += s.energy[end]
			end++
		}

		avgBand := bandSum / energySum
		output := s.freqToBand(s.freqMap.apply(s.bandToFreq(avgBand)))

		// A custom map may return anything; keep the bin arithmetic in range.
		if core.IsFinite(output) {
			limit := float64(2 * s.bandCount)
			s.peaks = append(s.peaks, peak{input: avgBand, output: core.Clamp(output, -limit, limit)})
		}

		start = end
	}
}

func (s *Stretcher) aboveEnvelope(b int) bool {
	return s.energy[b] > s.smoothed[b]+noiseFloor
}

// updateOutputMap builds the per-output-bin source map from the peaks:
// constant offsets outside the outermost peaks and a smooth-step between
// neighbouring peaks.
func (s *Stretcher) updateOutputMap() {
	if len(s.peaks) == 0 {
		s.identityOutputMap()
		return
	}

	first := s.peaks[0]
	bottomOffset := first.input - first.output
	for b := 0; b < min(s.bandCount, int(math.Ceil(first.output))); b++ {
		s.outputMap[b] = mapPoint{inputBin: float64(b) + bottomOffset, freqGrad: 1}
	}

	for p := 1; p < len(s.peaks); p++ {
		prev, next := s.peaks[p-1], s.peaks[p]

		rangeScale := 1 / (next.output - prev.output)
		outOffset := prev.input - prev.output
		outScale := next.input - next.output - prev.input + prev.output
		gradScale := outScale * rangeScale

		startBin := max(0, int(math.Ceil(prev.output)))
		endBin := min(s.bandCount, int(math.Ceil(next.output)))
		for b := startBin; b < endBin; b++ {
			r := (float64(b) - prev.output) * rangeScale
			h := r * r * (3 - 2*r)
			gradH := 6 * r * (1 - r)

			s.outputMap[b] = mapPoint{
				inputBin: float64(b) + outOffset + h*outScale,
				freqGrad: 1 + gradH*gradScale,
			}
		}
	}

	last := s.peaks[len(s.peaks)-1]
	topOffset := last.input - last.output
	for b := max(0, int(last.output)); b < s.bandCount; b++ {
		s.outputMap[b] = mapPoint{inputBin: float64(b) + topOffset, freqGrad: 1}
	}
}

func (s *Stretcher) identityOutputMap() {
	for b := range s.outputMap {
		s.outputMap[b] = mapPoint{inputBin: float64(b), freqGrad: 1}
	}
}
