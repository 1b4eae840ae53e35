package stretch

import "math"

const (
	// noiseFloor guards every energy division and decides silence.
	noiseFloor = 1e-15
	// maxCleanStretch is the stretch ratio above which vertical phase steps
	// are randomised per bin.
	maxCleanStretch = 2.0
)

// processSpectrum turns the analysed inputs into output phasors for one
// synthesis frame. newSpectrum is false when the frame repeats the previous
// analysis (output running ahead of input).
func (s *Stretcher) processSpectrum(newSpectrum bool, timeFactor float64) {
	timeFactor = max(timeFactor, 1/maxCleanStretch)
	randomTimeFactor := timeFactor > maxCleanStretch
	lowTimeFactor := 2*maxCleanStretch - timeFactor

	if newSpectrum {
		for c := range s.channels {
			bins := s.store.channel(c)
			for b := range bins {
				rot := s.rotPrevInterval[b]
				bins[b].prevOutput *= rot
				bins[b].prevInput *= rot
			}
		}
	}

	smoothingBins := float64(s.fftSize) / float64(s.interval)
	longVerticalStep := int(math.Round(smoothingBins))

	if s.freqMap.active() {
		s.findPeaks(smoothingBins)
		s.updateOutputMap()
	} else {
		s.measureEnergy()
		s.identityOutputMap()
	}

	s.predictChannels(randomTimeFactor, timeFactor, lowTimeFactor, longVerticalStep)
	s.lockChannels(longVerticalStep)

	for i := range s.store.data {
		bd := &s.store.data[i]
		bd.prevOutput = bd.output
		if newSpectrum {
			bd.prevInput = bd.input
		}
	}
}

// predictChannels computes the phase-vocoder estimate and the vertical
// twists for every (channel, bin).
func (s *Stretcher) predictChannels(randomTimeFactor bool, timeFactor, lowTimeFactor float64, longVerticalStep int) {
	for c := range s.channels {
		bins := s.store.channel(c)
		predictions := s.store.channelPredictions(c)

		for b := range bins {
			point := s.outputMap[b]
			lowF := math.Floor(point.inputBin)
			low, frac := int(lowF), point.inputBin-lowF

			pred := &predictions[b]
			prevEnergy := pred.energy
			pred.energy = s.store.lerpEnergy(c, low, frac) * max(0, point.freqGrad)
			pred.input = s.store.lerp(c, low, frac, fieldInput)

			prevInput := s.store.lerp(c, low, frac, fieldPrevInput)
			freqTwist := pred.input * conj(prevInput)
			phase := bins[b].prevOutput * freqTwist
			bins[b].output = phase / complex(max(prevEnergy, pred.energy)+noiseFloor, 0)

			if b == 0 {
				pred.shortVerticalTwist = 0
				pred.longVerticalTwist = 0

				continue
			}

			binTimeFactor := timeFactor
			if randomTimeFactor {
				binTimeFactor = lowTimeFactor + s.rng.Float64()*(timeFactor-lowTimeFactor)
			}

			downInput := s.store.fractional(c, point.inputBin-binTimeFactor, fieldInput)
			pred.shortVerticalTwist = pred.input * conj(downInput)

			if b >= longVerticalStep {
				longDownInput := s.store.fractional(c, point.inputBin-float64(longVerticalStep)*binTimeFactor, fieldInput)
				pred.longVerticalTwist = pred.input * conj(longDownInput)
			} else {
				pred.longVerticalTwist = 0
			}
		}
	}
}

// lockChannels rebuilds each bin from its neighbours in the loudest channel
// and locks the remaining channels to it.
func (s *Stretcher) lockChannels(longVerticalStep int) {
	for b := range s.bandCount {
		maxChannel := 0
		maxEnergy := s.store.channelPredictions(0)[b].energy
		for c := 1; c < s.channels; c++ {
			if e := s.store.channelPredictions(c)[b].energy; e > maxEnergy {
				maxChannel, maxEnergy = c, e
			}
		}

		predictions := s.store.channelPredictions(maxChannel)
		bins := s.store.channel(maxChannel)
		pred := &predictions[b]

		var phase complex128

		// Bins below are final already; bins above are still preliminary.
		if b > 0 {
			phase += bins[b-1].output * pred.shortVerticalTwist
			if b >= longVerticalStep {
				phase += bins[b-longVerticalStep].output * pred.longVerticalTwist
			}
		}

		if b < s.bandCount-1 {
			phase += bins[b+1].output * conj(predictions[b+1].shortVerticalTwist)
			if b < s.bandCount-longVerticalStep {
				phase += bins[b+longVerticalStep].output * conj(predictions[b+longVerticalStep].longVerticalTwist)
			}
		}

		ref := pred.makeOutput(phase)
		bins[b].output = ref

		for c := range s.channels {
			if c == maxChannel {
				continue
			}

			channelPred := &s.store.channelPredictions(c)[b]
			channelTwist := channelPred.input * conj(pred.input)
			s.store.channel(c)[b].output = channelPred.makeOutput(ref * channelTwist)
		}
	}
}
