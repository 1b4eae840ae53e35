package stretch

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-stretch/dsp/core"
	"github.com/cwbudde/algo-stretch/dsp/delay"
	"github.com/cwbudde/algo-stretch/dsp/stft"
)

const (
	defaultBlockSeconds    = 0.12
	defaultIntervalSeconds = 0.03
	cheaperBlockSeconds    = 0.1
	cheaperIntervalSeconds = 0.04
)

// Stretcher changes the duration and pitch of interleaved multi-channel
// audio. It is not safe for concurrent use.
type Stretcher struct {
	seed int64
	rng  *rand.Rand

	configured bool
	channels   int
	block      int
	interval   int
	fftSize    int
	bandCount  int

	transform *stft.STFT
	history   *delay.MultiBuffer
	timeBuf   []float64

	rotCentreSpectrum []complex128
	rotPrevInterval   []complex128

	store     bandStore
	freqMap   freqMap
	peaks     []peak
	energy    []float64
	smoothed  []float64
	outputMap []mapPoint

	powerScratch []float64
	reScratch    []float64
	imScratch    []float64

	silenceCounter  int
	silenceFirst    bool
	flushed         bool
	didSeek         bool
	prevInputOffset int
	seekTimeFactor  float64

	// Per-call state read by the frame callback.
	callInput   []float64
	callInCount int
	callOutCnt  int
	frameFn     func(int) error
}

// New returns an unconfigured Stretcher. Call Configure or a preset before
// processing.
func New(opts ...Option) *Stretcher {
	cfg := applyOptions(opts)

	s := &Stretcher{
		seed:           cfg.seed,
		rng:            rand.New(rand.NewSource(cfg.seed)),
		freqMap:        identityMap(),
		seekTimeFactor: 1,
	}
	s.frameFn = s.processFrame

	return s
}

// PresetDefault configures a 120 ms window with a 30 ms interval.
func (s *Stretcher) PresetDefault(channels int, sampleRate float64) error {
	return s.preset(channels, sampleRate, defaultBlockSeconds, defaultIntervalSeconds)
}

// PresetCheaper configures a 100 ms window with a 40 ms interval, trading
// some quality for fewer spectral frames.
func (s *Stretcher) PresetCheaper(channels int, sampleRate float64) error {
	return s.preset(channels, sampleRate, cheaperBlockSeconds, cheaperIntervalSeconds)
}

func (s *Stretcher) preset(channels int, sampleRate, blockSeconds, intervalSeconds float64) error {
	if !core.IsFinitePositive(sampleRate) {
		return fmt.Errorf("%w: sample rate %v", ErrInvalidConfig, sampleRate)
	}

	return s.Configure(channels, int(sampleRate*blockSeconds), int(sampleRate*intervalSeconds))
}

// Configure sizes every buffer for channels channels, a window of
// blockSamples and a hop of intervalSamples, then resets all state.
func (s *Stretcher) Configure(channels, blockSamples, intervalSamples int) error {
	if channels <= 0 || blockSamples <= 0 || intervalSamples <= 0 || intervalSamples > blockSamples {
		return fmt.Errorf("%w: channels=%d block=%d interval=%d",
			ErrInvalidConfig, channels, blockSamples, intervalSamples)
	}

	transform, err := stft.New(channels, blockSamples, intervalSamples)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	history, err := delay.NewMultiBuffer(channels, blockSamples+intervalSamples+1)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	bands := transform.Bands()

	s.channels = channels
	s.block = blockSamples
	s.interval = intervalSamples
	s.fftSize = transform.FFTSize()
	s.bandCount = bands
	s.transform = transform
	s.history = history
	s.timeBuf = make([]float64, blockSamples)

	s.rotCentreSpectrum = make([]complex128, bands)
	s.rotPrevInterval = make([]complex128, bands)
	s.timeShiftPhases(-0.5*float64(blockSamples), s.rotCentreSpectrum)
	s.timeShiftPhases(-float64(intervalSamples), s.rotPrevInterval)

	s.store = newBandStore(channels, bands)
	s.peaks = make([]peak, 0, bands)
	s.energy = make([]float64, bands)
	s.smoothed = make([]float64, bands)
	s.outputMap = make([]mapPoint, bands)
	s.identityOutputMap()

	s.powerScratch = make([]float64, bands)
	s.reScratch = make([]float64, bands)
	s.imScratch = make([]float64, bands)

	s.configured = true
	s.Reset()

	return nil
}

// timeShiftPhases fills out with the per-bin rotation of a delay by
// shiftSamples.
func (s *Stretcher) timeShiftPhases(shiftSamples float64, out []complex128) {
	for b := range out {
		phase := s.bandToFreq(float64(b)) * shiftSamples * (-2 * math.Pi)
		sin, cos := math.Sincos(phase)
		out[b] = complex(cos, sin)
	}
}

// Reset clears transform, history and phase state without changing the
// configuration. The random generator is re-seeded, so a reset Stretcher
// produces the same output as a freshly configured one.
func (s *Stretcher) Reset() {
	s.rng.Seed(s.seed)

	if !s.configured {
		return
	}

	s.transform.Reset()
	s.history.Reset()
	s.store.reset()

	s.prevInputOffset = -1
	s.silenceCounter = 2 * s.block
	s.silenceFirst = true
	s.flushed = true
	s.didSeek = false
	s.seekTimeFactor = 1
}

// BlockSamples returns the window length.
func (s *Stretcher) BlockSamples() int { return s.block }

// IntervalSamples returns the hop between analysis frames.
func (s *Stretcher) IntervalSamples() int { return s.interval }

// InputLatency returns how far ahead of the output position input is read.
func (s *Stretcher) InputLatency() int { return s.block / 2 }

// OutputLatency returns the synthesis share of the block delay.
func (s *Stretcher) OutputLatency() int { return s.block - s.InputLatency() }

// Channels returns the configured channel count.
func (s *Stretcher) Channels() int { return s.channels }

// Bands returns the number of frequency bins per channel.
func (s *Stretcher) Bands() int { return s.bandCount }

// FFTSize returns the transform length.
func (s *Stretcher) FFTSize() int { return s.fftSize }

// Flushed reports whether all synthesised output has been drained since
// the last analysed frame.
func (s *Stretcher) Flushed() bool { return s.flushed }

// Seed returns the seed of the phase-step generator.
func (s *Stretcher) Seed() int64 { return s.seed }

func (s *Stretcher) checkBuffer(name string, buf []float64, frames int) error {
	if frames < 0 {
		return fmt.Errorf("%w: negative %s sample count %d", ErrContractViolation, name, frames)
	}

	if len(buf) < frames*s.channels {
		return fmt.Errorf("%w: %s holds %d values, need %d frames of %d channels",
			ErrContractViolation, name, len(buf), frames, s.channels)
	}

	return nil
}

// Process consumes inputSamples interleaved frames from input and writes
// exactly outputSamples frames to output. The ratio of the two counts is
// the stretch ratio for this call.
func (s *Stretcher) Process(input []float64, inputSamples int, output []float64, outputSamples int) error {
	if !s.configured {
		return ErrNotConfigured
	}

	if err := s.checkBuffer("input", input, inputSamples); err != nil {
		return err
	}

	if err := s.checkBuffer("output", output, outputSamples); err != nil {
		return err
	}

	input = input[:inputSamples*s.channels]
	output = output[:outputSamples*s.channels]

	if core.Energy(input) < noiseFloor {
		if s.silenceCounter >= 2*s.block {
			s.passSilence(input, inputSamples, output, outputSamples)
			return nil
		}

		s.silenceCounter += inputSamples
	} else {
		s.silenceCounter = 0
		s.silenceFirst = true
	}

	s.callInput = input
	s.callInCount = inputSamples
	s.callOutCnt = outputSamples

	for i := range outputSamples {
		if err := s.transform.EnsureValid(i, s.frameFn); err != nil {
			s.callInput = nil
			return err
		}

		for c := range s.channels {
			output[i*s.channels+c] = s.transform.At(c, i)
		}
	}

	s.callInput = nil

	s.storeHistory(input, inputSamples)
	s.transform.Advance(outputSamples)
	s.prevInputOffset -= inputSamples

	return nil
}

// passSilence bypasses spectral processing for silent input.
func (s *Stretcher) passSilence(input []float64, inputSamples int, output []float64, outputSamples int) {
	if s.silenceFirst {
		s.silenceFirst = false
		clear(s.store.data)
	}

	if inputSamples > 0 {
		for i := range outputSamples {
			src := (i % inputSamples) * s.channels
			copy(output[i*s.channels:(i+1)*s.channels], input[src:src+s.channels])
		}
	} else {
		clear(output)
	}

	s.storeHistory(input, inputSamples)
}

// storeHistory keeps the tail of input that later frames may reach back
// into, then moves the history head past the whole call.
func (s *Stretcher) storeHistory(input []float64, inputSamples int) {
	start := max(0, inputSamples-(s.block+s.interval))
	for i := start; i < inputSamples; i++ {
		for c := range s.channels {
			s.history.Set(c, i, input[i*s.channels+c])
		}
	}

	s.history.Advance(inputSamples)
}

// processFrame is called by the transform once per synthesis frame.
// outputOffset is the frame position relative to the current call's
// output.
func (s *Stretcher) processFrame(outputOffset int) error {
	scaled := float64(outputOffset) * float64(s.callInCount) / float64(s.callOutCnt)
	inputOffset := int(math.Round(scaled)) - s.block
	inputInterval := inputOffset - s.prevInputOffset
	s.prevInputOffset = inputOffset

	newSpectrum := s.didSeek || inputInterval > 0
	if newSpectrum {
		if err := s.analyseAt(inputOffset, fieldInput); err != nil {
			return err
		}

		s.flushed = false

		if s.didSeek || inputInterval != s.interval {
			if err := s.analyseAt(inputOffset-s.interval, fieldPrevInput); err != nil {
				return err
			}
		}
	}

	timeFactor := s.seekTimeFactor
	if !s.didSeek {
		timeFactor = float64(s.interval) / max(1, float64(inputInterval))
	}

	s.processSpectrum(newSpectrum, timeFactor)
	s.didSeek = false

	for c := range s.channels {
		spec := s.transform.Spectrum(c)
		bins := s.store.channel(c)
		for b := range spec {
			spec[b] = bins[b].output * conj(s.rotCentreSpectrum[b])
		}
	}

	return nil
}

// analyseAt analyses the window starting offset frames into the current
// input (negative offsets read history) and stores the centred spectrum in
// field f of every band.
func (s *Stretcher) analyseAt(offset int, f bandField) error {
	fromHistory := min(max(0, -offset), s.block)

	for c := range s.channels {
		for i := range fromHistory {
			s.timeBuf[i] = s.history.At(c, i+offset)
		}

		for i := fromHistory; i < s.block; i++ {
			s.timeBuf[i] = s.callInput[(i+offset)*s.channels+c]
		}

		if err := s.transform.Analyse(c, s.timeBuf); err != nil {
			return err
		}

		spec := s.transform.Spectrum(c)
		bins := s.store.channel(c)
		for b := range spec {
			v := spec[b] * s.rotCentreSpectrum[b]
			if f == fieldPrevInput {
				bins[b].prevInput = v
			} else {
				bins[b].input = v
			}
		}
	}

	return nil
}

// Flush drains the synthesis tail into output at end of stream. Up to one
// block is copied directly; what overlaps beyond the block is folded back
// (subtracted) into the end of output. Output frames past the block are
// zeroed. The phase chain ends, so the next frame starts fresh.
func (s *Stretcher) Flush(output []float64, outputSamples int) error {
	if !s.configured {
		return ErrNotConfigured
	}

	if err := s.checkBuffer("output", output, outputSamples); err != nil {
		return err
	}

	plain := min(outputSamples, s.block)
	folded := min(outputSamples, s.block-plain)

	clear(output[plain*s.channels : outputSamples*s.channels])

	for c := range s.channels {
		for i := range plain {
			output[i*s.channels+c] = s.transform.At(c, i)
		}

		for i := range folded {
			output[(outputSamples-1-i)*s.channels+c] -= s.transform.At(c, plain+i)
		}

		for i := range plain + folded {
			s.transform.Set(c, i, 0)
		}
	}

	s.transform.Advance(plain + folded)
	s.store.endPhaseChain()
	s.flushed = true

	return nil
}

// Seek repositions the stream. input holds the most recent inputSamples
// frames before the new position (ideally at least BlockSamples() +
// IntervalSamples()); playbackRate is the intended stretch after the seek.
// The next Process call starts a fresh analysis from this history.
func (s *Stretcher) Seek(input []float64, inputSamples int, playbackRate float64) error {
	if !s.configured {
		return ErrNotConfigured
	}

	if err := s.checkBuffer("input", input, inputSamples); err != nil {
		return err
	}

	if !core.IsFinite(playbackRate) {
		return fmt.Errorf("%w: playback rate %v", ErrContractViolation, playbackRate)
	}

	s.history.Reset()

	totalEnergy := 0.0
	start := max(0, inputSamples-s.block-s.interval)
	for i := start; i < inputSamples; i++ {
		for c := range s.channels {
			v := input[i*s.channels+c]
			totalEnergy += v * v
			s.history.Set(c, i, v)
		}
	}

	if totalEnergy >= noiseFloor {
		s.silenceCounter = 0
		s.silenceFirst = true
	}

	s.history.Advance(inputSamples)
	s.didSeek = true

	if playbackRate*float64(s.interval) > 1 {
		s.seekTimeFactor = 1 / playbackRate
	} else {
		s.seekTimeFactor = float64(s.interval)
	}

	return nil
}
