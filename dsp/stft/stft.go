package stft

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-stretch/dsp/delay"
	"github.com/cwbudde/algo-stretch/dsp/window"
)

var (
	// ErrInvalidSize is returned for non-positive channel counts, window
	// sizes or intervals, or an interval larger than the window.
	ErrInvalidSize = errors.New("stft: invalid size")
	// ErrShortBuffer is returned when an analysis buffer holds fewer samples
	// than the window.
	ErrShortBuffer = errors.New("stft: buffer shorter than window")
	// ErrChannel is returned for an out-of-range channel index.
	ErrChannel = errors.New("stft: channel out of range")
)

// Option configures an STFT.
type Option func(*config)

type config struct {
	window window.Type
}

// WithWindow selects the analysis/synthesis window shape. Defaults to Hann.
func WithWindow(t window.Type) Option {
	return func(c *config) {
		c.window = t
	}
}

// STFT holds per-channel spectra and the overlap-add output buffer.
type STFT struct {
	channels   int
	windowSize int
	interval   int
	fftSize    int
	bands      int

	window  []float64
	plan    *algofft.Plan[complex128]
	timeBuf []complex128
	freqBuf []complex128
	spectra [][]complex128
	output  *delay.MultiBuffer

	validUntil int
}

// New creates a transform for channels channels with the given window size
// and synthesis interval (hop).
func New(channels, windowSize, interval int, opts ...Option) (*STFT, error) {
	if channels <= 0 || windowSize <= 0 || interval <= 0 || interval > windowSize {
		return nil, fmt.Errorf("%w: channels=%d window=%d interval=%d",
			ErrInvalidSize, channels, windowSize, interval)
	}

	cfg := config{window: window.TypeHann}
	for _, opt := range opts {
		opt(&cfg)
	}

	coeffs := window.Generate(cfg.window, windowSize, window.WithPeriodic())

	err := window.NormalizeOverlapAdd(coeffs, interval)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	fftSize := nextPowerOf2(windowSize)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("stft: failed to create FFT plan: %w", err)
	}

	output, err := delay.NewMultiBuffer(channels, windowSize+interval)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	bands := fftSize/2 + 1

	spectra := make([][]complex128, channels)
	for c := range spectra {
		spectra[c] = make([]complex128, bands)
	}

	return &STFT{
		channels:   channels,
		windowSize: windowSize,
		interval:   interval,
		fftSize:    fftSize,
		bands:      bands,
		window:     coeffs,
		plan:       plan,
		timeBuf:    make([]complex128, fftSize),
		freqBuf:    make([]complex128, fftSize),
		spectra:    spectra,
		output:     output,
		validUntil: -1,
	}, nil
}

// Channels returns the channel count.
func (s *STFT) Channels() int { return s.channels }

// WindowSize returns the window length in samples.
func (s *STFT) WindowSize() int { return s.windowSize }

// Interval returns the synthesis hop in samples.
func (s *STFT) Interval() int { return s.interval }

// FFTSize returns the transform length.
func (s *STFT) FFTSize() int { return s.fftSize }

// Bands returns the number of bins per half-spectrum.
func (s *STFT) Bands() int { return s.bands }

// Window returns the normalised window coefficients. The slice is shared.
func (s *STFT) Window() []float64 { return s.window }

// Spectrum returns the half-spectrum of channel c. The slice is shared and
// may be modified before synthesis.
func (s *STFT) Spectrum(c int) []complex128 { return s.spectra[c] }

// Analyse windows samples[:WindowSize()] and stores its half-spectrum as the
// spectrum of channel c.
func (s *STFT) Analyse(c int, samples []float64) error {
	if c < 0 || c >= s.channels {
		return fmt.Errorf("%w: %d", ErrChannel, c)
	}

	if len(samples) < s.windowSize {
		return fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(samples), s.windowSize)
	}

	for i, w := range s.window {
		s.timeBuf[i] = complex(samples[i]*w, 0)
	}

	clear(s.timeBuf[s.windowSize:])

	err := s.plan.Forward(s.freqBuf, s.timeBuf)
	if err != nil {
		return fmt.Errorf("stft: forward FFT failed: %w", err)
	}

	copy(s.spectra[c], s.freqBuf[:s.bands])

	return nil
}

// EnsureValid makes output index valid. For every frame boundary up to and
// including index that has not been synthesised yet, fn is called with the
// block index, then each channel's spectrum is inverse-transformed,
// windowed and overlap-added starting at that index.
func (s *STFT) EnsureValid(index int, fn func(blockIndex int) error) error {
	for s.validUntil < index {
		blockIndex := s.validUntil + 1

		if fn != nil {
			err := fn(blockIndex)
			if err != nil {
				return err
			}
		}

		for c := range s.channels {
			err := s.synthesise(c, blockIndex)
			if err != nil {
				return err
			}
		}

		s.validUntil += s.interval
	}

	return nil
}

func (s *STFT) synthesise(c, blockIndex int) error {
	line := s.output.Channel(c)

	// Region past this frame is only reached by later frames; clear stale
	// ring contents before they start accumulating there.
	for i := blockIndex + s.windowSize; i < blockIndex+s.windowSize+s.interval; i++ {
		line.Set(i, 0)
	}

	spectrum := s.spectra[c]
	half := s.fftSize / 2

	s.freqBuf[0] = complex(real(spectrum[0]), 0)
	s.freqBuf[half] = complex(real(spectrum[half]), 0)

	for k := 1; k < half; k++ {
		v := spectrum[k]
		s.freqBuf[k] = v
		s.freqBuf[s.fftSize-k] = complex(real(v), -imag(v))
	}

	err := s.plan.Inverse(s.timeBuf, s.freqBuf)
	if err != nil {
		return fmt.Errorf("stft: inverse FFT failed: %w", err)
	}

	for i, w := range s.window {
		line.Add(blockIndex+i, real(s.timeBuf[i])*w)
	}

	return nil
}

// At reads synthesised output for channel c at index i relative to the
// current output position.
func (s *STFT) At(c, i int) float64 { return s.output.At(c, i) }

// Set overwrites synthesised output for channel c at index i.
func (s *STFT) Set(c, i int, v float64) { s.output.Set(c, i, v) }

// Advance moves the output position forward by n samples.
func (s *STFT) Advance(n int) {
	s.output.Advance(n)
	s.validUntil -= n
}

// Reset clears spectra and output and restarts synthesis at index 0.
func (s *STFT) Reset() {
	s.output.Reset()

	for _, spectrum := range s.spectra {
		clear(spectrum)
	}

	s.validUntil = -1
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
