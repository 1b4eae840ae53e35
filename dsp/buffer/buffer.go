package buffer

import (
	"errors"
	"fmt"
)

// ErrInvalidChannels is returned for channel counts below one.
var ErrInvalidChannels = errors.New("buffer: invalid channel count")

// Frames holds interleaved samples for a fixed number of channels.
type Frames struct {
	samples  []float64
	channels int
}

// New returns a zero-filled buffer of frames frames.
func New(channels, frames int) (*Frames, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}

	return &Frames{samples: make([]float64, max(frames, 0)*channels), channels: channels}, nil
}

// Channels returns the number of interleaved channels.
func (b *Frames) Channels() int { return b.channels }

// Len returns the number of frames.
func (b *Frames) Len() int { return len(b.samples) / b.channels }

// Cap returns the number of frames the buffer holds without growing.
func (b *Frames) Cap() int { return cap(b.samples) / b.channels }

// Samples returns the interleaved samples.
func (b *Frames) Samples() []float64 { return b.samples }

// Frame returns the samples of frame i.
func (b *Frames) Frame(i int) []float64 {
	return b.samples[i*b.channels : (i+1)*b.channels]
}

// Grow ensures capacity for at least frames frames, preserving data.
func (b *Frames) Grow(frames int) {
	n := frames * b.channels
	if n <= cap(b.samples) {
		return
	}

	grown := make([]float64, len(b.samples), n)
	copy(grown, b.samples)
	b.samples = grown
}

// Resize sets the length to frames frames, reusing capacity. Newly exposed
// frames are zeroed.
func (b *Frames) Resize(frames int) {
	n := max(frames, 0) * b.channels
	old := len(b.samples)

	b.Grow(max(frames, 0))
	b.samples = b.samples[:n]

	if n > old {
		clear(b.samples[old:])
	}
}

// Zero sets all samples to 0.
func (b *Frames) Zero() {
	clear(b.samples)
}

// Append adds the whole frames of samples to the end of the buffer.
func (b *Frames) Append(samples []float64) {
	n := len(samples) / b.channels * b.channels
	b.samples = append(b.samples, samples[:n]...)
}

// Channel copies channel c into dst, growing it as needed, and returns it.
func (b *Frames) Channel(c int, dst []float64) []float64 {
	frames := b.Len()
	if cap(dst) < frames {
		dst = make([]float64, frames)
	}

	dst = dst[:frames]
	for i := range dst {
		dst[i] = b.samples[i*b.channels+c]
	}

	return dst
}
