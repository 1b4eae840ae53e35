package mixer

import (
	"fmt"
	"io"
)

// Source is a seekable stream of interleaved frames.
type Source interface {
	// Channels returns the number of interleaved channels.
	Channels() int
	// ReadFrames fills dst with up to len(dst)/Channels() frames and
	// returns the number of frames read. At the end of the stream it
	// returns 0 and io.EOF.
	ReadFrames(dst []float64) (int, error)
	// SeekFrame moves the read cursor to frame.
	SeekFrame(frame int64) error
	// Position returns the read cursor in frames.
	Position() int64
	// Length returns the total number of frames.
	Length() int64
}

// Clip is an in-memory Source.
type Clip struct {
	samples  []float64
	channels int
	pos      int64
}

// NewClip wraps interleaved samples. Trailing samples that do not form a
// whole frame are ignored.
func NewClip(samples []float64, channels int) (*Clip, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: clip channels=%d", ErrInvalidConfig, channels)
	}

	frames := len(samples) / channels

	return &Clip{samples: samples[:frames*channels], channels: channels}, nil
}

// Channels returns the number of interleaved channels.
func (c *Clip) Channels() int { return c.channels }

// Length returns the number of frames in the clip.
func (c *Clip) Length() int64 { return int64(len(c.samples) / c.channels) }

// Position returns the read cursor in frames.
func (c *Clip) Position() int64 { return c.pos }

// ReadFrames copies frames from the cursor into dst.
func (c *Clip) ReadFrames(dst []float64) (int, error) {
	remaining := c.Length() - c.pos
	if remaining <= 0 {
		return 0, io.EOF
	}

	n := min(int64(len(dst)/c.channels), remaining)

	start := c.pos * int64(c.channels)
	copy(dst, c.samples[start:start+n*int64(c.channels)])
	c.pos += n

	return int(n), nil
}

// SeekFrame moves the cursor, clamping to the clip length.
func (c *Clip) SeekFrame(frame int64) error {
	if frame < 0 {
		return fmt.Errorf("%w: seek to frame %d", ErrInvalidIndex, frame)
	}

	c.pos = min(frame, c.Length())

	return nil
}
