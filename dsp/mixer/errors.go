package mixer

import "errors"

var (
	// ErrInvalidConfig is returned by New for unusable channel counts,
	// sample rates, block sizes or source layouts.
	ErrInvalidConfig = errors.New("mixer: invalid configuration")
	// ErrScratchOverflow is returned by Render when a block would need more
	// input frames than the mixer provisioned.
	ErrScratchOverflow = errors.New("mixer: scratch overflow")
	// ErrShortBuffer is returned when an output buffer cannot hold the
	// requested frames.
	ErrShortBuffer = errors.New("mixer: buffer too short")
	// ErrInvalidIndex is returned for a source index outside the mixer.
	ErrInvalidIndex = errors.New("mixer: source index out of range")
	// ErrInvalidRate is returned for playback rates that are not finite and
	// positive.
	ErrInvalidRate = errors.New("mixer: invalid playback rate")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("mixer: closed")
)
