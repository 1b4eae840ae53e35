package delay

import (
	"errors"
	"fmt"
)

// ErrInvalidLength is returned when a buffer is created with a non-positive length.
var ErrInvalidLength = errors.New("delay: invalid buffer length")

// Line is a circular buffer addressed relative to a moving head.
//
// Index 0 is the head, negative indices reach into the past and positive
// indices reach ahead. Any window of Len() consecutive indices maps to
// distinct storage.
type Line struct {
	buffer []float64
	mask   int
	head   int
}

// New returns a line holding at least size samples. Storage is rounded up
// to a power of two.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, size)
	}

	n := nextPowerOf2(size)

	return &Line{buffer: make([]float64, n), mask: n - 1}, nil
}

// Len returns the storage size.
func (d *Line) Len() int {
	return len(d.buffer)
}

// At reads the sample at offset i from the head.
func (d *Line) At(i int) float64 {
	return d.buffer[(d.head+i)&d.mask]
}

// Set overwrites the sample at offset i from the head.
func (d *Line) Set(i int, v float64) {
	d.buffer[(d.head+i)&d.mask] = v
}

// Add accumulates v into the sample at offset i from the head.
func (d *Line) Add(i int, v float64) {
	d.buffer[(d.head+i)&d.mask] += v
}

// Advance moves the head forward by n samples.
func (d *Line) Advance(n int) {
	d.head = (d.head + n) & d.mask
}

// Reset clears line state.
func (d *Line) Reset() {
	clear(d.buffer)
	d.head = 0
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
