package delay

import "fmt"

// MultiBuffer is a set of equally sized Lines that move together, one per
// channel.
type MultiBuffer struct {
	lines []*Line
}

// NewMultiBuffer returns a buffer of channels lines, each holding at least
// length samples.
func NewMultiBuffer(channels, length int) (*MultiBuffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channels=%d", ErrInvalidLength, channels)
	}

	lines := make([]*Line, channels)
	for c := range lines {
		line, err := New(length)
		if err != nil {
			return nil, err
		}

		lines[c] = line
	}

	return &MultiBuffer{lines: lines}, nil
}

// Channels returns the number of lines.
func (m *MultiBuffer) Channels() int { return len(m.lines) }

// Len returns the per-channel storage size.
func (m *MultiBuffer) Len() int { return m.lines[0].Len() }

// Channel returns the line for channel c.
func (m *MultiBuffer) Channel(c int) *Line { return m.lines[c] }

// At reads channel c at offset i from the shared head.
func (m *MultiBuffer) At(c, i int) float64 { return m.lines[c].At(i) }

// Set overwrites channel c at offset i from the shared head.
func (m *MultiBuffer) Set(c, i int, v float64) { m.lines[c].Set(i, v) }

// Add accumulates into channel c at offset i from the shared head.
func (m *MultiBuffer) Add(c, i int, v float64) { m.lines[c].Add(i, v) }

// Advance moves every channel forward by n samples.
func (m *MultiBuffer) Advance(n int) {
	for _, l := range m.lines {
		l.Advance(n)
	}
}

// Reset zeroes every channel and rewinds the head.
func (m *MultiBuffer) Reset() {
	for _, l := range m.lines {
		l.Reset()
	}
}
