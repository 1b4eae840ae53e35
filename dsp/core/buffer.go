package core

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath"
)

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	clear(buf)
}

// MixInto accumulates gain*src into dst using scratch as the scaled
// temporary. dst and scratch must hold at least len(src) samples.
func MixInto(dst, src, scratch []float64, gain float64) error {
	n := len(src)
	if len(dst) < n || len(scratch) < n {
		return fmt.Errorf("core: mix length mismatch: src=%d dst=%d scratch=%d", n, len(dst), len(scratch))
	}

	if gain == 1 {
		vecmath.AddBlockInPlace(dst[:n], src)
		return nil
	}

	vecmath.ScaleBlock(scratch[:n], src, gain)
	vecmath.AddBlockInPlace(dst[:n], scratch[:n])

	return nil
}

// Energy returns the sum of squares of buf.
func Energy(buf []float64) float64 {
	sum := 0.0
	for _, v := range buf {
		sum += v * v
	}

	return sum
}

// Peak returns the largest absolute value in buf.
func Peak(buf []float64) float64 {
	peak := 0.0
	for _, v := range buf {
		if v > peak {
			peak = v
		} else if -v > peak {
			peak = -v
		}
	}

	return peak
}
