package spectrum

import (
	"errors"
	"fmt"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

var (
	// ErrLengthMismatch is returned when destination and scratch slices are
	// shorter than the input spectrum.
	ErrLengthMismatch = errors.New("spectrum: length mismatch")
	// ErrEmptyInput is returned when an analysis helper receives no samples.
	ErrEmptyInput = errors.New("spectrum: empty input")
)

type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n:need], buf
}

// PowerInto writes |X[k]|^2 for each bin of in into dst, using re and im as
// unpacking scratch. All slices must hold at least len(in) elements.
//
// This is the zero-allocation path for hot loops that own their scratch.
func PowerInto(dst []float64, in []complex128, re, im []float64) error {
	n := len(in)
	if len(dst) < n || len(re) < n || len(im) < n {
		return fmt.Errorf("%w: bins=%d dst=%d re=%d im=%d", ErrLengthMismatch, n, len(dst), len(re), len(im))
	}

	re, im = re[:n], im[:n]
	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Power(dst[:n], re, im)
	return nil
}

// Power returns |X[k]|^2 for each complex spectrum bin.
//
// Scratch buffers are pooled internally, so in steady state this allocates
// only the output slice.
func Power(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	re, im, buf := getScratch(len(in))
	_ = PowerInto(out, in, re, im)
	scratchPool.Put(buf)
	return out
}

// DominantBin returns the index of the largest value in power at or above
// from. It returns -1 when no such index exists.
func DominantBin(power []float64, from int) int {
	best := -1
	for k := max(from, 0); k < len(power); k++ {
		if best < 0 || power[k] > power[best] {
			best = k
		}
	}
	return best
}

// DominantFrequency returns the frequency in Hz of the strongest non-DC bin
// of the full-length transform of signal. The resolution is
// sampleRate/len(signal).
func DominantFrequency(signal []float64, sampleRate float64) (float64, error) {
	if len(signal) == 0 {
		return 0, ErrEmptyInput
	}

	plan, err := algofft.NewPlan64(len(signal))
	if err != nil {
		return 0, fmt.Errorf("spectrum: failed to create FFT plan: %w", err)
	}

	in := make([]complex128, len(signal))
	for i, v := range signal {
		in[i] = complex(v, 0)
	}

	out := make([]complex128, len(signal))
	if err := plan.Forward(out, in); err != nil {
		return 0, fmt.Errorf("spectrum: forward FFT failed: %w", err)
	}

	half := len(signal)/2 + 1
	bin := DominantBin(Power(out[:half]), 1)
	if bin < 0 {
		return 0, nil
	}

	return sampleRate * float64(bin) / float64(len(signal)), nil
}
