package window

import (
	"fmt"
	"math"
)

// overlapFloor guards positions where every overlapping frame is zero.
const overlapFloor = 1e-12

// OverlapAddGain returns, for each phase position in [0, hop), the summed
// squared window value over all frames overlapping that position when frames
// are spaced hop samples apart.
//
// A window used for both analysis and synthesis reconstructs its input
// exactly when every entry equals 1.
func OverlapAddGain(coeffs []float64, hop int) ([]float64, error) {
	if hop <= 0 || hop > len(coeffs) {
		return nil, fmt.Errorf("%w: %d (window length %d)", ErrInvalidHop, hop, len(coeffs))
	}

	gain := make([]float64, hop)
	for i, c := range coeffs {
		gain[i%hop] += c * c
	}

	return gain, nil
}

// NormalizeOverlapAdd scales coeffs in place so that analysis and synthesis
// with the same window sum to unity gain at the given hop.
//
// Positions covered only by zero-valued coefficients are left unchanged.
func NormalizeOverlapAdd(coeffs []float64, hop int) error {
	gain, err := OverlapAddGain(coeffs, hop)
	if err != nil {
		return err
	}

	for i := range gain {
		if gain[i] > overlapFloor {
			gain[i] = 1 / math.Sqrt(gain[i])
		} else {
			gain[i] = 1
		}
	}

	for i := range coeffs {
		coeffs[i] *= gain[i%hop]
	}

	return nil
}
