package dither

// firShaper subtracts FIR-weighted past quantization errors from the
// input, keeping the error history in a ring.
type firShaper struct {
	coeffs  []float64
	history []float64
	pos     int
}

func newFIRShaper(coeffs []float64) *firShaper {
	return &firShaper{
		coeffs:  coeffs,
		history: make([]float64, len(coeffs)),
	}
}

func (s *firShaper) shape(input float64) float64 {
	order := len(s.coeffs)
	if order == 0 {
		return input
	}

	for i, c := range s.coeffs {
		input -= c * s.history[(order+s.pos-i)%order]
	}

	s.pos = (s.pos + 1) % order

	return input
}

// record stores the error of the sample last passed to shape.
func (s *firShaper) record(err float64) {
	if len(s.coeffs) == 0 {
		return
	}

	s.history[s.pos] = err
}

func (s *firShaper) reset() {
	clear(s.history)
	s.pos = 0
}
