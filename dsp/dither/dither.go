package dither

import "fmt"

// Type selects the probability distribution of the dither noise.
type Type int

const (
	// TypeNone applies no dither (plain truncation).
	TypeNone Type = iota
	// TypeRectangular uses a uniform PDF over ±1 step.
	TypeRectangular
	// TypeTriangular uses a triangular PDF (TPDF), the usual choice.
	TypeTriangular

	typeCount
)

var typeNames = [typeCount]string{"None", "Rectangular", "Triangular"}

// String returns the name of the dither type.
func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}

	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is a known dither type.
func (t Type) Valid() bool {
	return t >= 0 && t < typeCount
}
