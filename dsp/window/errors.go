package window

import (
	"errors"
	"fmt"
)

var (
	errMismatchedLength = errors.New("samples and coefficients must have same length")

	// ErrInvalidHop is returned when an overlap-add hop is outside [1, len(window)].
	ErrInvalidHop = errors.New("window: invalid overlap-add hop")
)

func validateLength(size int) error {
	if size <= 0 {
		return fmt.Errorf("window size must be > 0: %d", size)
	}
	return nil
}
