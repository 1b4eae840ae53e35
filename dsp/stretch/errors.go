package stretch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for channel counts, window or interval
	// sizes, sample rates or frequency-map settings that cannot be used.
	ErrInvalidConfig = errors.New("stretch: invalid configuration")
	// ErrNotConfigured is returned when processing is attempted before
	// Configure succeeded. It wraps ErrInvalidConfig.
	ErrNotConfigured = fmt.Errorf("%w: not configured", ErrInvalidConfig)
	// ErrContractViolation is returned when caller buffers or sample counts
	// do not match the configured channel count.
	ErrContractViolation = errors.New("stretch: buffer contract violation")
)
