// Package delay provides circular sample buffers addressed relative to a
// moving head, used as input history and overlap-add accumulators.
package delay
