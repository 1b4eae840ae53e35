// Package buffer provides Frames, a reusable interleaved multi-channel
// sample buffer. DSP functions accept raw []float64 slices; Frames helps
// callers keep scratch and output storage allocation-free in hot paths.
package buffer
