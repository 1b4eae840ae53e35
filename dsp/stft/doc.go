// Package stft implements a multi-channel short-time Fourier transform with
// lazy overlap-add synthesis.
//
// Analysis fills one half-spectrum per channel. Synthesis is driven by
// EnsureValid: callers ask for an output index and the transform runs a
// callback for every pending frame boundary, inverse-transforms the
// (possibly modified) spectra and overlap-adds them into a circular output
// buffer. The window is scaled so that windowed analysis followed by
// windowed overlap-add reconstructs the input exactly at the configured hop.
package stft
