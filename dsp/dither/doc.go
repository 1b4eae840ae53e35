// Package dither quantizes floating-point audio to integer PCM with
// rectangular or triangular dither and optional error-feedback noise
// shaping.
package dither
