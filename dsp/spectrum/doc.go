// Package spectrum provides spectrum-domain helpers used around the
// phase vocoder: power spectra of complex bins, dominant-bin search and a
// single-tone Goertzel meter.
package spectrum
