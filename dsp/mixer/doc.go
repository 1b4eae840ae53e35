// Package mixer plays a set of interleaved sources in sync, summing them
// with per-source gain and routing the sum through a time/pitch stretcher
// whenever the playback rate differs from 1.
//
// The longest source is the timeline: its cursor defines the playback
// position and its end finishes playback. A Mixer is safe for concurrent
// use; Render is meant to be called from an audio callback while control
// methods run on other goroutines.
package mixer
