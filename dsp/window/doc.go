// Package window generates analysis/synthesis windows for short-time
// transforms and normalises them for perfect overlap-add reconstruction.
package window
