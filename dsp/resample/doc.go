// Package resample converts sample rates with a polyphase FIR whose
// prototype is a Kaiser-windowed sinc.
//
// Quality modes trade taps per phase for stopband attenuation:
//
//	mode            taps/phase   Kaiser beta
//	QualityFast     16           5.0
//	QualityBalanced 32           7.5
//	QualityBest     64           9.0
//
// Resampler streams one channel; Interleaved converts a whole
// interleaved buffer with the filter delay removed, which is how decoded
// files are brought to a common rate before mixing.
package resample
