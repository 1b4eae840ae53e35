// Package stretch implements a real-time phase-vocoder time stretcher and
// pitch shifter.
//
// A Stretcher consumes interleaved multi-channel audio and produces output of
// an independently chosen length: the ratio between the input and output
// sample counts of each Process call is the instantaneous time-stretch
// ratio. Pitch is preserved unless a transpose factor or a custom frequency
// map is set.
//
// Per analysis frame the engine
//
//   - predicts each bin's output phase from the previous output and the
//     phase advance measured between the current and previous input frames,
//   - refines that prediction from neighbouring bins of the loudest channel
//     (vertical phase locking), one bin and about fftSize/interval bins away,
//   - locks every other channel to the loudest one through the inter-channel
//     phase difference of the input, which keeps the stereo image intact.
//
// For pitch shifting the summed energy is smoothed, every run of bins above
// the envelope becomes one peak, and peaks are moved through the frequency
// map with a smooth-step interpolation in between.
//
// Above a stretch ratio of two the vertical phase step is randomised per bin
// to avoid a metallic, phasey sound. The generator is seeded per instance
// (see WithSeed) and re-seeded by Reset, so output is reproducible.
//
// Silent input is passed straight through once enough silence has been seen.
// A Stretcher never allocates in Process, Flush or Seek and is not safe for
// concurrent use.
package stretch
