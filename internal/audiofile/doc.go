// Package audiofile decodes WAV, MP3 and Ogg Vorbis files into interleaved
// float64 clips and writes 16-bit PCM WAV files.
package audiofile
