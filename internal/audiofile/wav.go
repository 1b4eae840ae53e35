package audiofile

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stretch/dsp/dither"
)

const wavFormatPCM = 1

func decodeWAV(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrDecode)
	}

	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV audio format %d", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrDecode, bitDepth)
	}

	scale := 1 / float64(int64(1)<<(bitDepth-1))
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v-offset) * scale
	}

	return &Clip{
		Samples:    samples,
		Channels:   buf.Format.NumChannels,
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// WriteWAV writes interleaved samples as TPDF-dithered 16-bit PCM.
// Samples outside [-1, 1] are clipped.
func WriteWAV(path string, samples []float64, channels, sampleRate int) error {
	if channels <= 0 || sampleRate <= 0 {
		return fmt.Errorf("%w: channels=%d sampleRate=%d", ErrInvalidClip, channels, sampleRate)
	}

	frames := len(samples) / channels
	data := make([]int, frames*channels)

	q, err := dither.NewQuantizer(channels, dither.WithSeed(uint64(frames)))
	if err != nil {
		return fmt.Errorf("audiofile: %w", err)
	}

	if err := q.Quantize(data, samples[:len(data)]); err != nil {
		return fmt.Errorf("audiofile: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audiofile: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, wavFormatPCM)

	err = enc.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err == nil {
		err = enc.Close()
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("audiofile: write %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "WriteWAV",
		"path":        path,
		"channels":    channels,
		"sample_rate": sampleRate,
		"frames":      frames,
	}).Debug("Wrote WAV file")

	return nil
}
