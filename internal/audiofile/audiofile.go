package audiofile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stretch/dsp/mixer"
	"github.com/cwbudde/algo-stretch/dsp/resample"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a decoder.
	ErrUnsupportedFormat = errors.New("audiofile: unsupported format")
	// ErrDecode is returned when a file cannot be decoded.
	ErrDecode = errors.New("audiofile: decode failed")
	// ErrInvalidClip is returned for channel counts or sample rates below one.
	ErrInvalidClip = errors.New("audiofile: invalid clip")
)

// Clip is decoded audio with interleaved samples in [-1, 1].
type Clip struct {
	Samples    []float64
	Channels   int
	SampleRate int
}

// Frames returns the number of whole frames in the clip.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}

	return len(c.Samples) / c.Channels
}

// Load decodes the file at path, choosing the decoder by extension.
func Load(path string) (*Clip, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var decode func(io.ReadSeeker) (*Clip, error)
	switch ext {
	case ".wav", ".wave":
		decode = decodeWAV
	case ".mp3":
		decode = decodeMP3
	case ".ogg", ".oga":
		decode = decodeVorbis
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audiofile: %w", err)
	}
	defer f.Close()

	clip, err := decode(f)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
			"error":    err.Error(),
		}).Warn("Failed to decode audio file")

		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Load",
		"path":        path,
		"format":      strings.TrimPrefix(ext, "."),
		"channels":    clip.Channels,
		"sample_rate": clip.SampleRate,
		"frames":      clip.Frames(),
	}).Debug("Decoded audio file")

	return clip, nil
}

// Remix returns a copy of the clip with channels channels. Mixing down to
// mono averages all channels; a mono clip is copied to every channel;
// otherwise extra output channels repeat the input channels in order.
func (c *Clip) Remix(channels int) (*Clip, error) {
	if channels <= 0 || c.Channels <= 0 {
		return nil, fmt.Errorf("%w: remix %d -> %d channels", ErrInvalidClip, c.Channels, channels)
	}

	frames := c.Frames()
	out := make([]float64, frames*channels)

	switch {
	case channels == c.Channels:
		copy(out, c.Samples[:frames*channels])
	case channels == 1:
		scale := 1 / float64(c.Channels)
		for i := range frames {
			sum := 0.0
			for _, v := range c.Samples[i*c.Channels : (i+1)*c.Channels] {
				sum += v
			}

			out[i] = sum * scale
		}
	default:
		for i := range frames {
			for ch := range channels {
				out[i*channels+ch] = c.Samples[i*c.Channels+ch%c.Channels]
			}
		}
	}

	return &Clip{Samples: out, Channels: channels, SampleRate: c.SampleRate}, nil
}

// Resample returns the clip converted to sampleRate. A clip already at
// that rate is returned as is.
func (c *Clip) Resample(sampleRate int) (*Clip, error) {
	if sampleRate <= 0 || c.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: resample %d -> %d Hz", ErrInvalidClip, c.SampleRate, sampleRate)
	}

	if sampleRate == c.SampleRate {
		return c, nil
	}

	samples, err := resample.Interleaved(c.Samples, c.Channels, float64(c.SampleRate), float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("audiofile: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Resample",
		"from":     c.SampleRate,
		"to":       sampleRate,
	}).Debug("Resampled clip")

	return &Clip{Samples: samples, Channels: c.Channels, SampleRate: sampleRate}, nil
}

// Source returns a mixer source reading the clip's samples.
func (c *Clip) Source() (*mixer.Clip, error) {
	return mixer.NewClip(c.Samples, c.Channels)
}
