// Command stretch changes the speed and pitch of audio files.
//
// Usage:
//
//	stretch [flags] input...
//
// A generated sine tone may be added with -tone, or used on its own.
// All inputs are mixed, converted to the channel count and sample rate of
// the first input, played through the stretcher and written as 16-bit WAV.
//
// Examples:
//
//	stretch -rate 0.5 -o slow.wav song.mp3
//	stretch -semitones -3 -tonality 8000 -o lower.wav voice.wav
//	stretch -rate 1.25 -seek 30s -o stems.wav drums.ogg bass.ogg
//	stretch -tone 440 -tone-length 2s -semitones 7 -normalize 0.9 -o fifth.wav
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stretch/dsp/buffer"
	"github.com/cwbudde/algo-stretch/dsp/core"
	"github.com/cwbudde/algo-stretch/dsp/mixer"
	"github.com/cwbudde/algo-stretch/dsp/signal"
	"github.com/cwbudde/algo-stretch/internal/audiofile"
)

type options struct {
	rate       float64
	semitones  float64
	tonalityHz float64
	preset     string
	seek       time.Duration
	block      int
	seed       int64
	output     string
	verbose    bool
	toneHz     float64
	toneLength time.Duration
	normalize  float64
	gainDB     float64
	inputs     []string
}

// Layout used for a tone when there are no input files.
const (
	toneChannels   = 2
	toneSampleRate = 48000
	toneAmplitude  = 0.5
)

func main() {
	err := run(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	if err != nil {
		logrus.WithError(err).Fatal("stretch failed")
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("stretch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Float64Var(&opts.rate, "rate", 1, "playback rate; 2 plays twice as fast")
	fs.Float64Var(&opts.semitones, "semitones", 0, "pitch shift in semitones")
	fs.Float64Var(&opts.tonalityHz, "tonality", 0, "tonality limit in Hz; 0 shifts the whole spectrum")
	fs.StringVar(&opts.preset, "preset", "default", "stretch preset: default or cheaper")
	fs.DurationVar(&opts.seek, "seek", 0, "start position, e.g. 1.5s")
	fs.IntVar(&opts.block, "block", 512, "output frames per render call")
	fs.Int64Var(&opts.seed, "seed", 0, "seed for randomised phases; 0 uses the clock")
	fs.StringVar(&opts.output, "o", "out.wav", "output WAV file")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	fs.Float64Var(&opts.toneHz, "tone", 0, "add a sine tone at this frequency in Hz")
	fs.DurationVar(&opts.toneLength, "tone-length", 2*time.Second, "length of the -tone input")
	fs.Float64Var(&opts.gainDB, "gain", 0, "gain in dB applied to every input")
	fs.Float64Var(&opts.normalize, "normalize", 0, "scale the output to this peak; 0 keeps the level")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: stretch [flags] input...\n\n")
		fmt.Fprintf(stderr, "Mixes WAV, MP3 and Ogg Vorbis inputs at a new speed and pitch.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.inputs = fs.Args()
	if len(opts.inputs) == 0 && opts.toneHz <= 0 {
		fs.Usage()
		return opts, errors.New("no input files")
	}

	if opts.toneHz < 0 || (opts.toneHz > 0 && opts.toneLength <= 0) {
		return opts, fmt.Errorf("invalid tone %v Hz for %v", opts.toneHz, opts.toneLength)
	}

	if opts.normalize < 0 {
		return opts, fmt.Errorf("normalize peak must not be negative, got %v", opts.normalize)
	}

	if opts.block <= 0 {
		return opts, fmt.Errorf("block must be positive, got %d", opts.block)
	}

	if int(float64(opts.block)*opts.rate) <= 0 {
		return opts, fmt.Errorf("rate %v reads no input per %d-frame block", opts.rate, opts.block)
	}

	return opts, nil
}

func run(args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	preset, err := mixer.ParsePreset(opts.preset)
	if err != nil {
		return err
	}

	clips, err := loadInputs(opts.inputs)
	if err != nil {
		return err
	}

	if opts.toneHz > 0 {
		tone, err := toneClip(clips, opts.toneHz, opts.toneLength)
		if err != nil {
			return err
		}

		clips = append(clips, tone)
	}

	channels := clips[0].Channels
	sampleRate := clips[0].SampleRate

	sources := make([]mixer.Source, len(clips))
	for i, clip := range clips {
		if sources[i], err = clip.Source(); err != nil {
			return err
		}
	}

	m, err := mixer.New(mixer.Config{
		Channels:       channels,
		SampleRate:     sampleRate,
		MaxBlockFrames: max(4096, int(float64(opts.block)*opts.rate)+1),
		Preset:         preset,
		Seed:           opts.seed,
		Logger:         logrus.WithField("component", "mixer"),
	}, sources...)
	if err != nil {
		return err
	}
	defer m.Close()

	if opts.gainDB != 0 {
		for i := range sources {
			if err := m.SetVolume(i, core.DBToLinear(opts.gainDB)); err != nil {
				return err
			}
		}
	}

	if opts.semitones != 0 {
		if err := m.SetTransposeSemitones(opts.semitones, opts.tonalityHz/float64(sampleRate)); err != nil {
			return err
		}
	}

	if err := m.SetPlaybackRate(opts.rate); err != nil {
		return err
	}

	if opts.seek > 0 {
		if err := m.SeekFrame(int64(opts.seek.Seconds() * float64(sampleRate))); err != nil {
			return err
		}
	}

	if err := m.Start(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "run",
		"inputs":    len(clips),
		"channels":  channels,
		"rate":      opts.rate,
		"semitones": opts.semitones,
		"preset":    preset.String(),
		"duration":  m.Duration().String(),
	}).Info("Rendering")

	start := time.Now()

	out, err := render(m, channels, opts.block)
	if err != nil {
		return err
	}

	if opts.normalize > 0 && len(out) > 0 {
		if out, err = signal.Normalize(out, opts.normalize); err != nil {
			return err
		}
	}

	if err := audiofile.WriteWAV(opts.output, out, channels, sampleRate); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "run",
		"output":   opts.output,
		"frames":   len(out) / channels,
		"elapsed":  time.Since(start).String(),
	}).Info("Wrote output")

	return nil
}

// loadInputs decodes every input and converts it to the layout of the
// first one.
func loadInputs(paths []string) ([]*audiofile.Clip, error) {
	clips := make([]*audiofile.Clip, len(paths))

	for i, path := range paths {
		clip, err := audiofile.Load(path)
		if err != nil {
			return nil, err
		}

		if i > 0 {
			if clip, err = clip.Remix(clips[0].Channels); err != nil {
				return nil, err
			}

			if clip, err = clip.Resample(clips[0].SampleRate); err != nil {
				return nil, err
			}
		}

		clips[i] = clip
	}

	return clips, nil
}

// toneClip generates a sine clip in the layout of the first clip, or in a
// stereo 48 kHz layout when there is none.
func toneClip(clips []*audiofile.Clip, freqHz float64, length time.Duration) (*audiofile.Clip, error) {
	channels, sampleRate := toneChannels, toneSampleRate
	if len(clips) > 0 {
		channels, sampleRate = clips[0].Channels, clips[0].SampleRate
	}

	gen, err := signal.NewGenerator(float64(sampleRate), signal.WithChannels(channels))
	if err != nil {
		return nil, err
	}

	samples, err := gen.Sine(freqHz, toneAmplitude, int(length.Seconds()*float64(sampleRate)))
	if err != nil {
		return nil, err
	}

	return &audiofile.Clip{Samples: samples, Channels: channels, SampleRate: sampleRate}, nil
}

// render pulls blocks from m until playback finishes.
func render(m *mixer.Mixer, channels, block int) ([]float64, error) {
	out, err := buffer.New(channels, 0)
	if err != nil {
		return nil, err
	}

	buf := make([]float64, block*channels)
	for m.State() == mixer.StatePlaying {
		if err := m.Render(buf, block); err != nil {
			return nil, err
		}

		out.Append(buf)
	}

	return out.Samples(), nil
}
