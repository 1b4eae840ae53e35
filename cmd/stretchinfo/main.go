// Command stretchinfo prints the stretcher geometry of the presets.
//
// Usage:
//
//	stretchinfo [flags] [sample-rate ...]
//
// Without arguments it prints 44100, 48000 and 96000 Hz.
//
// Examples:
//
//	stretchinfo
//	stretchinfo -preset cheaper 22050
//	stretchinfo -channels 1 8000 16000
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/cwbudde/algo-stretch/dsp/mixer"
	"github.com/cwbudde/algo-stretch/dsp/stretch"
)

var defaultRates = []string{"44100", "48000", "96000"}

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("stretchinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)

	channels := fs.Int("channels", 2, "channel count")
	presetName := fs.String("preset", "all", "preset to show: default, cheaper or all")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: stretchinfo [flags] [sample-rate ...]\n\n")
		fmt.Fprintf(stderr, "Prints window, interval, FFT size, bands and latencies of the stretch presets.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	presets := []mixer.Preset{mixer.PresetDefault, mixer.PresetCheaper}
	if *presetName != "all" {
		p, err := mixer.ParsePreset(*presetName)
		if err != nil {
			return err
		}

		presets = []mixer.Preset{p}
	}

	rates := fs.Args()
	if len(rates) == 0 {
		rates = defaultRates
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Preset\tRate [Hz]\tBlock\tInterval\tFFT\tBands\tIn latency\tOut latency\tBlock [ms]\n")
	fmt.Fprintf(tw, "------\t---------\t-----\t--------\t---\t-----\t----------\t-----------\t----------\n")

	for _, p := range presets {
		for _, r := range rates {
			rate, err := strconv.ParseFloat(r, 64)
			if err != nil {
				return fmt.Errorf("sample rate %q: %w", r, err)
			}

			s := stretch.New(stretch.WithSeed(1))
			if p == mixer.PresetCheaper {
				err = s.PresetCheaper(*channels, rate)
			} else {
				err = s.PresetDefault(*channels, rate)
			}

			if err != nil {
				return err
			}

			fmt.Fprintf(tw, "%s\t%g\t%d\t%d\t%d\t%d\t%d\t%d\t%.1f\n",
				p,
				rate,
				s.BlockSamples(),
				s.IntervalSamples(),
				s.FFTSize(),
				s.Bands(),
				s.InputLatency(),
				s.OutputLatency(),
				1000*float64(s.BlockSamples())/rate,
			)
		}
	}

	return tw.Flush()
}
