package stretch_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-stretch/dsp/stretch"
)

func ExampleStretcher_PresetDefault() {
	s := stretch.New(stretch.WithSeed(1))
	if err := s.PresetDefault(2, 48000); err != nil {
		panic(err)
	}

	fmt.Println(s.BlockSamples(), s.IntervalSamples(), s.FFTSize(), s.Bands())
	fmt.Println(s.InputLatency(), s.OutputLatency())
	// Output:
	// 5760 1440 8192 4097
	// 2880 2880
}

func ExampleStretcher_Process() {
	s := stretch.New(stretch.WithSeed(1))
	if err := s.Configure(1, 1024, 256); err != nil {
		panic(err)
	}

	if err := s.SetTransposeSemitones(12, 0); err != nil {
		panic(err)
	}

	in := make([]float64, 256)
	out := make([]float64, 384)

	// Half again as long, one octave up.
	for block := 0; block < 16; block++ {
		for i := range in {
			n := block*len(in) + i
			in[i] = 0.5 * math.Sin(2*math.Pi*440*float64(n)/48000)
		}

		if err := s.Process(in, len(in), out, len(out)); err != nil {
			panic(err)
		}
	}

	fmt.Println(len(out), s.Flushed())
	// Output:
	// 384 false
}
