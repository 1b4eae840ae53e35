package stretch

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-stretch/dsp/spectrum"
	"github.com/cwbudde/algo-stretch/internal/testutil"
)

const testSampleRate = 44100.0

func newConfigured(t *testing.T, channels, block, interval int) *Stretcher {
	t.Helper()

	s := New(WithSeed(1))
	if err := s.Configure(channels, block, interval); err != nil {
		t.Fatalf("Configure(%d, %d, %d): %v", channels, block, interval, err)
	}

	return s
}

// run feeds input through s in calls of inStep frames, producing outStep
// frames per call, and returns the concatenated output.
func run(t *testing.T, s *Stretcher, input []float64, inStep, outStep int) []float64 {
	t.Helper()

	ch := s.Channels()
	calls := len(input) / ch / inStep
	out := make([]float64, calls*outStep*ch)

	for k := range calls {
		in := input[k*inStep*ch : (k+1)*inStep*ch]
		dst := out[k*outStep*ch : (k+1)*outStep*ch]
		if err := s.Process(in, inStep, dst, outStep); err != nil {
			t.Fatalf("Process call %d: %v", k, err)
		}
	}

	return out
}

func TestLatencyInvariant(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		block    int
		interval int
	}{
		{"power of two", 1, 1024, 256},
		{"odd block", 2, 1023, 255},
		{"half hop", 1, 512, 256},
		{"hop equals block", 1, 64, 64},
		{"large", 6, 5292, 1323},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newConfigured(t, tt.channels, tt.block, tt.interval)

			if got := s.InputLatency() + s.OutputLatency(); got != s.BlockSamples() {
				t.Fatalf("latency sum = %d, want %d", got, s.BlockSamples())
			}

			if s.BlockSamples() != tt.block || s.IntervalSamples() != tt.interval {
				t.Fatalf("block/interval = %d/%d", s.BlockSamples(), s.IntervalSamples())
			}

			if s.Bands() != s.FFTSize()/2+1 || s.FFTSize() < tt.block {
				t.Fatalf("bands=%d fft=%d", s.Bands(), s.FFTSize())
			}
		})
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name            string
		preset          func(*Stretcher, int, float64) error
		block, interval int
	}{
		{"default", (*Stretcher).PresetDefault, 5760, 1440},
		{"cheaper", (*Stretcher).PresetCheaper, 4800, 1920},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithSeed(1))
			if err := tt.preset(s, 2, 48000); err != nil {
				t.Fatal(err)
			}

			if s.BlockSamples() != tt.block || s.IntervalSamples() != tt.interval {
				t.Fatalf("got %d/%d, want %d/%d", s.BlockSamples(), s.IntervalSamples(), tt.block, tt.interval)
			}

			if s.InputLatency()+s.OutputLatency() != s.BlockSamples() {
				t.Fatal("latency invariant broken")
			}

			if s.Channels() != 2 {
				t.Fatalf("channels = %d", s.Channels())
			}
		})
	}
}

// At a ratio of one the analysed window ending at output position n is
// resynthesised starting at n, so the stream comes out one full block late.
func TestIdentityStretchIsDelayedInput(t *testing.T) {
	const (
		block    = 1024
		interval = 256
		frames   = 256 * 48
	)

	s := newConfigured(t, 1, block, interval)
	in := testutil.DeterministicSine(1000, testSampleRate, 0.8, frames)
	out := run(t, s, in, 256, 256)
	testutil.RequireFinite(t, out)

	delay := s.InputLatency() + s.OutputLatency()
	start := 2 * block

	errDB, err := testutil.ErrorDB(out[start:], in[start-delay:frames-delay])
	if err != nil {
		t.Fatal(err)
	}

	if errDB > -60 {
		t.Fatalf("identity error = %.1f dB, want <= -60 dB", errDB)
	}
}

func TestIdentityStretchNoise(t *testing.T) {
	s := newConfigured(t, 2, 512, 128)

	left := testutil.DeterministicNoise(7, 0.5, 128*64)
	right := testutil.DeterministicNoise(8, 0.5, 128*64)
	in := testutil.Interleave(left, right)

	// Uneven but equal call sizes keep the ratio at exactly one.
	out := make([]float64, len(in))
	sizes := []int{100, 28, 300, 84, 512, 1, 511, 1024}
	pos := 0
	for k := 0; pos+sizes[k%len(sizes)] <= len(left); k++ {
		n := sizes[k%len(sizes)]
		if err := s.Process(in[pos*2:(pos+n)*2], n, out[pos*2:(pos+n)*2], n); err != nil {
			t.Fatal(err)
		}
		pos += n
	}

	chans := testutil.Deinterleave(out[:pos*2], 2)
	for c, ref := range [][]float64{left, right} {
		errDB, err := testutil.ErrorDB(chans[c][1024:pos], ref[1024-512:pos-512])
		if err != nil {
			t.Fatal(err)
		}

		if errDB > -60 {
			t.Fatalf("channel %d: error = %.1f dB", c, errDB)
		}
	}
}

func TestSilencePassthroughWraps(t *testing.T) {
	s := newConfigured(t, 2, 1024, 256)

	// Below the noise floor in total, but not zero.
	in := testutil.Interleave(
		testutil.DeterministicSine(1000, testSampleRate, 1e-9, 100),
		testutil.DeterministicNoise(3, 1e-9, 100),
	)
	out := make([]float64, 250*2)

	if err := s.Process(in, 100, out, 250); err != nil {
		t.Fatal(err)
	}

	for i := range 250 {
		for c := range 2 {
			if got, want := out[i*2+c], in[(i%100)*2+c]; got != want {
				t.Fatalf("frame %d channel %d: got %g want %g", i, c, got, want)
			}
		}
	}
}

func TestSilenceWithoutInputWritesZeros(t *testing.T) {
	s := newConfigured(t, 1, 1024, 256)

	out := testutil.DeterministicNoise(1, 1, 50)
	if err := s.Process(nil, 0, out, 50); err != nil {
		t.Fatal(err)
	}

	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %g, want 0", i, v)
		}
	}
}

func TestSilenceBypassNeedsTwoBlocks(t *testing.T) {
	const block = 1024

	s := newConfigured(t, 1, block, 256)

	loud := testutil.DeterministicSine(1000, testSampleRate, 0.5, 4096)
	run(t, s, loud, 256, 256)

	silent := make([]float64, 256)
	out := make([]float64, 256)

	// The first silent call after loud input still carries the synthesis tail.
	if err := s.Process(silent, 256, out, 256); err != nil {
		t.Fatal(err)
	}

	if testutil.RMS(out) == 0 {
		t.Fatal("expected spectral tail after loud input")
	}

	// 2*block silent frames have now been counted after 7 more calls.
	for range 7 {
		if err := s.Process(silent, 256, out, 256); err != nil {
			t.Fatal(err)
		}
	}

	if s.silenceCounter != 2*block {
		t.Fatalf("silence counter = %d, want %d", s.silenceCounter, 2*block)
	}

	for i := range out {
		out[i] = 1
	}

	if err := s.Process(silent, 256, out, 256); err != nil {
		t.Fatal(err)
	}

	for i, v := range out {
		if v != 0 {
			t.Fatalf("bypassed out[%d] = %g, want 0", i, v)
		}
	}

	if s.silenceFirst {
		t.Fatal("bypass should consume the silence transition")
	}
}

func TestTransposeOctaveDoublesFrequency(t *testing.T) {
	const (
		block = 1024
		bin   = 20
	)

	s := newConfigured(t, 1, block, 256)
	if err := s.SetTransposeSemitones(12, 0); err != nil {
		t.Fatal(err)
	}

	in := testutil.BinSine(bin, block, 0.5, 256*48)
	out := run(t, s, in, 256, 256)
	testutil.RequireFinite(t, out)

	f0 := bin * testSampleRate / block

	got, err := spectrum.DominantFrequency(out[4096:8192], testSampleRate)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(got-2*f0) > testSampleRate/4096 {
		t.Fatalf("dominant = %.1f Hz, want %.1f Hz", got, 2*f0)
	}

	level, err := spectrum.ToneLevel(out[4096:8192], 2*f0, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}

	if level < 0.1 {
		t.Fatalf("shifted tone level = %.3f, want audible output", level)
	}
}

func TestTimeStretchKeepsPitch(t *testing.T) {
	const (
		block = 1024
		bin   = 20
	)

	s := newConfigured(t, 1, block, 256)

	in := testutil.BinSine(bin, block, 0.5, 128*96)
	out := run(t, s, in, 128, 256)
	testutil.RequireFinite(t, out)

	if len(out) != 2*len(in) {
		t.Fatalf("output length %d, want %d", len(out), 2*len(in))
	}

	got, err := spectrum.DominantFrequency(out[8192:16384], testSampleRate)
	if err != nil {
		t.Fatal(err)
	}

	want := bin * testSampleRate / block
	if math.Abs(got-want) > testSampleRate/8192 {
		t.Fatalf("dominant = %.1f Hz, want %.1f Hz", got, want)
	}
}

func TestLargeStretchStaysFinite(t *testing.T) {
	s := newConfigured(t, 2, 512, 128)

	in := testutil.Interleave(
		testutil.DeterministicNoise(1, 0.3, 64*40),
		testutil.DeterministicSine(440, testSampleRate, 0.3, 64*40),
	)
	out := run(t, s, in, 64, 512)
	testutil.RequireFinite(t, out)

	if testutil.RMS(out[len(out)/2:]) == 0 {
		t.Fatal("expected non-silent output at ratio 8")
	}
}

func TestStereoChannelsStayLocked(t *testing.T) {
	s := newConfigured(t, 2, 1024, 256)

	left := testutil.DeterministicNoise(11, 0.4, 192*40)
	sine := testutil.DeterministicSine(600, testSampleRate, 0.4, len(left))
	right := make([]float64, len(left))
	for i := range left {
		left[i] += sine[i]
		right[i] = 0.5 * left[i]
	}

	out := run(t, s, testutil.Interleave(left, right), 192, 256)
	chans := testutil.Deinterleave(out, 2)

	for i := range chans[0] {
		if d := math.Abs(chans[1][i] - 0.5*chans[0][i]); d > 1e-5 {
			t.Fatalf("frame %d: right deviates from half of left by %g", i, d)
		}
	}
}

func runResetSequence(t *testing.T, s *Stretcher) []float64 {
	t.Helper()

	in := testutil.Interleave(
		testutil.DeterministicNoise(5, 0.3, 4096),
		testutil.DeterministicSine(330, testSampleRate, 0.5, 4096),
	)

	var out []float64
	pos := 0
	steps := [][2]int{{64, 256}, {256, 200}, {100, 100}, {32, 300}}
	for k := 0; pos+256 <= 4096; k++ {
		step := steps[k%len(steps)]
		dst := make([]float64, step[1]*2)
		if err := s.Process(in[pos*2:(pos+step[0])*2], step[0], dst, step[1]); err != nil {
			t.Fatal(err)
		}
		out = append(out, dst...)
		pos += step[0]
	}

	return out
}

// renderWithSeed seeks to unity-rate history and then stretches noise by
// outStep/inStep.
func renderWithSeed(t *testing.T, seed int64, seekRate float64, inStep, outStep int) []float64 {
	t.Helper()

	s := New(WithSeed(seed))
	if err := s.Configure(1, 1024, 256); err != nil {
		t.Fatal(err)
	}

	hist := testutil.DeterministicNoise(9, 0.5, 1280)
	if err := s.Seek(hist, len(hist), seekRate); err != nil {
		t.Fatal(err)
	}

	return run(t, s, testutil.DeterministicNoise(10, 0.5, inStep*16), inStep, outStep)
}

func TestLargeStretchDependsOnSeed(t *testing.T) {
	// 64 in, 256 out is a time factor of 4, above the clean-stretch limit.
	a := renderWithSeed(t, 1, 0.25, 64, 256)
	b := renderWithSeed(t, 1, 0.25, 64, 256)
	c := renderWithSeed(t, 2, 0.25, 64, 256)
	testutil.RequireFinite(t, a)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed: sample %d differs (%v vs %v)", i, a[i], b[i])
		}
	}

	diff, err := testutil.MaxAbsDiff(a, c)
	if err != nil {
		t.Fatal(err)
	}

	if diff < 1e-6 {
		t.Fatalf("seeds 1 and 2 give the same output (max diff %g)", diff)
	}
}

func TestCleanStretchIgnoresSeed(t *testing.T) {
	tests := []struct {
		name            string
		seekRate        float64
		inStep, outStep int
	}{
		{"unity", 1, 256, 256},
		{"double length", 0.5, 128, 256},
		{"double speed", 2, 512, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := renderWithSeed(t, 1, tt.seekRate, tt.inStep, tt.outStep)
			b := renderWithSeed(t, 77, tt.seekRate, tt.inStep, tt.outStep)

			for i := range a {
				if a[i] != b[i] {
					t.Fatalf("sample %d depends on the seed (%v vs %v)", i, a[i], b[i])
				}
			}
		})
	}
}

func TestResetIsIdempotent(t *testing.T) {
	configure := func() *Stretcher {
		s := New(WithSeed(42))
		if err := s.Configure(2, 512, 128); err != nil {
			t.Fatal(err)
		}
		if err := s.SetTransposeSemitones(5, 0.2); err != nil {
			t.Fatal(err)
		}
		return s
	}

	s := configure()
	first := runResetSequence(t, s)

	s.Reset()
	second := runResetSequence(t, s)

	cold := runResetSequence(t, configure())

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("after Reset: sample %d differs (%v vs %v)", i, first[i], second[i])
		}
		if first[i] != cold[i] {
			t.Fatalf("cold engine: sample %d differs (%v vs %v)", i, first[i], cold[i])
		}
	}
}

func TestFlushDrainsAndEndsPhaseChain(t *testing.T) {
	s := newConfigured(t, 2, 1024, 256)

	in := testutil.Interleave(
		testutil.DeterministicSine(500, testSampleRate, 0.5, 4096),
		testutil.DeterministicSine(700, testSampleRate, 0.5, 4096),
	)
	run(t, s, in, 256, 256)

	if s.Flushed() {
		t.Fatal("Flushed() true after analysing input")
	}

	out := make([]float64, 1500*2)
	for i := range out {
		out[i] = 1
	}

	if err := s.Flush(out, 1500); err != nil {
		t.Fatal(err)
	}

	testutil.RequireFinite(t, out)

	if testutil.RMS(out[:1024*2]) == 0 {
		t.Fatal("flush produced no tail")
	}

	for i := 1024 * 2; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("out[%d] = %g beyond the block, want 0", i, out[i])
		}
	}

	if !s.Flushed() {
		t.Fatal("Flushed() false after Flush")
	}

	for i, bd := range s.store.data {
		if bd.prevInput != 0 || bd.prevOutput != 0 {
			t.Fatalf("band %d keeps phase history after Flush", i)
		}
	}
}

func TestFlushFoldsShortOutput(t *testing.T) {
	const block = 1024

	for _, n := range []int{300, 512, 600} {
		s := newConfigured(t, 2, block, 256)
		in := testutil.Interleave(
			testutil.DeterministicNoise(2, 0.5, 2048),
			testutil.DeterministicNoise(3, 0.5, 2048),
		)
		run(t, s, in, 256, 256)

		pending := make([][]float64, 2)
		for c := range pending {
			pending[c] = make([]float64, block)
			for i := range block {
				pending[c][i] = s.transform.At(c, i)
			}
		}

		out := make([]float64, 2*n)
		if err := s.Flush(out, n); err != nil {
			t.Fatal(err)
		}

		folded := min(n, block-n)
		for c := range pending {
			for i := range n - folded {
				if out[2*i+c] != pending[c][i] {
					t.Fatalf("n=%d ch%d: out[%d] = %g, want %g", n, c, i, out[2*i+c], pending[c][i])
				}
			}

			for i := range folded {
				k := n - 1 - i
				want := pending[c][k] - pending[c][n+i]
				if out[2*k+c] != want {
					t.Fatalf("n=%d ch%d: tail out[%d] = %g, want %g", n, c, k, out[2*k+c], want)
				}
			}
		}

		for c := range pending {
			if pending[c][n] == 0 {
				t.Fatalf("n=%d ch%d: nothing pending past the output", n, c)
			}
		}
	}
}

func TestSeekState(t *testing.T) {
	tests := []struct {
		name       string
		rate       float64
		wantFactor float64
	}{
		{"double speed", 2, 0.5},
		{"unity", 1, 1},
		{"near zero", 0.001, 256},
		{"reverse", -1, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newConfigured(t, 1, 1024, 256)
			hist := testutil.DeterministicSine(440, testSampleRate, 0.5, 2000)

			if err := s.Seek(hist, len(hist), tt.rate); err != nil {
				t.Fatal(err)
			}

			if !s.didSeek || s.seekTimeFactor != tt.wantFactor {
				t.Fatalf("didSeek=%v factor=%v, want factor %v", s.didSeek, s.seekTimeFactor, tt.wantFactor)
			}

			if s.silenceCounter != 0 {
				t.Fatalf("silence counter = %d after loud seek", s.silenceCounter)
			}

			out := make([]float64, 256)
			if err := s.Process(hist[:256], 256, out, 256); err != nil {
				t.Fatal(err)
			}

			if s.didSeek {
				t.Fatal("didSeek not cleared by Process")
			}

			testutil.RequireFinite(t, out)
		})
	}
}

func TestSeekRateShapesFirstFrame(t *testing.T) {
	noise := testutil.DeterministicNoise(4, 0.5, 256*16)

	render := func(rate float64) []float64 {
		s := newConfigured(t, 1, 1024, 256)
		run(t, s, noise[:256*8], 256, 256)

		if err := s.Seek(noise[:256*12], 256*12, rate); err != nil {
			t.Fatal(err)
		}

		return run(t, s, noise[256*12:], 256, 256)
	}

	slow := render(0.25)
	fast := render(2)
	testutil.RequireFinite(t, slow)
	testutil.RequireFinite(t, fast)

	diff, err := testutil.MaxAbsDiff(slow, fast)
	if err != nil {
		t.Fatal(err)
	}

	if diff < 1e-6 {
		t.Fatalf("output after Seek ignores the playback rate (max diff %g)", diff)
	}
}

func TestSeekSilentKeepsCounter(t *testing.T) {
	s := newConfigured(t, 1, 1024, 256)

	if err := s.Seek(make([]float64, 300), 300, 1); err != nil {
		t.Fatal(err)
	}

	if s.silenceCounter != 2*1024 {
		t.Fatalf("silence counter = %d", s.silenceCounter)
	}
}

func TestErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := New()
		err := s.Process(nil, 0, nil, 0)
		if !errors.Is(err, ErrNotConfigured) || !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("Process: got %v", err)
		}
		if !errors.Is(s.Flush(nil, 0), ErrNotConfigured) {
			t.Fatal("Flush before Configure accepted")
		}
		if !errors.Is(s.Seek(nil, 0, 1), ErrNotConfigured) {
			t.Fatal("Seek before Configure accepted")
		}
	})

	t.Run("configure", func(t *testing.T) {
		for _, c := range [][3]int{{0, 1024, 256}, {1, 0, 256}, {1, 1024, 0}, {1, 256, 512}, {-1, 1024, 256}} {
			if err := New().Configure(c[0], c[1], c[2]); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Configure%v: got %v", c, err)
			}
		}

		for _, rate := range []float64{0, -44100, math.NaN(), math.Inf(1), 1} {
			if err := New().PresetDefault(2, rate); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("PresetDefault(rate=%v): got %v", rate, err)
			}
		}
	})

	t.Run("contract", func(t *testing.T) {
		s := newConfigured(t, 2, 256, 64)
		buf := make([]float64, 20)

		cases := []struct {
			name string
			err  error
		}{
			{"negative input", s.Process(buf, -1, buf, 1)},
			{"negative output", s.Process(buf, 1, buf, -1)},
			{"short input", s.Process(buf, 11, buf, 1)},
			{"short output", s.Process(buf, 1, buf, 11)},
			{"short flush", s.Flush(buf, 11)},
			{"short seek", s.Seek(buf, 11, 1)},
			{"nan seek rate", s.Seek(buf, 10, math.NaN())},
		}

		for _, c := range cases {
			if !errors.Is(c.err, ErrContractViolation) {
				t.Fatalf("%s: got %v", c.name, c.err)
			}
		}
	})

	t.Run("frequency map", func(t *testing.T) {
		s := New()
		for _, f := range []float64{0, -2, math.NaN(), math.Inf(1)} {
			if err := s.SetTransposeFactor(f, 0); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("SetTransposeFactor(%v): got %v", f, err)
			}
		}
		if err := s.SetTransposeSemitones(math.NaN(), 0); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("SetTransposeSemitones(NaN): got %v", err)
		}
		if err := s.SetFreqMap(nil); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("SetFreqMap(nil): got %v", err)
		}
	})
}

func BenchmarkProcessStereoDefault(b *testing.B) {
	s := New(WithSeed(1))
	if err := s.PresetDefault(2, testSampleRate); err != nil {
		b.Fatal(err)
	}

	in := testutil.Interleave(
		testutil.DeterministicNoise(1, 0.5, 512),
		testutil.DeterministicNoise(2, 0.5, 512),
	)
	out := make([]float64, 2*600)

	b.ResetTimer()

	for range b.N {
		_ = s.Process(in, 512, out, 600)
	}
}
