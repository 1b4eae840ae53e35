package dither

import (
	"math"
	"testing"
)

func TestNewQuantizerValidation(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		opts     []Option
	}{
		{"zero channels", 0, nil},
		{"bit depth too small", 1, []Option{WithBitDepth(1)}},
		{"bit depth too large", 1, []Option{WithBitDepth(33)}},
		{"invalid type", 1, []Option{WithType(Type(9))}},
		{"negative amplitude", 1, []Option{WithAmplitude(-1)}},
		{"NaN amplitude", 1, []Option{WithAmplitude(math.NaN())}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewQuantizer(tt.channels, tt.opts...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestQuantizeWithoutDither(t *testing.T) {
	q, err := NewQuantizer(1, WithType(TypeNone))
	if err != nil {
		t.Fatal(err)
	}

	if lo, hi := q.Limits(); lo != -32768 || hi != 32767 {
		t.Fatalf("limits = [%d, %d], want [-32768, 32767]", lo, hi)
	}

	src := []float64{0, 0.5, 1, -1, 2, -2, math.NaN(), math.Inf(1)}
	want := []int{0, 16383, 32767, -32768, 32767, -32768, 0, 0}

	got := make([]int, len(src))
	if err := q.Quantize(got, src); err != nil {
		t.Fatal(err)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}

	if err := q.Quantize(got[:2], src); err == nil {
		t.Fatal("expected error for short dst")
	}
}

func TestTriangularDitherMean(t *testing.T) {
	q, err := NewQuantizer(1, WithSeed(11))
	if err != nil {
		t.Fatal(err)
	}

	const n = 100000
	src := make([]float64, n)
	for i := range src {
		src[i] = 0.3 / q.bitMul
	}

	got := make([]int, n)
	if err := q.Quantize(got, src); err != nil {
		t.Fatal(err)
	}

	sum := 0
	for _, v := range got {
		if v < -1 || v > 1 {
			t.Fatalf("dithered value %d outside [-1, 1]", v)
		}

		sum += v
	}

	// Flooring a TPDF-dithered value is biased by half a step.
	if mean := float64(sum) / n; math.Abs(mean-(0.3-0.5)) > 0.01 {
		t.Fatalf("mean = %v, want -0.2", mean)
	}
}

func TestSeedReproducible(t *testing.T) {
	src := make([]float64, 256)
	for i := range src {
		src[i] = math.Sin(float64(i) * 0.1)
	}

	run := func() []int {
		q, err := NewQuantizer(2, WithSeed(5), WithType(TypeRectangular), WithBitDepth(8))
		if err != nil {
			t.Fatal(err)
		}

		out := make([]int, len(src))
		if err := q.Quantize(out, src); err != nil {
			t.Fatal(err)
		}

		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestShapingKeepsDCPerChannel(t *testing.T) {
	q, err := NewQuantizer(2, WithType(TypeNone), WithShaping([]float64{1}))
	if err != nil {
		t.Fatal(err)
	}

	const n = 1000
	src := make([]float64, 2*n)
	for i := range n {
		src[2*i] = 0.3 / q.bitMul
		src[2*i+1] = -0.7 / q.bitMul
	}

	got := make([]int, len(src))
	if err := q.Quantize(got, src); err != nil {
		t.Fatal(err)
	}

	var left, right int
	for i := range n {
		left += got[2*i]
		right += got[2*i+1]
	}

	if math.Abs(float64(left)-0.3*n) > 1 {
		t.Fatalf("left sum = %d, want about %v", left, 0.3*n)
	}

	if math.Abs(float64(right)+0.7*n) > 1 {
		t.Fatalf("right sum = %d, want about %v", right, -0.7*n)
	}

	plain, err := NewQuantizer(1, WithType(TypeNone))
	if err != nil {
		t.Fatal(err)
	}

	mono := make([]float64, n)
	for i := range mono {
		mono[i] = 0.3 / plain.bitMul
	}

	flat := make([]int, n)
	if err := plain.Quantize(flat, mono); err != nil {
		t.Fatal(err)
	}

	for i, v := range flat {
		if v != 0 {
			t.Fatalf("unshaped sample %d = %d, want 0", i, v)
		}
	}

	q.Reset()
	for _, s := range q.shapers {
		for _, h := range s.history {
			if h != 0 {
				t.Fatal("Reset left shaper history")
			}
		}
	}
}

func TestTypeString(t *testing.T) {
	if TypeTriangular.String() != "Triangular" {
		t.Fatalf("String() = %q", TypeTriangular.String())
	}

	if Type(7).String() != "Type(7)" {
		t.Fatalf("String() = %q", Type(7).String())
	}
}
