package buffer_test

import (
	"fmt"

	"github.com/cwbudde/algo-stretch/dsp/buffer"
)

func ExampleFrames() {
	b, _ := buffer.New(2, 2)
	copy(b.Samples(), []float64{1, -1, 2, -2})

	b.Append([]float64{3, -3})
	b.Resize(4)

	fmt.Println(b.Samples())
	fmt.Println(b.Len(), b.Channel(1, nil))

	// Output:
	// [1 -1 2 -2 3 -3 0 0]
	// 4 [-1 -2 -3 0]
}
