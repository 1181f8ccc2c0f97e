package tone

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"
)

// Window is an energy normalized Hamming taper: the sum of the squared
// coefficients is 1, so windowing keeps the average power of the frame.
type Window []float64

// NewWindow builds the taper for frames of n samples.
func NewWindow(n int) Window {
	if n <= 0 {
		panic(fmt.Sprintf("tone: window length %d", n))
	}
	if n == 1 {
		return Window{1}
	}

	w := window.Hamming(n)

	g := 0.0
	for _, v := range w {
		g += v * v
	}

	g = 1 / math.Sqrt(g)
	for i := range w {
		w[i] *= g
	}

	return Window(w)
}

// Apply multiplies src by the window into dst. Both must have the window length.
func (w Window) Apply(dst []complex128, src []complex64) {
	if len(dst) != len(w) || len(src) != len(w) {
		panic(fmt.Sprintf("tone: window %d applied to %d -> %d samples", len(w), len(src), len(dst)))
	}

	for i, s := range src {
		dst[i] = complex128(s) * complex(w[i], 0)
	}
}
