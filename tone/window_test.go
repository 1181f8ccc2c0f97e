package tone

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_UnitEnergy(t *testing.T) {
	for _, n := range []int{16, 128, 1024, 4096} {
		w := NewWindow(n)
		require.Len(t, w, n)

		sum := 0.0
		for _, v := range w {
			sum += v * v
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "n=%d", n)

		// raised cosine: symmetric, smallest at the edges
		assert.InDelta(t, w[0], w[n-1], 1e-12)
		assert.Less(t, w[0], w[n/2])
	}
}

func TestWindow_InvalidLength(t *testing.T) {
	assert.Panics(t, func() { NewWindow(0) })
	assert.Panics(t, func() { NewWindow(-8) })
}

func TestWindow_Apply(t *testing.T) {
	w := NewWindow(16)
	src := make([]complex64, 16)
	for i := range src {
		src[i] = complex(1, -1)
	}

	dst := make([]complex128, 16)
	w.Apply(dst, src)

	for i := range dst {
		assert.InDelta(t, w[i], real(dst[i]), 1e-6)
		assert.InDelta(t, -w[i], imag(dst[i]), 1e-6)
	}

	assert.Panics(t, func() { w.Apply(dst[:8], src) })
}

func TestEstimator_ToneAtBinCentre(t *testing.T) {
	const n, rate = 1024, 8000

	w := NewWindow(n)
	frame := make([]complex128, n)
	w.Apply(frame, toneSamples(500, 1, rate, n, 0))

	psd := make([]float64, n)
	NewEstimator(n).Analyze(frame, psd)

	best := 0
	for i := range psd {
		if psd[i] > psd[best] {
			best = i
		}
	}

	assert.Equal(t, 576, best)
	assert.Equal(t, 500.0, BinFrequency(best, n, rate))
	assert.InDelta(t, -1.35, psd[best], 0.2)

	// the negative frequency side stays empty for a complex tone
	assert.Less(t, psd[n/2-64], psd[best]-60)
}

func TestEstimator_SilenceAtFloor(t *testing.T) {
	psd := make([]float64, 64)
	NewEstimator(64).Analyze(make([]complex128, 64), psd)

	for _, v := range psd {
		assert.Equal(t, Floor, v)
	}
}

// toneSamples returns n samples of a complex exponential at freq Hz,
// starting at sample offset.
func toneSamples(freq, amp float64, rate, n, offset int) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		ph := 2 * math.Pi * freq * float64(offset+i) / float64(rate)
		out[i] = complex64(cmplx.Rect(amp, ph))
	}
	return out
}
