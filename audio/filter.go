package audio

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"
)

// Biquad is a second order IIR section.
type Biquad struct {
	a, b [3]float64
	x, y [2]float64
}

func (f *Biquad) Filter(x float64) float64 {
	y := f.b[0]*x + f.b[1]*f.x[0] + f.b[2]*f.x[1] - f.a[1]*f.y[0] - f.a[2]*f.y[1]
	f.x[1], f.x[0] = f.x[0], x
	f.y[1], f.y[0] = f.y[0], y
	return y
}

// NewBandpass designs a constant 0 dB peak gain bandpass section.
func NewBandpass(sampleRate, center, bandwidth float64) *Biquad {
	q := center / bandwidth
	omega := 2 * math.Pi * center / sampleRate
	alpha := math.Sin(omega) / (2 * q)
	a0 := 1 + alpha

	return &Biquad{
		b: [3]float64{alpha / a0, 0, -alpha / a0},
		a: [3]float64{1, -2 * math.Cos(omega) / a0, (1 - alpha) / a0},
	}
}

// NewBoost designs a peaking filter with linear gain at fc and bandwidth bw.
func NewBoost(gain, fc, bw, fs float64) *Biquad {
	if fs == 0 {
		fs = 1
	}
	if bw == 0 {
		bw = fs / 10
	}

	q := fs / bw
	k := math.Tan(math.Pi * fc / fs)

	b0 := 1 + gain*k/q + k*k
	b1 := 2 * (k*k - 1)
	b2 := 1 - gain*k/q + k*k

	a0 := 1 + k/q + k*k
	a1 := 2 * (k*k - 1)
	a2 := 1 - k/q + k*k

	return &Biquad{
		b: [3]float64{b0 / a0, b1 / a0, b2 / a0},
		a: [3]float64{1, a1 / a0, a2 / a0},
	}
}

// Cascade chains biquads for a steeper slope.
type Cascade []*Biquad

// Butterworth Q per section, by number of sections
var butterworthQ = [][]float64{
	1: {0.7071},
	2: {0.5412, 1.3065},
	3: {0.5176, 0.7071, 1.9319},
	4: {0.5098, 0.6013, 0.9000, 2.5629},
}

func NewBandpassCascade(sampleRate, center, bandwidth float64, stages int) Cascade {
	stages = min(max(stages, 1), len(butterworthQ)-1)

	c := make(Cascade, 0, stages)
	for _, q := range butterworthQ[stages] {
		// never narrower than requested
		bw := max(center/q, bandwidth)
		c = append(c, NewBandpass(sampleRate, center, bw))
	}

	return c
}

func (c Cascade) Filter(x float64) float64 {
	for _, b := range c {
		x = b.Filter(x)
	}
	return x
}

// Filter shapes a mono buffer in place around [low, high] Hz. A Filter keeps
// its state from one buffer to the next and is redesigned when the edges
// change.
type Filter func(buf *audio.FloatBuffer, low, high float64)

// audioBand maps passband edges to the audio frequencies a speaker plays.
// Lower sideband edges are negative.
func audioBand(low, high float64) (float64, float64) {
	low, high = math.Abs(low), math.Abs(high)
	if low > high {
		low, high = high, low
	}
	return low, high
}

type stage interface{ Filter(float64) float64 }

func designed(design func(rate, center, width float64) stage) Filter {
	var (
		f        stage
		lo, hi   float64
		prevRate int
	)

	return func(buf *audio.FloatBuffer, low, high float64) {
		low, high = audioBand(low, high)
		rate := buf.Format.SampleRate

		if f == nil || low != lo || high != hi || rate != prevRate {
			f = design(float64(rate), (low+high)/2, high-low)
			lo, hi, prevRate = low, high, rate
		}

		for i, s := range buf.Data {
			buf.Data[i] = f.Filter(s)
		}
	}
}

// Bandpass is a 4th order bandpass over the passband.
func Bandpass() Filter {
	return designed(func(rate, center, width float64) stage {
		return NewBandpassCascade(rate, center, width, 2)
	})
}

// PeakFilter boosts the passband by gain (linear: 1.413 is 3 dB, 2 is 6 dB).
func PeakFilter(gain float64) Filter {
	return designed(func(rate, center, width float64) stage {
		return NewBoost(gain, center, width, rate)
	})
}

// ParseFilter returns the filter named bp, apf or none. none is nil.
func ParseFilter(name string) (Filter, error) {
	switch name {
	case "bp":
		return Bandpass(), nil
	case "apf":
		return PeakFilter(2.0), nil
	case "none", "":
		return nil, nil
	}

	return nil, fmt.Errorf("unknown filter %q", name)
}
