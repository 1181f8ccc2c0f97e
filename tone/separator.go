package tone

import (
	"cmp"
	"fmt"
	"slices"
)

type binLevel struct {
	bin int
	db  float64
}

// Levels is the outcome of one separation step.
type Levels struct {
	Peak     float64 // smoothed peak level (dB)
	Noise    float64 // smoothed noise level (dB)
	Dominant int     // strongest bin of the passband
}

// SNR is the distance between peak and noise, in dB.
func (l Levels) SNR() float64 {
	return l.Peak - l.Noise
}

// Separator ranks the passband bins of the smoothed spectrum and splits
// them into a few peak bins and the remaining noise bins.
type Separator struct {
	width int
	peak  EMA
	noise EMA
	items []binLevel
}

// NewSeparator prepares ranking storage for spectra of up to n bins.
func NewSeparator(n, peakWidth int, peakBeta, noiseBeta float64) *Separator {
	return &Separator{
		width: peakWidth,
		peak:  EMA{Beta: peakBeta, Value: Floor},
		noise: EMA{Beta: noiseBeta, Value: noiseStart},
		items: make([]binLevel, 0, n),
	}
}

// Separate updates the peak and noise levels from the bins of pb.
func (s *Separator) Separate(smoothed []float64, pb Passband) Levels {
	num := pb.Width()
	if num < s.width+1 || pb.Start < 0 || pb.Stop > len(smoothed) {
		panic(fmt.Sprintf("tone: passband %v unusable with %d bins and peak width %d", pb, len(smoothed), s.width))
	}

	items := s.items[:0]
	for n := pb.Start; n < pb.Stop; n++ {
		items = append(items, binLevel{bin: n, db: smoothed[n]})
	}

	slices.SortFunc(items, func(a, b binLevel) int {
		return cmp.Compare(b.db, a.db)
	})

	peak, noise := 0.0, 0.0
	for i, it := range items {
		if i < s.width {
			peak += it.db
		} else {
			noise += it.db
		}
	}

	peak /= float64(s.width)
	noise /= float64(num - s.width)

	return Levels{
		Peak:     s.peak.Update(peak),
		Noise:    s.noise.Update(noise),
		Dominant: items[0].bin,
	}
}

// Levels returns the current smoothed levels without updating them.
func (s *Separator) Levels() (peak, noise float64) {
	return s.peak.Value, s.noise.Value
}
