package tone

import "fmt"

// Passband is the range [Start, Stop) of spectrum bins between the
// receiver filter edges.
type Passband struct {
	Start, Stop int
}

// NewPassband maps filter edges in Hz onto the bins of an n point,
// zero-centred spectrum.
func NewPassband(low, high float64, sampleRate, n int) Passband {
	return Passband{
		Start: n/2 + int(float64(n)*low/float64(sampleRate)),
		Stop:  n/2 + int(float64(n)*high/float64(sampleRate)),
	}
}

func (p Passband) Width() int {
	return p.Stop - p.Start
}

// Check reports whether the passband fits an n bin spectrum and leaves
// room for at least one noise bin next to peakWidth peak bins.
func (p Passband) Check(n, peakWidth int) error {
	if p.Start < 0 || p.Stop > n {
		return fmt.Errorf("%w: bins [%d,%d) outside [0,%d)", ErrPassband, p.Start, p.Stop, n)
	}
	if p.Width() < peakWidth+1 {
		return fmt.Errorf("%w: %d bins, need at least %d", ErrPassband, p.Width(), peakWidth+1)
	}
	return nil
}

func (p Passband) String() string {
	return fmt.Sprintf("[%d,%d)", p.Start, p.Stop)
}
