package tone

// NoTone is the bin reported when no tone is present.
const NoTone = 0

// Gate accepts a tone when the peak stands more than Threshold dB above
// the noise.
type Gate struct {
	Threshold float64
}

func (g Gate) Decide(peak, noise float64, dominant int) (bool, int) {
	if peak-noise > g.Threshold {
		return true, dominant
	}
	return false, NoTone
}
