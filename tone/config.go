package tone

import (
	"errors"
	"fmt"
)

// Floor is the lowest power level, in dB, the detector reports. Smoothed
// spectrum and peak level start here so that early cycles never trigger.
const Floor = -130.0

// noiseStart is the initial noise level, above Floor so that the first
// decisions see a negative SNR.
const noiseStart = -100.0

var (
	ErrFrameLength = errors.New("invalid frame length")
	ErrSampleRate  = errors.New("invalid sample rate")
	ErrBeta        = errors.New("smoothing coefficient out of range")
	ErrPeakWidth   = errors.New("invalid peak width")
	ErrThreshold   = errors.New("invalid threshold")
	ErrPassband    = errors.New("invalid passband")
)

// Config holds the fixed parameters of a Detector.
type Config struct {
	SampleRate  int     // audio sample rate (Hz)
	FrameLength int     // analysis frame length, power of two
	Capacity    int     // ring capacity in samples (0: 10 * (frame + hop))
	PSDBeta     float64 // per-bin spectrum smoothing
	PeakBeta    float64 // peak level smoothing
	NoiseBeta   float64 // noise level smoothing
	PeakWidth   int     // number of top bins averaged as peak
	ThresholdDB float64 // SNR needed to report a tone
}

// DefaultConfig returns the parameters the detector was tuned with.
func DefaultConfig() Config {
	return Config{
		SampleRate:  8000,
		FrameLength: 1024,
		PSDBeta:     0.5,
		PeakBeta:    0.5,
		NoiseBeta:   0.9,
		PeakWidth:   2,
		ThresholdDB: 11,
	}
}

// Hop is the number of samples released after each analysis cycle.
func (c Config) Hop() int {
	return c.FrameLength / 8
}

// ElapsedMs is the real time covered by one analysis cycle.
func (c Config) ElapsedMs() float64 {
	return float64(c.Hop()) * 1000 / float64(c.SampleRate)
}

func (c Config) capacity() int {
	if c.Capacity > 0 {
		return c.Capacity
	}
	return 10 * (c.FrameLength + c.Hop())
}

// Validate checks the configuration before any buffer is allocated.
func (c Config) Validate() error {
	if c.FrameLength < 16 || c.FrameLength&(c.FrameLength-1) != 0 {
		return fmt.Errorf("%w: %d (must be a power of two >= 16)", ErrFrameLength, c.FrameLength)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrSampleRate, c.SampleRate)
	}
	if c.Capacity != 0 && c.Capacity <= c.FrameLength+c.Hop() {
		return fmt.Errorf("%w: capacity %d must exceed frame + hop (%d)", ErrFrameLength, c.Capacity, c.FrameLength+c.Hop())
	}

	for name, b := range map[string]float64{"psd": c.PSDBeta, "peak": c.PeakBeta, "noise": c.NoiseBeta} {
		if !(b > 0 && b < 1) {
			return fmt.Errorf("%w: %s beta %v (must be in (0,1))", ErrBeta, name, b)
		}
	}

	if c.PeakWidth < 1 || c.PeakWidth >= c.FrameLength/2 {
		return fmt.Errorf("%w: %d", ErrPeakWidth, c.PeakWidth)
	}
	if c.ThresholdDB <= 0 {
		return fmt.Errorf("%w: %v dB", ErrThreshold, c.ThresholdDB)
	}

	return nil
}
