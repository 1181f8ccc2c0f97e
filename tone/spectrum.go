package tone

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Estimator turns one windowed frame into a power spectrum in dB.
//
// Bins are ordered with 0 Hz in the middle: bin n/2+k holds the power at
// +k*rate/n Hz and bin n/2-k the power at -k*rate/n Hz.
type Estimator struct {
	fft    *fourier.CmplxFFT
	coeffs []complex128
	scale  float64
}

func NewEstimator(n int) *Estimator {
	return &Estimator{
		fft:    fourier.NewCmplxFFT(n),
		coeffs: make([]complex128, n),
		scale:  1 / float64(n),
	}
}

// Len is the frame length and the number of bins produced.
func (e *Estimator) Len() int {
	return len(e.coeffs)
}

// Analyze writes the power of every bin of frame into psd. A full scale
// complex tone at a bin centre reads close to 0 dB; nothing is carried
// over from previous frames.
func (e *Estimator) Analyze(frame []complex128, psd []float64) {
	n := len(e.coeffs)
	if len(frame) != n || len(psd) != n {
		panic(fmt.Sprintf("tone: estimator of %d bins given frame %d, psd %d", n, len(frame), len(psd)))
	}

	e.fft.Coefficients(e.coeffs, frame)

	for i := range psd {
		c := e.coeffs[e.fft.ShiftIdx(i)]
		psd[i] = powerDB((real(c)*real(c) + imag(c)*imag(c)) * e.scale)
	}
}

func powerDB(p float64) float64 {
	if p <= 0 {
		return Floor
	}
	return max(10*math.Log10(p), Floor)
}

// BinFrequency returns the centre frequency of bin for an n point spectrum.
func BinFrequency(bin, n, sampleRate int) float64 {
	return float64(bin-n/2) * float64(sampleRate) / float64(n)
}
