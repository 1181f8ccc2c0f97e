package tone

// EMA is a single pole low-pass filter: v = v*Beta + x*(1-Beta).
// With Beta in (0,1) the value never leaves the range of its inputs.
type EMA struct {
	Beta  float64
	Value float64
}

func (f *EMA) Update(x float64) float64 {
	f.Value = f.Value*f.Beta + x*(1-f.Beta)
	return f.Value
}

// VectorEMA smooths a spectrum bin by bin, with one EMA per bin.
type VectorEMA struct {
	beta   float64
	values []float64
}

// NewVectorEMA returns n filters starting at init.
func NewVectorEMA(n int, beta, init float64) *VectorEMA {
	v := &VectorEMA{beta: beta, values: make([]float64, n)}
	for i := range v.values {
		v.values[i] = init
	}
	return v
}

// Update folds current into the smoothed values and returns them.
// The returned slice is owned by the filter.
func (v *VectorEMA) Update(current []float64) []float64 {
	for i, x := range current[:len(v.values)] {
		v.values[i] = v.values[i]*v.beta + x*(1-v.beta)
	}
	return v.values
}

func (v *VectorEMA) Values() []float64 {
	return v.values
}
