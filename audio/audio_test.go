package audio

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, amp float64, rate, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return s
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func floatBuffer(data []float64, rate int) *audio.FloatBuffer {
	return &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:   append([]float64(nil), data...),
	}
}

func TestBandpass(t *testing.T) {
	tests := []struct {
		freq     float64
		min, max float64
	}{
		{500, 0.65, 0.75}, // centre, unity gain
		{2000, 0, 0.25},
		{60, 0, 0.25},
	}

	for _, tt := range tests {
		buf := floatBuffer(sine(tt.freq, 1, 8000, 8000), 8000)
		Bandpass()(buf, 300, 700)

		got := rms(buf.Data[4000:])
		assert.GreaterOrEqual(t, got, tt.min, "%v Hz", tt.freq)
		assert.LessOrEqual(t, got, tt.max, "%v Hz", tt.freq)
	}
}

func TestBandpass_LowerSideband(t *testing.T) {
	a := floatBuffer(sine(500, 1, 8000, 4000), 8000)
	b := floatBuffer(sine(500, 1, 8000, 4000), 8000)

	Bandpass()(a, 300, 700)
	Bandpass()(b, -700, -300)

	assert.Equal(t, a.Data, b.Data)
}

func TestFilter_KeepsState(t *testing.T) {
	in := sine(450, 0.5, 8000, 2048)

	whole := floatBuffer(in, 8000)
	Bandpass()(whole, 300, 700)

	f := Bandpass()
	first, second := floatBuffer(in[:1000], 8000), floatBuffer(in[1000:], 8000)
	f(first, 300, 700)
	f(second, 300, 700)

	assert.InDeltaSlice(t, whole.Data, append(first.Data, second.Data...), 1e-12)
}

func TestPeakFilter(t *testing.T) {
	buf := floatBuffer(sine(500, 0.25, 8000, 8000), 8000)
	PeakFilter(2)(buf, 300, 700)
	assert.InDelta(t, 2*0.25/math.Sqrt2, rms(buf.Data[4000:]), 0.02)

	buf = floatBuffer(sine(3000, 0.25, 8000, 8000), 8000)
	PeakFilter(2)(buf, 300, 700)
	assert.InDelta(t, 0.25/math.Sqrt2, rms(buf.Data[4000:]), 0.02)
}

func TestParseFilter(t *testing.T) {
	for _, name := range []string{"bp", "apf"} {
		f, err := ParseFilter(name)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}

	f, err := ParseFilter("none")
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = ParseFilter("comb")
	assert.Error(t, err)
}

func TestWave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	want := sine(600, 0.5, 8000, 1000)

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteWave(f, want, 8000))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	r, err := OpenWave(bytes.NewReader(data), 256)
	require.NoError(t, err)
	assert.Equal(t, 8000, r.SampleRate)
	assert.Equal(t, 1, r.Channels)

	var got []float64
	for {
		buf, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.LessOrEqual(t, len(buf.Data), 256)
		got = append(got, buf.Data...)
	}

	require.Len(t, got, len(want))
	assert.InDeltaSlice(t, want, got, 1.0/32767)

	require.NoError(t, r.Rewind())
	buf, err := r.Read()
	require.NoError(t, err)
	assert.Len(t, buf.Data, 256)
	assert.NoError(t, r.Close())
}

func TestOpenWave_Invalid(t *testing.T) {
	_, err := OpenWave(bytes.NewReader([]byte("not a wave file at all")), 256)
	assert.ErrorIs(t, err, ErrInvalidWave)
}

func TestToComplex(t *testing.T) {
	buf := floatBuffer([]float64{0.5, -1, 0}, 8000)

	got := ToComplex([]complex64{1i}, buf)
	assert.Equal(t, []complex64{1i, 0.5, -1, 0}, got)
}
