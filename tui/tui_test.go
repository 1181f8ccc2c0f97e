package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"cwtone/keying"
	"cwtone/tone"
)

func TestBars(t *testing.T) {
	spectrum := make([]float64, 16)
	for i := range spectrum {
		spectrum[i] = -100
	}
	spectrum[5] = -60 // band 2
	spectrum[15] = 0  // band 7, clipped at the top

	got := Bars(spectrum, -100, -60)
	assert.Equal(t, "▁▁█▁▁▁▁█", string(got[:]))

	got = Bars(spectrum, -100, -20)
	assert.Equal(t, "▁▁▅▁▁▁▁█", string(got[:]))
}

func TestBars_Short(t *testing.T) {
	got := Bars([]float64{-50, -10, -90}, -100, 0)

	// bands share bins when there are fewer bins than bands
	assert.Equal(t, "▅▅▅███▁▁", string(got[:]))

	empty := Bars(nil, -100, 0)
	assert.Equal(t, strings.Repeat(" ", nBands), string(empty[:]))
}

func TestTape(t *testing.T) {
	assert.Equal(t, "▄▄", Tape(keying.Segment{Type: keying.Mark, Duration: 48}, 24))
	assert.Equal(t, "▄", Tape(keying.Segment{Type: keying.Mark, Duration: 5}, 24))
	assert.Equal(t, "      ", Tape(keying.Segment{Type: keying.Space, Duration: 144}, 24))
	assert.Equal(t, strings.Repeat(" ", 8), Tape(keying.Segment{Type: keying.Space, Duration: 900}, 24))
	assert.Equal(t, "\n", Tape(keying.Segment{Type: keying.Space, Duration: 1200}, 24))
}

func TestInfoLine(t *testing.T) {
	freq := func(bin int) float64 { return tone.BinFrequency(bin, 1024, 8000) }

	on := InfoLine(tone.Decision{Present: true, Bin: 576, SNR: 42.3, PeakDB: -5, NoiseDB: -47.3}, freq, 300, 700, true)
	assert.Contains(t, on, " ON Tone: 500hz")
	assert.Contains(t, on, "SNR: 42.3dB")
	assert.Contains(t, on, "Filter:300-700hz")
	assert.Contains(t, on, "Decoder:on")

	off := InfoLine(tone.Decision{}, freq, 300, 700, false)
	assert.Contains(t, off, " -- Tone:   -hz")
	assert.Contains(t, off, "Decoder:off")
}
