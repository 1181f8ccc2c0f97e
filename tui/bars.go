package tui

import (
	"math"
	"strings"

	"cwtone/keying"
)

const nBands = 8

var levels = []rune("▁▂▃▄▅▆▇█")

// Bars reduces a dB spectrum to nBands bars. Each bar shows the loudest bin
// of its band on a scale from floor to top dB.
func Bars(spectrum []float64, floor, top float64) (result [nBands]rune) {
	for i := range result {
		result[i] = ' '
	}
	if len(spectrum) == 0 || top <= floor {
		return result
	}

	perBand := float64(len(spectrum)) / nBands

	for i := range nBands {
		start := int(float64(i) * perBand)
		end := max(int(float64(i+1)*perBand), start+1)
		if start >= len(spectrum) {
			break
		}
		end = min(end, len(spectrum))

		loudest := math.Inf(-1)
		for _, v := range spectrum[start:end] {
			loudest = max(loudest, v)
		}

		level := int((loudest - floor) / (top - floor) * nBands)
		result[i] = levels[min(max(level, 0), nBands-1)]
	}

	return result
}

// Tape renders a keying segment as a strip: marks as blocks and spaces as
// blanks, one character per unit milliseconds. Spaces of a second or more
// end the line.
func Tape(s keying.Segment, unit float64) string {
	if s.Type == keying.Space && s.Duration >= 1000 {
		return "\n"
	}

	n := max(int(math.Round(s.Duration/unit)), 1)

	if s.Type == keying.Mark {
		return strings.Repeat("▄", n)
	}
	return strings.Repeat(" ", min(n, 8))
}
