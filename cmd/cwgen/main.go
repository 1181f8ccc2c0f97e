// Command cwgen writes a WAV file with a keyed sine tone, optionally buried
// in noise, for trying out cwmon.
package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/stat/distuv"

	"cwtone/audio"
)

func main() {
	output := pflag.StringP("output", "o", "cw.wav", "File to write.")
	rate := pflag.IntP("rate", "r", 8000, "Sample rate.")
	freq := pflag.Float64P("frequency", "f", 600, "Tone frequency in Hz.")
	wpm := pflag.IntP("wpm", "w", 20, "Keying speed in words per minute.")
	amp := pflag.Float64P("amplitude", "a", 0.5, "Tone amplitude, 0 to 1.")
	noise := pflag.Float64P("noise", "n", 0, "Standard deviation of added white noise.")
	seed := pflag.Uint64("seed", 1, "Noise seed.")
	pattern := pflag.StringP("pattern", "p", "-.-. --.- / -.. .", "Keying pattern: '.' dit, '-' dah, ' ' letter gap, '/' word gap.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %v [options]\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "cwgen"})

	keying, err := Key(*pattern, *wpm, *rate)
	if err != nil {
		logger.Fatal("bad pattern", "err", err)
	}

	samples := Synthesize(keying, *freq, *amp, *rate)
	if *noise > 0 {
		AddNoise(samples, *noise, *seed)
	}

	f, err := os.Create(*output)
	if err != nil {
		logger.Fatal("create output", "err", err)
	}
	defer f.Close()

	if err := audio.WriteWave(f, samples, *rate); err != nil {
		logger.Fatal("write output", "err", err)
	}

	logger.Info("written", "file", *output, "seconds", float64(len(samples))/float64(*rate))
}

// Key returns the key state for every sample of pattern, with half a
// second of silence around it.
func Key(pattern string, wpm, rate int) ([]bool, error) {
	if wpm <= 0 || rate <= 0 {
		return nil, fmt.Errorf("wpm and rate must be positive")
	}

	dit := rate * 1200 / wpm / 1000 // samples per dit
	lead := rate / 2

	var key []bool
	run := func(on bool, n int) {
		for range n {
			key = append(key, on)
		}
	}

	run(false, lead)
	for i, c := range pattern {
		switch c {
		case '.':
			run(true, dit)
		case '-':
			run(true, 3*dit)
		case ' ':
			run(false, 2*dit) // plus the element gap
			continue
		case '/':
			run(false, 6*dit)
			continue
		default:
			return nil, fmt.Errorf("unexpected %q at %d", c, i)
		}
		run(false, dit)
	}
	run(false, lead)

	return key, nil
}

// Synthesize renders key as a sine with 5 ms raised cosine edges.
func Synthesize(key []bool, freq, amp float64, rate int) []float64 {
	ramp := max(rate*5/1000, 1)
	step := 1.0 / float64(ramp)

	out := make([]float64, len(key))
	env := 0.0
	for i, on := range key {
		if on {
			env = min(env+step, 1)
		} else {
			env = max(env-step, 0)
		}

		shape := 0.5 - 0.5*math.Cos(math.Pi*env)
		out[i] = amp * shape * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}

	return out
}

// AddNoise adds white gaussian noise with the given standard deviation.
func AddNoise(samples []float64, sigma float64, seed uint64) {
	n := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
	for i := range samples {
		samples[i] += n.Rand()
	}
}
