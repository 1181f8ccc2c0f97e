// Package tone detects the presence of a CW tone in a stream of complex
// baseband audio.
//
// Samples are buffered in a ring, analysed in overlapping Hamming windowed
// frames, smoothed bin by bin and ranked inside the receiver passband. The
// spread between the strongest bins and the rest decides whether a tone is
// keyed, and every analysis cycle reports that decision to a Decoder
// together with the time the cycle covers.
package tone

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

var ErrNoMode = errors.New("mode source required")

// ModeSource reports the receiver settings the detector follows. It is
// read on every analysis cycle and may change between cycles.
type ModeSource interface {
	// FilterEdges returns the audio filter edges in Hz.
	FilterEdges() (low, high float64)
	// DecoderEnabled gates the decision and the decoder call.
	DecoderEnabled() bool
}

// StaticMode is a ModeSource that never changes.
type StaticMode struct {
	Low, High float64
	Enabled   bool
}

func (m StaticMode) FilterEdges() (float64, float64) { return m.Low, m.High }
func (m StaticMode) DecoderEnabled() bool            { return m.Enabled }

// Decoder receives the keying signal, once per analysis cycle.
type Decoder interface {
	Signal(present bool, elapsedMs float64)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(present bool, elapsedMs float64)

func (f DecoderFunc) Signal(present bool, elapsedMs float64) { f(present, elapsedMs) }

// Decision describes one analysis cycle.
type Decision struct {
	Cycle     uint64
	Present   bool
	Bin       int // dominant bin when Present, NoTone otherwise
	Dominant  int // strongest passband bin, whatever the gate decided
	ElapsedMs float64
	PeakDB    float64
	NoiseDB   float64
	SNR       float64
	Passband  Passband

	// Spectrum is the smoothed spectrum of the passband bins. It is only
	// valid during the Observe call.
	Spectrum []float64
}

// Observer is told about every decision after the decoder.
type Observer interface {
	Observe(d Decision)
}

type ObserverFunc func(d Decision)

func (f ObserverFunc) Observe(d Decision) { f(d) }

type Option func(*Detector)

func WithLogger(l *log.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

func WithObserver(o Observer) Option {
	return func(d *Detector) { d.observers = append(d.observers, o) }
}

// Detector is the tone detection pipeline. All buffers are allocated by New;
// Feed does not allocate.
//
// A Detector must be fed from one goroutine at a time. The ModeSource may be
// updated concurrently if its implementation allows it.
type Detector struct {
	cfg       Config
	hop       int
	elapsedMs float64

	win    Window
	ring   *Ring
	raw    []complex64
	frame  []complex128
	psd    []float64
	est    *Estimator
	smooth *VectorEMA
	sep    *Separator
	gate   Gate

	mode      ModeSource
	dec       Decoder
	observers []Observer
	logger    *log.Logger

	low, high float64
	pb        Passband
	cycles    uint64

	ready bool
}

// New validates cfg and allocates a detector reporting to dec.
func New(cfg Config, mode ModeSource, dec Decoder, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mode == nil {
		return nil, ErrNoMode
	}
	if dec == nil {
		dec = DecoderFunc(func(bool, float64) {})
	}

	n := cfg.FrameLength

	d := &Detector{
		cfg:       cfg,
		hop:       cfg.Hop(),
		elapsedMs: cfg.ElapsedMs(),
		win:       NewWindow(n),
		ring:      NewRing(cfg.capacity()),
		raw:       make([]complex64, n),
		frame:     make([]complex128, n),
		psd:       make([]float64, n),
		est:       NewEstimator(n),
		smooth:    NewVectorEMA(n, cfg.PSDBeta, Floor),
		sep:       NewSeparator(n, cfg.PeakWidth, cfg.PeakBeta, cfg.NoiseBeta),
		gate:      Gate{Threshold: cfg.ThresholdDB},
		mode:      mode,
		dec:       dec,
		logger:    log.New(io.Discard),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.low, d.high = mode.FilterEdges()
	d.pb = NewPassband(d.low, d.high, cfg.SampleRate, n)
	if err := d.pb.Check(n, cfg.PeakWidth); err != nil {
		return nil, fmt.Errorf("filter %v-%v Hz: %w", d.low, d.high, err)
	}

	d.logger.Info("tone detector ready",
		"rate", cfg.SampleRate,
		"frame", n,
		"hop", d.hop,
		"elapsed_ms", d.elapsedMs,
		"passband", d.pb,
		"threshold_db", cfg.ThresholdDB)

	d.ready = true
	return d, nil
}

func (d *Detector) Config() Config { return d.cfg }

// Cycles is the number of analysis cycles run so far.
func (d *Detector) Cycles() uint64 { return d.cycles }

// Passband is the bin range used by the last cycle.
func (d *Detector) Passband() Passband { return d.pb }

// Feed buffers samples and runs every analysis cycle they make due, before
// returning. Calling Feed on a detector that was not built by New does
// nothing.
func (d *Detector) Feed(samples []complex64) {
	if d == nil || !d.ready {
		return
	}

	for len(samples) > 0 {
		n := min(len(samples), d.ring.Free())
		d.ring.Push(samples[:n])
		samples = samples[n:]

		for d.ring.Available() >= len(d.frame) {
			d.cycle()
		}
	}
}

func (d *Detector) cycle() {
	d.ring.Peek(d.raw)
	d.win.Apply(d.frame, d.raw)
	d.ring.Release(d.hop)

	d.est.Analyze(d.frame, d.psd)
	smoothed := d.smooth.Update(d.psd)
	d.cycles++

	if !d.mode.DecoderEnabled() {
		return
	}

	pb := d.passband()
	lv := d.sep.Separate(smoothed, pb)
	present, bin := d.gate.Decide(lv.Peak, lv.Noise, lv.Dominant)

	d.dec.Signal(present, d.elapsedMs)

	if len(d.observers) == 0 {
		return
	}

	dec := Decision{
		Cycle:     d.cycles,
		Present:   present,
		Bin:       bin,
		Dominant:  lv.Dominant,
		ElapsedMs: d.elapsedMs,
		PeakDB:    lv.Peak,
		NoiseDB:   lv.Noise,
		SNR:       lv.SNR(),
		Passband:  pb,
		Spectrum:  smoothed[pb.Start:pb.Stop],
	}

	for _, o := range d.observers {
		o.Observe(dec)
	}
}

// passband follows the filter edges of the mode source.
func (d *Detector) passband() Passband {
	low, high := d.mode.FilterEdges()
	if low == d.low && high == d.high {
		return d.pb
	}

	pb := NewPassband(low, high, d.cfg.SampleRate, d.cfg.FrameLength)
	if err := pb.Check(d.cfg.FrameLength, d.cfg.PeakWidth); err != nil {
		panic(fmt.Sprintf("tone: filter %v-%v Hz: %v", low, high, err))
	}

	d.logger.Debug("passband changed", "low", low, "high", high, "passband", pb)

	d.low, d.high, d.pb = low, high, pb
	return pb
}

// BinFrequency returns the centre frequency of a bin of this detector.
func (d *Detector) BinFrequency(bin int) float64 {
	return BinFrequency(bin, d.cfg.FrameLength, d.cfg.SampleRate)
}
