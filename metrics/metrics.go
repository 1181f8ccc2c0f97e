// Package metrics exports detector decisions and keying segments to
// Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cwtone/keying"
	"cwtone/tone"
)

// Observer implements tone.Observer.
type Observer struct {
	cycles      prometheus.Counter
	transitions prometheus.Counter
	present     prometheus.Gauge
	snr         prometheus.Gauge
	peak        prometheus.Gauge
	noise       prometheus.Gauge
	frequency   prometheus.Gauge
	segments    *prometheus.HistogramVec

	binFrequency func(bin int) float64

	mu   sync.Mutex
	last bool
}

// New registers the collectors with reg. binFrequency converts a detected
// bin to Hz.
func New(reg prometheus.Registerer, binFrequency func(bin int) float64) *Observer {
	f := promauto.With(reg)

	return &Observer{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "cwtone_cycles_total",
			Help: "Detection cycles with the decoder enabled",
		}),
		transitions: f.NewCounter(prometheus.CounterOpts{
			Name: "cwtone_transitions_total",
			Help: "Changes between tone and no tone",
		}),
		present: f.NewGauge(prometheus.GaugeOpts{
			Name: "cwtone_tone_present",
			Help: "1 while a tone is detected",
		}),
		snr: f.NewGauge(prometheus.GaugeOpts{
			Name: "cwtone_snr_db",
			Help: "Smoothed peak minus noise level in dB",
		}),
		peak: f.NewGauge(prometheus.GaugeOpts{
			Name: "cwtone_peak_db",
			Help: "Smoothed peak level in dB",
		}),
		noise: f.NewGauge(prometheus.GaugeOpts{
			Name: "cwtone_noise_db",
			Help: "Smoothed noise level in dB",
		}),
		frequency: f.NewGauge(prometheus.GaugeOpts{
			Name: "cwtone_tone_frequency_hz",
			Help: "Offset of the detected tone from the centre frequency, 0 without a tone",
		}),
		segments: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cwtone_segment_duration_ms",
			Help:    "Duration of keying segments",
			Buckets: prometheus.ExponentialBuckets(16, 2, 9),
		}, []string{"type"}),
		binFrequency: binFrequency,
	}
}

func (o *Observer) Observe(d tone.Decision) {
	o.cycles.Inc()

	o.mu.Lock()
	if d.Present != o.last {
		o.transitions.Inc()
		o.last = d.Present
	}
	o.mu.Unlock()

	o.snr.Set(d.SNR)
	o.peak.Set(d.PeakDB)
	o.noise.Set(d.NoiseDB)

	if d.Present {
		o.present.Set(1)
		o.frequency.Set(o.binFrequency(d.Bin))
	} else {
		o.present.Set(0)
		o.frequency.Set(0)
	}
}

// ObserveSegment records a finished keying segment.
func (o *Observer) ObserveSegment(s keying.Segment) {
	typ := "space"
	if s.Type == keying.Mark {
		typ = "mark"
	}
	o.segments.WithLabelValues(typ).Observe(s.Duration)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
