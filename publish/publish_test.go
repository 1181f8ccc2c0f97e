package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cwtone/keying"
	"cwtone/tone"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	msgs         []published
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = append(c.msgs, published{topic, payload.([]byte)})
	return doneToken{c.err}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

var discard = log.New(io.Discard)

func TestPublisher_StateChanges(t *testing.T) {
	client := &fakeClient{}
	p := New(client, Options{
		Prefix:       "shack/rx1/",
		BinFrequency: func(bin int) float64 { return tone.BinFrequency(bin, 1024, 8000) },
	}, discard)

	p.Observe(tone.Decision{Cycle: 1, Present: false})
	p.Observe(tone.Decision{Cycle: 2, Present: true, Bin: 576, SNR: 30})
	p.Observe(tone.Decision{Cycle: 3, Present: true, Bin: 576, SNR: 31})
	p.Observe(tone.Decision{Cycle: 4, Present: false, SNR: 2})
	p.Segment(keying.Segment{Type: keying.Mark, Start: 16, Duration: 48, Cycles: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	msgs := client.messages()
	require.Len(t, msgs, 3)

	assert.Equal(t, "shack/rx1/state", msgs[0].topic)
	var on StateMessage
	require.NoError(t, json.Unmarshal(msgs[0].payload, &on))
	assert.True(t, on.Present)
	assert.Equal(t, uint64(2), on.Cycle)
	assert.Equal(t, 500.0, on.FrequencyHz)

	var off StateMessage
	require.NoError(t, json.Unmarshal(msgs[1].payload, &off))
	assert.False(t, off.Present)
	assert.Zero(t, off.FrequencyHz)

	assert.Equal(t, "shack/rx1/segment", msgs[2].topic)
	assert.JSONEq(t, `{"type":"mark","start_ms":16,"duration_ms":48,"cycles":3}`, string(msgs[2].payload))

	assert.True(t, client.disconnected)
}

func TestPublisher_QueueFull(t *testing.T) {
	client := &fakeClient{}
	p := New(client, Options{QueueSize: 2}, discard)

	for i := range 5 {
		p.Segment(keying.Segment{Cycles: i})
	}

	assert.Equal(t, uint64(3), p.Dropped())
}

func TestPublisher_ErrorsAreNotFatal(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := New(client, Options{}, discard)

	p.Segment(keying.Segment{})
	p.Segment(keying.Segment{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { p.Run(ctx) })
	assert.Len(t, client.messages(), 2)
}

func TestPublisher_Stats(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "cwtone_snr_db"}).Set(12.5)

	client := &fakeClient{}
	p := New(client, Options{Stats: reg, StatsInterval: 10 * time.Millisecond}, discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(client.messages()) > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	msg := client.messages()[0]
	assert.Equal(t, "cwtone/stats", msg.topic)

	var stats StatsMessage
	require.NoError(t, json.Unmarshal(msg.payload, &stats))
	assert.Equal(t, 12.5, stats.Metrics["cwtone_snr_db"])
}

func TestFlatten(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	f.NewCounter(prometheus.CounterOpts{Name: "a_total"}).Add(3)
	f.NewGauge(prometheus.GaugeOpts{Name: "b"}).Set(-1)
	f.NewGaugeVec(prometheus.GaugeOpts{Name: "labelled"}, []string{"x"}).WithLabelValues("y").Set(1)
	f.NewHistogram(prometheus.HistogramOpts{Name: "h"}).Observe(1)

	families, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"a_total": 3, "b": -1}, Flatten(families))
}
