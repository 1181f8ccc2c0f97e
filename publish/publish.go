// Package publish sends tone state changes, keying segments and periodic
// detector statistics to an MQTT broker.
package publish

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"cwtone/keying"
	"cwtone/tone"
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string

	Prefix    string // topic prefix, default "cwtone"
	QoS       byte
	QueueSize int // default 256

	// Stats, when set, is published as <prefix>/stats every StatsInterval.
	Stats         prometheus.Gatherer
	StatsInterval time.Duration

	// BinFrequency converts a detected bin to Hz.
	BinFrequency func(bin int) float64
}

// StateMessage is published on <prefix>/state when the tone comes or goes.
type StateMessage struct {
	Timestamp   int64   `json:"timestamp"`
	Cycle       uint64  `json:"cycle"`
	Present     bool    `json:"present"`
	FrequencyHz float64 `json:"frequency_hz,omitempty"`
	SNR         float64 `json:"snr_db"`
}

// SegmentMessage is published on <prefix>/segment for every keying segment.
type SegmentMessage struct {
	Type       string  `json:"type"`
	StartMs    float64 `json:"start_ms"`
	DurationMs float64 `json:"duration_ms"`
	Cycles     int     `json:"cycles"`
}

// StatsMessage is published on <prefix>/stats.
type StatsMessage struct {
	Timestamp int64              `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
}

type message struct {
	topic   string
	payload []byte
}

// Publisher queues messages from the detector goroutine and sends them
// from Run. Enqueueing never blocks; when the queue is full the message is
// dropped.
type Publisher struct {
	client Client
	opts   Options
	logger *log.Logger
	queue  chan message

	present atomic.Bool
	dropped atomic.Uint64
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "cwtone_" + hex.EncodeToString(b)
}

// Connect dials the broker and returns a publisher for it.
func Connect(opts Options, logger *log.Logger) (*Publisher, error) {
	mo := mqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)

	if opts.ClientID == "" {
		opts.ClientID = generateClientID()
	}
	mo.SetClientID(opts.ClientID)

	if opts.Username != "" {
		mo.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		mo.SetPassword(opts.Password)
	}

	mo.SetAutoReconnect(true)
	mo.SetConnectRetry(true)
	mo.SetConnectRetryInterval(10 * time.Second)
	mo.SetKeepAlive(60 * time.Second)
	mo.SetPingTimeout(10 * time.Second)

	mo.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", "broker", opts.Broker)
	})
	mo.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "err", err)
	})

	client := mqtt.NewClient(mo)
	if token := client.Connect(); token.WaitTimeout(30*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Broker, token.Error())
	}

	return New(client, opts, logger), nil
}

func New(client Client, opts Options, logger *log.Logger) *Publisher {
	if opts.Prefix == "" {
		opts.Prefix = "cwtone"
	}
	opts.Prefix = strings.TrimSuffix(opts.Prefix, "/")
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = 10 * time.Second
	}
	if opts.BinFrequency == nil {
		opts.BinFrequency = func(int) float64 { return 0 }
	}

	return &Publisher{
		client: client,
		opts:   opts,
		logger: logger,
		queue:  make(chan message, opts.QueueSize),
	}
}

// Observe implements tone.Observer. Only changes of state are published.
func (p *Publisher) Observe(d tone.Decision) {
	if p.present.Swap(d.Present) == d.Present {
		return
	}

	m := StateMessage{
		Timestamp: time.Now().UnixMilli(),
		Cycle:     d.Cycle,
		Present:   d.Present,
		SNR:       d.SNR,
	}
	if d.Present {
		m.FrequencyHz = p.opts.BinFrequency(d.Bin)
	}

	p.enqueue("state", m)
}

// Segment publishes a finished keying segment.
func (p *Publisher) Segment(s keying.Segment) {
	typ := "space"
	if s.Type == keying.Mark {
		typ = "mark"
	}

	p.enqueue("segment", SegmentMessage{
		Type:       typ,
		StartMs:    s.Start,
		DurationMs: s.Duration,
		Cycles:     s.Cycles,
	})
}

// Dropped returns the number of messages lost to a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Publisher) enqueue(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("mqtt marshal", "topic", topic, "err", err)
		return
	}

	select {
	case p.queue <- message{topic: p.opts.Prefix + "/" + topic, payload: payload}:
	default:
		p.dropped.Add(1)
	}
}

// Run sends queued messages until ctx is done, then sends what is left and
// disconnects.
func (p *Publisher) Run(ctx context.Context) {
	var tick <-chan time.Time
	if p.opts.Stats != nil {
		t := time.NewTicker(p.opts.StatsInterval)
		defer t.Stop()
		tick = t.C
	}

	defer p.client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case m := <-p.queue:
					p.send(m)
				default:
					return
				}
			}

		case m := <-p.queue:
			p.send(m)

		case <-tick:
			p.publishStats()
		}
	}
}

func (p *Publisher) send(m message) {
	token := p.client.Publish(m.topic, p.opts.QoS, false, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		p.logger.Warn("mqtt publish timed out", "topic", m.topic)
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish", "topic", m.topic, "err", err)
	}
}

func (p *Publisher) publishStats() {
	families, err := p.opts.Stats.Gather()
	if err != nil {
		p.logger.Error("gather metrics", "err", err)
		return
	}

	stats := StatsMessage{
		Timestamp: time.Now().UnixMilli(),
		Metrics:   Flatten(families),
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		p.logger.Error("mqtt marshal", "topic", "stats", "err", err)
		return
	}

	p.send(message{topic: p.opts.Prefix + "/stats", payload: payload})
}

// Flatten returns the value of every unlabelled counter and gauge.
func Flatten(families []*dto.MetricFamily) map[string]float64 {
	values := make(map[string]float64)

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) > 0 {
				continue
			}

			switch mf.GetType() {
			case dto.MetricType_GAUGE:
				values[mf.GetName()] = m.GetGauge().GetValue()
			case dto.MetricType_COUNTER:
				values[mf.GetName()] = m.GetCounter().GetValue()
			}
		}
	}

	return values
}
