// Command cwmon watches a receiver's audio for a CW tone and reports the
// keying it hears.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	goaudio "github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
	"github.com/jroimartin/gocui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"cwtone/audio"
	"cwtone/config"
	"cwtone/keying"
	"cwtone/metrics"
	"cwtone/publish"
	"cwtone/tone"
	"cwtone/tui"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML configuration file, reloaded on change.")
	dev := pflag.StringP("device", "d", "", "Input audio device (index or name prefix) for live monitoring.")
	out := pflag.StringP("play", "p", "", "Output audio device for listening along.")
	list := pflag.BoolP("list", "l", false, "List audio devices.")
	filter := pflag.StringP("filter", "f", "bp", "Filter for the played audio: bandpass (bp), audio peak filter (apf) or none.")
	blockMs := pflag.IntP("block", "b", 20, "Audio block length in ms.")
	low := pflag.Float64("low", 0, "Lower filter edge in Hz, overrides the configuration.")
	high := pflag.Float64("high", 0, "Upper filter edge in Hz, overrides the configuration.")
	threshold := pflag.Float64P("threshold", "t", 0, "Detection threshold in dB, overrides the configuration.")
	minSegment := pflag.Float64("min-segment", 20, "Shortest mark or space in ms; shorter runs are glitches.")
	noDecoder := pflag.Bool("no-decoder", false, "Start with the decoder off.")
	noui := pflag.Bool("noui", false, "No user interface, write keying to stdout.")
	metricsAddr := pflag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9108.")
	broker := pflag.String("mqtt-broker", "", "Publish to this MQTT broker, e.g. tcp://localhost:1883.")
	prefix := pflag.String("mqtt-prefix", "cwtone", "MQTT topic prefix.")
	mqttUser := pflag.String("mqtt-user", "", "MQTT user name.")
	mqttPass := pflag.String("mqtt-password", "", "MQTT password.")
	logLevel := pflag.String("log-level", "info", "Log level: debug, info, warn, error.")
	logFile := pflag.String("log-file", "", "Log to this file. With the user interface, logging is off otherwise.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %v [options] [file.wav]\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}

	logger, closeLog, err := newLogger(*logLevel, *logFile, !*noui)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Fatal("load configuration", "err", err)
		}
	}

	if pflag.CommandLine.Changed("low") {
		cfg.FilterLow = *low
	}
	if pflag.CommandLine.Changed("high") {
		cfg.FilterHigh = *high
	}
	if pflag.CommandLine.Changed("threshold") {
		cfg.ThresholdDB = *threshold
	}
	if *noDecoder {
		cfg.Decoder = false
	}

	useAudio := *dev != "" || *out != "" || *list || pflag.NArg() == 0
	if useAudio {
		if err := portaudio.Initialize(); err != nil {
			logger.Fatal("initialize portaudio", "err", err)
		}
		defer portaudio.Terminate()
	}

	if *list || (*noui && *dev == "" && pflag.NArg() == 0) {
		listDevices()
		return
	}

	// input
	var reader *audio.Reader
	block := max(cfg.SampleRate**blockMs/1000, 1)

	switch {
	case pflag.NArg() >= 1:
		name := pflag.Arg(0)
		f, err := os.Open(name)
		if err != nil {
			logger.Fatal("open input", "err", err)
		}
		defer f.Close()

		// files are analysed at their own rate
		if reader, err = audio.OpenWave(f, block); err != nil {
			logger.Fatal("open input", "file", name, "err", err)
		}
		reader.ID = filepath.Base(name)
		cfg.SampleRate = reader.SampleRate

	default:
		if *dev == "" {
			if *dev, err = tui.SelectDevice(); err != nil {
				logger.Fatal("select input", "err", err)
			}
		}
		if reader, err = audio.OpenStream(*dev, cfg.SampleRate, block); err != nil {
			logger.Fatal("open input", "device", *dev, "err", err)
		}
	}
	defer reader.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	var player *audio.Writer
	if *out != "" {
		if player, err = audio.NewWriter(*out, reader.SampleRate, block); err != nil {
			logger.Fatal("open output", "device", *out, "err", err)
		}
		defer player.Close()
	}

	af, err := audio.ParseFilter(*filter)
	if err != nil {
		logger.Fatal("bad filter", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	live := config.NewLive(cfg)
	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, live, logger); err != nil {
				logger.Error("config watch stopped", "err", err)
			}
		}()
	}

	binFrequency := func(bin int) float64 {
		return tone.BinFrequency(bin, cfg.FrameLength, cfg.SampleRate)
	}

	// sinks
	var (
		observers []tone.Observer
		sinks     []func(keying.Segment)
		stats     prometheus.Gatherer
	)

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg, binFrequency)
		observers = append(observers, m)
		sinks = append(sinks, m.ObserveSegment)

		go serveMetrics(ctx, *metricsAddr, metrics.Handler(reg), logger)
		stats = reg
	}

	if *broker != "" {
		pub, err := publish.Connect(publish.Options{
			Broker:       *broker,
			Username:     *mqttUser,
			Password:     *mqttPass,
			Prefix:       *prefix,
			Stats:        stats,
			BinFrequency: binFrequency,
		}, logger)
		if err != nil {
			logger.Fatal("mqtt", "err", err)
		}
		observers = append(observers, pub)
		sinks = append(sinks, pub.Segment)

		go pub.Run(ctx)
	}

	var (
		g   *gocui.Gui
		mon *tui.Monitor
	)
	if !*noui {
		if g, err = gocui.NewGui(gocui.OutputNormal); err != nil {
			logger.Fatal("start user interface", "err", err)
		}
		defer g.Close()

		mon = tui.NewMonitor(g, live, binFrequency, player)
		mon.Title = "cwmon - " + reader.ID
		observers = append(observers, mon)
		sinks = append(sinks, mon.Segment)
	} else {
		sinks = append(sinks, func(s keying.Segment) {
			fmt.Printf("%10.3fs %v\n", s.Start/1000, s)
		})
	}

	seg := keying.NewSegmenter(*minSegment, func(s keying.Segment) {
		for _, sink := range sinks {
			sink(s)
		}
	})

	opts := []tone.Option{tone.WithLogger(logger)}
	for _, o := range observers {
		opts = append(opts, tone.WithObserver(o))
	}

	det, err := tone.New(cfg.Detector(), live, seg, opts...)
	if err != nil {
		logger.Fatal("detector", "err", err)
	}

	logger.Info("monitoring", "input", reader.ID, "rate", reader.SampleRate,
		"passband", det.Passband(), "threshold_db", cfg.ThresholdDB)

	loop := &monitorLoop{
		reader:   reader,
		player:   player,
		filter:   af,
		live:     live,
		detector: det,
		seg:      seg,
		logger:   logger,
	}

	if mon == nil {
		if err := loop.run(ctx); err != nil {
			logger.Error("monitor stopped", "err", err)
		}
		return
	}

	go func() {
		<-ctx.Done()
		g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
	}()

	go func() {
		err := loop.run(ctx)
		switch {
		case err != nil:
			mon.Print(fmt.Sprintf("\nError: %v\n", err))
		case ctx.Err() == nil:
			mon.Print("\nDone!\n")
		}
	}()

	if err := mon.Run(); err != nil {
		logger.Error("user interface", "err", err)
	}
	stop()
}

type monitorLoop struct {
	reader   *audio.Reader
	player   *audio.Writer
	filter   audio.Filter
	live     *config.Live
	detector *tone.Detector
	seg      *keying.Segmenter
	logger   *log.Logger

	samples []complex64
}

// run feeds the detector until the input ends or ctx is done.
func (l *monitorLoop) run(ctx context.Context) error {
	defer l.seg.Flush()

	for ctx.Err() == nil {
		buf, err := l.reader.Read()
		if errors.Is(err, io.EOF) {
			l.logger.Info("end of input", "cycles", l.detector.Cycles(), "elapsed", time.Duration(l.seg.Elapsed())*time.Millisecond)
			return nil
		}
		if err != nil {
			return err
		}

		l.samples = audio.ToComplex(l.samples[:0], buf)
		l.detector.Feed(l.samples)

		if l.player != nil {
			l.play(buf)
		}
	}

	return nil
}

func (l *monitorLoop) play(buf *goaudio.FloatBuffer) {
	if l.filter != nil {
		low, high := l.live.FilterEdges()
		l.filter(buf, low, high)
	}

	if err := l.player.Write(buf); err != nil {
		l.logger.Warn("playback", "err", err)
	}
}

func serveMetrics(ctx context.Context, addr string, h http.Handler, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", "err", err)
	}
}

func newLogger(level, file string, ui bool) (*log.Logger, func(), error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}

	switch {
	case file != "":
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w, closeFn = f, func() { f.Close() }
	case ui:
		// the terminal belongs to the user interface
		w = io.Discard
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
		Prefix:          "cwmon",
	})

	return logger, closeFn, nil
}

func listDevices() {
	fmt.Println()
	pflag.Usage()
	fmt.Println()

	l, err := audio.ListDevices(audio.InOut)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("Available audio devices")
	for i, d := range l {
		fmt.Println("", i+1, d)
	}

	in, out := audio.DefaultDevices()

	fmt.Println()
	if in != "" {
		fmt.Println("Default input device:", in)
	}
	if out != "" {
		fmt.Println("Default output device:", out)
	}
}
