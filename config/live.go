package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

type receiver struct {
	low, high float64
	decoder   bool
}

// Live holds the receiver settings the detector reads every cycle. Reads
// are lock free; updates are validated against the fixed settings the
// detector was built with.
type Live struct {
	base *File

	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[receiver]
}

func NewLive(f *File) *Live {
	l := &Live{base: f}
	l.cur.Store(&receiver{low: f.FilterLow, high: f.FilterHigh, decoder: f.Decoder})
	return l
}

func (l *Live) FilterEdges() (float64, float64) {
	r := l.cur.Load()
	return r.low, r.high
}

func (l *Live) DecoderEnabled() bool {
	return l.cur.Load().decoder
}

// SetFilter changes the filter edges, unless they would leave the detector
// without a usable passband.
func (l *Live) SetFilter(low, high float64) error {
	if err := l.base.checkFilter(low, high); err != nil {
		return err
	}

	l.update(func(r *receiver) { r.low, r.high = low, high })
	return nil
}

func (l *Live) SetDecoderEnabled(on bool) {
	l.update(func(r *receiver) { r.decoder = on })
}

func (l *Live) update(fn func(r *receiver)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := *l.cur.Load()
	fn(&next)
	l.cur.Store(&next)
}

// Apply takes the receiver settings of a reloaded file. It reports the
// fixed settings that differ and need a restart.
func (l *Live) Apply(f *File) (restart []string, err error) {
	if err := l.SetFilter(f.FilterLow, f.FilterHigh); err != nil {
		return nil, err
	}
	l.SetDecoderEnabled(f.Decoder)

	old := *l.base
	old.FilterLow, old.FilterHigh, old.Decoder = f.FilterLow, f.FilterHigh, f.Decoder
	if old != *f {
		restart = append(restart, "detector parameters")
	}

	return restart, nil
}

// Watch reloads path whenever it changes and applies the receiver settings
// to l, until ctx is done. Invalid files are logged and skipped.
func Watch(ctx context.Context, path string, l *Live, logger *log.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer w.Close()

	// editors replace files, so watch the directory
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}

			f, err := Load(abs)
			if err != nil {
				logger.Warn("config reload skipped", "path", abs, "err", err)
				continue
			}

			restart, err := l.Apply(f)
			if err != nil {
				logger.Warn("config reload skipped", "path", abs, "err", err)
				continue
			}

			low, high := l.FilterEdges()
			logger.Info("config reloaded", "filter_low", low, "filter_high", high, "decoder", l.DecoderEnabled())
			if len(restart) > 0 {
				logger.Warn("config changes need a restart", "changed", restart)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher", "err", err)
		}
	}
}
