// Package tui is the terminal front end of cwmon.
package tui

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	component "github.com/j-04/gocui-component"
	"github.com/jroimartin/gocui"

	"cwtone/audio"
	"cwtone/config"
	"cwtone/keying"
	"cwtone/tone"
)

const redrawInterval = 100 * time.Millisecond

// Monitor shows the detector state and the keying tape.
type Monitor struct {
	Title string

	// TapeUnit is the duration in ms of one tape character.
	TapeUnit float64

	gui    *gocui.Gui
	vinfo  *gocui.View
	vmain  *gocui.View
	vcmd   *gocui.View
	live   *config.Live
	player *audio.Writer
	freq   func(bin int) float64

	startTime time.Time

	mu       sync.Mutex
	last     tone.Decision
	spectrum []float64 // copy of last.Spectrum
	lastDraw time.Time
}

// NewMonitor lays out the views on g. player may be nil.
func NewMonitor(g *gocui.Gui, live *config.Live, binFrequency func(bin int) float64, player *audio.Writer) *Monitor {
	m := &Monitor{
		Title:     "cwmon - CW tone monitor",
		TapeUnit:  24,
		gui:       g,
		live:      live,
		player:    player,
		freq:      binFrequency,
		startTime: time.Now(),
	}

	g.SetManagerFunc(m.Layout)
	return m
}

func (m *Monitor) Layout(g *gocui.Gui) (err error) {
	maxX, maxY := g.Size()

	m.vinfo, err = g.SetView("info", 0, 0, maxX-1, 2)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		m.vinfo.Title = m.Title
	}

	m.vmain, err = g.SetView("main", 0, 3, maxX-1, maxY-5)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		m.vmain.Title = "Keying"
		m.vmain.Wrap = true
		m.vmain.Autoscroll = true
	}

	m.vcmd, err = g.SetView("cmdline", 0, maxY-4, maxX-1, maxY-1)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		m.vcmd.Title = "Available commands"
		fmt.Fprintf(m.vcmd, "^C/^Q: quit  b: -bandwidth  d: toggle decoder")
		if m.player != nil {
			fmt.Fprintf(m.vcmd, "  v: -volume")
		}
		fmt.Fprintf(m.vcmd, "\nc: clear     B: +bandwidth")
		if m.player != nil {
			fmt.Fprintf(m.vcmd, "                     V: +volume  m: toggle audio/mute")
		}
	}

	m.mu.Lock()
	d := m.last
	d.Spectrum = slices.Clone(m.spectrum)
	m.mu.Unlock()

	m.vinfo.Clear()
	m.vinfo.SetOrigin(0, 0)

	low, high := m.live.FilterEdges()
	fmt.Fprint(m.vinfo, InfoLine(d, m.freq, low, high, m.live.DecoderEnabled()))

	if m.player != nil {
		vol := "mute"
		if !m.player.Muted() {
			vol = fmt.Sprint(int(m.player.Volume()*10 + 0.5))
		}
		fmt.Fprintf(m.vinfo, "  %8v  vol: %s", time.Since(m.startTime).Truncate(time.Second), vol)
	}

	return nil
}

// InfoLine formats the status line for the last decision.
func InfoLine(d tone.Decision, binFrequency func(int) float64, low, high float64, decoder bool) string {
	state := "--"
	toneHz := "   -"
	if d.Present {
		state = "ON"
		toneHz = fmt.Sprintf("%4.0f", binFrequency(d.Bin))
	}

	gate := "off"
	if decoder {
		gate = "on"
	}

	bars := Bars(d.Spectrum, d.NoiseDB, d.NoiseDB+40)

	return fmt.Sprintf("[%v] %s Tone:%shz  SNR:%5.1fdB  Peak:%6.1f  Noise:%6.1f  Filter:%v-%vhz  Decoder:%s",
		string(bars[:]), state, toneHz, d.SNR, d.PeakDB, d.NoiseDB, low, high, gate)
}

func (m *Monitor) SetKeyBinding() error {
	quit := func(g *gocui.Gui, v *gocui.View) error {
		return gocui.ErrQuit
	}

	if err := m.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	if err := m.gui.SetKeybinding("", gocui.KeyCtrlQ, gocui.ModNone, quit); err != nil {
		return err
	}

	clearscreen := func(g *gocui.Gui, v *gocui.View) error {
		m.vmain.Clear()
		return nil
	}

	if err := m.gui.SetKeybinding("", 'c', gocui.ModNone, clearscreen); err != nil {
		return err
	}

	toggleDecoder := func(g *gocui.Gui, v *gocui.View) error {
		m.live.SetDecoderEnabled(!m.live.DecoderEnabled())
		return nil
	}

	if err := m.gui.SetKeybinding("", 'd', gocui.ModNone, toggleDecoder); err != nil {
		return err
	}

	// bandwidth up/down around the filter centre: B / b
	bandwidth := func(delta float64) func(g *gocui.Gui, v *gocui.View) error {
		return func(g *gocui.Gui, v *gocui.View) error {
			low, high := m.live.FilterEdges()
			// too narrow or past Nyquist: keep the current filter
			_ = m.live.SetFilter(low-delta/2, high+delta/2)
			return nil
		}
	}

	if err := m.gui.SetKeybinding("", 'B', gocui.ModNone, bandwidth(50)); err != nil {
		return err
	}
	if err := m.gui.SetKeybinding("", 'b', gocui.ModNone, bandwidth(-50)); err != nil {
		return err
	}

	if m.player == nil {
		return nil
	}

	toggleMute := func(g *gocui.Gui, v *gocui.View) error {
		m.player.Mute(!m.player.Muted())
		return nil
	}

	if err := m.gui.SetKeybinding("", 'm', gocui.ModNone, toggleMute); err != nil {
		return err
	}

	volume := func(delta float32) func(g *gocui.Gui, v *gocui.View) error {
		return func(g *gocui.Gui, v *gocui.View) error {
			m.player.SetVolume(m.player.Volume() + delta)
			return nil
		}
	}

	if err := m.gui.SetKeybinding("", 'V', gocui.ModNone, volume(0.1)); err != nil {
		return err
	}
	return m.gui.SetKeybinding("", 'v', gocui.ModNone, volume(-0.1))
}

// Observe implements tone.Observer. The info line is redrawn at most every
// 100 ms.
func (m *Monitor) Observe(d tone.Decision) {
	m.mu.Lock()
	m.spectrum = append(m.spectrum[:0], d.Spectrum...)
	m.last = d
	m.last.Spectrum = m.spectrum
	due := time.Since(m.lastDraw) >= redrawInterval
	if due {
		m.lastDraw = time.Now()
	}
	m.mu.Unlock()

	if due {
		m.gui.Update(func(*gocui.Gui) error { return nil })
	}
}

// Segment appends a keying segment to the tape.
func (m *Monitor) Segment(s keying.Segment) {
	m.Print(Tape(s, m.TapeUnit))
}

func (m *Monitor) Print(s string) {
	m.gui.Update(func(g *gocui.Gui) error {
		if m.vmain != nil {
			fmt.Fprint(m.vmain, s)
		}
		return nil
	})
}

// Run shows the monitor until the user quits.
func (m *Monitor) Run() error {
	if err := m.SetKeyBinding(); err != nil {
		return err
	}

	if err := m.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

var (
	errFormSelect = errors.New("form-selected")
	ErrCancelled  = errors.New("no device selected")
)

// SelectDevice asks for an input device and returns its name.
func SelectDevice() (dev string, err error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return "", err
	}
	defer g.Close()

	list, err := audio.ListDevices(audio.In)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", errors.New("no input devices")
	}

	form := component.NewForm(g, "Select input device", 8, len(list), 0, 0)
	sel := form.AddSelect("Device:", 8, 40).AddOptions(list...)

	form.AddButton("Select", func(g *gocui.Gui, v *gocui.View) error {
		dev = sel.GetSelected()
		form.Close(g, v)
		return errFormSelect
	})

	form.AddButton("Cancel", func(g *gocui.Gui, v *gocui.View) error {
		form.Close(g, v)
		return ErrCancelled
	})

	form.Draw()

	switch err := g.MainLoop(); err {
	case errFormSelect:
		return dev, nil
	case ErrCancelled:
		return "", ErrCancelled
	default:
		return "", err
	}
}
