package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// Writer plays mono blocks on an output device.
type Writer struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    audio.Float32Buffer
	volume float32
	mute   bool
}

func NewWriter(dev string, sampleRate, blockSize int) (*Writer, error) {
	info, err := findDevice(dev)
	if err != nil {
		return nil, err
	}

	const numChannels = 1

	p := portaudio.HighLatencyParameters(nil, info)
	p.Input.Channels = 0
	p.Output.Channels = numChannels
	p.SampleRate = float64(sampleRate)
	p.FramesPerBuffer = blockSize

	buf32 := audio.Float32Buffer{
		Format: &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:   make([]float32, blockSize),
	}

	stream, err := portaudio.OpenStream(p, buf32.Data)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start output: %w", err)
	}

	return &Writer{stream: stream, buf: buf32, volume: 1}, nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stream == nil {
		return nil
	}

	err := errors.Join(w.stream.Stop(), w.stream.Close())
	w.stream = nil
	return err
}

func (w *Writer) Mute(m bool) {
	w.mu.Lock()
	w.mute = m
	w.mu.Unlock()
}

func (w *Writer) Muted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mute
}

// SetVolume sets the linear playback gain, clamped to [0, 4].
func (w *Writer) SetVolume(v float32) {
	w.mu.Lock()
	w.volume = min(max(v, 0), 4)
	w.mu.Unlock()
}

func (w *Writer) Volume() float32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.volume
}

// Write plays b, in as many device buffers as it takes. The last one is
// padded with silence.
func (w *Writer) Write(b *audio.FloatBuffer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mute || w.stream == nil {
		return nil
	}

	out := w.buf.Data
	for data := b.Data; len(data) > 0; {
		n := min(len(out), len(data))
		for i, v := range data[:n] {
			out[i] = float32(v) * w.volume
		}
		clear(out[n:])
		data = data[n:]

		if err := w.stream.Write(); err != nil {
			return err
		}
	}

	return nil
}

// WriteWave encodes samples in [-1, 1] as 16 bit mono PCM.
func WriteWave(ws io.WriteSeeker, samples []float64, sampleRate int) error {
	const bitDepth = 16

	full := float64(audio.IntMaxSignedValue(bitDepth))
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, v := range samples {
		buf.Data[i] = int(math.Round(min(max(v, -1), 1) * full))
	}

	enc := wav.NewEncoder(ws, sampleRate, bitDepth, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wave: %w", err)
	}

	return enc.Close()
}
