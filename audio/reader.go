package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/transforms"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

var ErrInvalidWave = errors.New("invalid WAV file")

// Reader delivers mono blocks scaled to [-1, 1] from a sound device or a
// WAV file.
type Reader struct {
	ID         string // device name or file name
	SampleRate int
	Channels   int
	BlockSize  int // frames per Read

	// Normalize scales every block to a peak of 1.
	Normalize bool

	mu sync.Mutex // held by Read

	stream    *portaudio.Stream
	streamBuf audio.Float32Buffer

	dec    *wav.Decoder
	wavBuf audio.IntBuffer
	scale  float64
	offset int
}

// OpenWave reads PCM samples from r.
func OpenWave(r io.ReadSeeker, blockSize int) (*Reader, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWave
	}

	depth := int(dec.BitDepth)
	full := audio.IntMaxSignedValue(depth)
	if full == 0 {
		return nil, fmt.Errorf("%w: %d bit samples", ErrInvalidWave, depth)
	}

	offset := 0
	if depth == 8 { // unsigned
		offset = 128
	}

	f := dec.Format()

	return &Reader{
		SampleRate: f.SampleRate,
		Channels:   f.NumChannels,
		BlockSize:  blockSize,
		dec:        dec,
		wavBuf:     audio.IntBuffer{Format: f, Data: make([]int, blockSize*f.NumChannels)},
		scale:      1 / float64(full),
		offset:     offset,
	}, nil
}

// OpenStream starts capturing from dev, a 1-based device index or a name
// prefix.
func OpenStream(dev string, sampleRate, blockSize int) (*Reader, error) {
	info, err := findDevice(dev)
	if err != nil {
		return nil, err
	}

	const numChannels = 1

	p := portaudio.HighLatencyParameters(info, nil)
	p.Input.Channels = numChannels
	p.Output.Channels = 0
	p.SampleRate = float64(sampleRate)
	p.FramesPerBuffer = blockSize

	buf32 := audio.Float32Buffer{
		Format: &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:   make([]float32, blockSize),
	}

	stream, err := portaudio.OpenStream(p, buf32.Data)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start input: %w", err)
	}

	return &Reader{
		ID:         info.Name,
		SampleRate: sampleRate,
		Channels:   numChannels,
		BlockSize:  blockSize,
		stream:     stream,
		streamBuf:  buf32,
	}, nil
}

// Read returns the next block. It returns io.EOF at the end of a file.
func (r *Reader) Read() (*audio.FloatBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fb *audio.FloatBuffer

	switch {
	case r.stream != nil:
		if err := r.stream.Read(); err != nil {
			return nil, err
		}
		fb = r.streamBuf.AsFloatBuffer()

	case r.dec != nil:
		n, err := r.dec.PCMBuffer(&r.wavBuf)
		if err != nil {
			return nil, err
		}
		// the last block may be short
		n -= n % r.Channels
		if n == 0 {
			return nil, io.EOF
		}

		fb = &audio.FloatBuffer{
			Format: &audio.Format{NumChannels: r.Channels, SampleRate: r.SampleRate},
			Data:   make([]float64, n),
		}
		for i, v := range r.wavBuf.Data[:n] {
			fb.Data[i] = float64(v-r.offset) * r.scale
		}

	default:
		return nil, errors.New("no audio source available")
	}

	transforms.MonoDownmix(fb)
	if r.Normalize {
		transforms.NormalizeMax(fb)
	}

	return fb, nil
}

// Rewind restarts a file from the beginning.
func (r *Reader) Rewind() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dec != nil {
		return r.dec.Rewind()
	}
	return nil
}

// Close stops the stream once the current Read has returned.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.stream != nil {
		err = errors.Join(r.stream.Stop(), r.stream.Close())
		r.stream = nil
	}
	r.dec = nil

	return err
}

// ToComplex appends buf as complex samples with a zero imaginary part.
func ToComplex(dst []complex64, buf *audio.FloatBuffer) []complex64 {
	for _, v := range buf.Data {
		dst = append(dst, complex(float32(v), 0))
	}
	return dst
}
