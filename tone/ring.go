package tone

import "fmt"

// Ring is a fixed capacity FIFO of audio samples. It decouples the block
// size of the audio source from the analysis frame size.
//
// Ring is not safe for concurrent use.
type Ring struct {
	data []complex64
	head int // oldest sample
	size int
}

// NewRing allocates a ring holding up to capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic(fmt.Sprintf("tone: ring capacity %d", capacity))
	}

	return &Ring{data: make([]complex64, capacity)}
}

func (r *Ring) Cap() int       { return len(r.data) }
func (r *Ring) Available() int { return r.size }
func (r *Ring) Free() int      { return len(r.data) - r.size }

// Push appends samples. Pushing more than Free() samples is a caller bug.
func (r *Ring) Push(samples []complex64) {
	if len(samples) > r.Free() {
		panic(fmt.Sprintf("tone: ring overflow (push %d, free %d)", len(samples), r.Free()))
	}

	tail := (r.head + r.size) % len(r.data)
	n := copy(r.data[tail:], samples)
	copy(r.data, samples[n:])

	r.size += len(samples)
}

// Peek copies the oldest len(dst) samples into dst without removing them.
func (r *Ring) Peek(dst []complex64) {
	if len(dst) > r.size {
		panic(fmt.Sprintf("tone: ring underflow (peek %d, available %d)", len(dst), r.size))
	}

	n := copy(dst, r.data[r.head:min(r.head+len(dst), len(r.data))])
	copy(dst[n:], r.data)
}

// Release discards the oldest n samples.
func (r *Ring) Release(n int) {
	if n < 0 || n > r.size {
		panic(fmt.Sprintf("tone: ring release %d, available %d", n, r.size))
	}

	r.head = (r.head + n) % len(r.data)
	r.size -= n
}
