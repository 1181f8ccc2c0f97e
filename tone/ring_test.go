package tone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRing_WrapAround(t *testing.T) {
	r := NewRing(8)

	r.Push([]complex64{1, 2, 3, 4, 5, 6})
	r.Release(5)
	r.Push([]complex64{7, 8, 9, 10, 11, 12})

	require.Equal(t, 7, r.Available())
	assert.Equal(t, 1, r.Free())

	got := make([]complex64, 7)
	r.Peek(got)
	assert.Equal(t, []complex64{6, 7, 8, 9, 10, 11, 12}, got)

	// peek does not consume
	r.Peek(got[:2])
	assert.Equal(t, []complex64{6, 7}, got[:2])
	assert.Equal(t, 7, r.Available())
}

func TestRing_ContractViolations(t *testing.T) {
	r := NewRing(4)
	r.Push([]complex64{1, 2, 3})

	assert.Panics(t, func() { r.Push([]complex64{4, 5}) }, "overflow")
	assert.Panics(t, func() { r.Peek(make([]complex64, 4)) }, "underflow")
	assert.Panics(t, func() { r.Release(4) }, "over release")
	assert.Panics(t, func() { r.Release(-1) })
	assert.Panics(t, func() { NewRing(0) })

	// nothing changed
	assert.Equal(t, 3, r.Available())
}

func TestRing_FIFO(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRing(rapid.IntRange(1, 64).Draw(t, "capacity"))

		var model []complex64
		next := complex64(0)

		for range rapid.IntRange(1, 50).Draw(t, "steps") {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				batch := make([]complex64, rapid.IntRange(0, r.Free()).Draw(t, "push"))
				for i := range batch {
					batch[i] = next
					next += 1
				}
				r.Push(batch)
				model = append(model, batch...)

			case 1:
				got := make([]complex64, rapid.IntRange(0, r.Available()).Draw(t, "peek"))
				r.Peek(got)
				if len(got) > 0 {
					assert.Equal(t, model[:len(got)], got)
				}

			case 2:
				n := rapid.IntRange(0, r.Available()).Draw(t, "release")
				r.Release(n)
				model = model[n:]
			}

			require.Equal(t, len(model), r.Available())
			require.Equal(t, r.Cap(), r.Available()+r.Free())
		}
	})
}
