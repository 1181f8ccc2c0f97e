package keying

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func feed(s *Segmenter, pattern string) {
	for _, c := range pattern {
		s.Signal(c == '#', 16)
	}
}

func TestSegmenter_Runs(t *testing.T) {
	var got []Segment
	s := NewSegmenter(30, func(seg Segment) { got = append(got, seg) })

	feed(s, "___#####")
	require.Len(t, got, 1, "space is final once the mark lasted 30 ms")
	assert.Equal(t, Segment{Type: Space, Start: 0, Duration: 48, Cycles: 3}, got[0])

	// one cycle dropout inside the mark
	feed(s, "_####")
	feed(s, "__________")
	require.Len(t, got, 2)
	assert.Equal(t, Segment{Type: Mark, Start: 48, Duration: 160, Cycles: 10}, got[1])
	assert.Equal(t, "<T 160>", got[1].String())

	s.Flush()
	require.Len(t, got, 3)
	assert.Equal(t, Segment{Type: Space, Start: 208, Duration: 160, Cycles: 10}, got[2])
	assert.Equal(t, 368.0, s.Elapsed())
}

func TestSegmenter_SpikeInSpace(t *testing.T) {
	var got []Segment
	s := NewSegmenter(30, func(seg Segment) { got = append(got, seg) })

	feed(s, "######______#______###")
	s.Flush()

	require.Len(t, got, 3)
	assert.Equal(t, Mark, got[0].Type)
	assert.Equal(t, Space, got[1].Type)
	assert.Equal(t, 13*16.0, got[1].Duration)
	assert.Equal(t, Mark, got[2].Type)
	assert.Equal(t, 3, got[2].Cycles)
}

func TestSegmenter_FlushEmpty(t *testing.T) {
	called := false
	s := NewSegmenter(30, func(Segment) { called = true })
	s.Flush()
	assert.False(t, called)

	// a nil sink is fine
	s = NewSegmenter(30, nil)
	assert.NotPanics(t, func() {
		feed(s, "__##__")
		s.Flush()
	})
}

func TestSegmenter_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		decisions := rapid.SliceOfN(rapid.Bool(), 1, 300).Draw(t, "decisions")
		minDuration := float64(rapid.IntRange(0, 5).Draw(t, "min") * 16)

		var got []Segment
		s := NewSegmenter(minDuration, func(seg Segment) { got = append(got, seg) })
		for _, d := range decisions {
			s.Signal(d, 16)
		}
		s.Flush()

		require.NotEmpty(t, got)

		total, cycles := 0.0, 0
		for i, seg := range got {
			total += seg.Duration
			cycles += seg.Cycles

			if i > 0 {
				require.NotEqual(t, got[i-1].Type, seg.Type, "segments alternate")
				require.Equal(t, got[i-1].End(), seg.Start, "segments are contiguous")
			}
			if i > 0 && i < len(got)-1 {
				require.GreaterOrEqual(t, seg.Duration, minDuration)
			}
		}

		assert.Equal(t, float64(len(decisions))*16, total)
		assert.Equal(t, len(decisions), cycles)
	})
}
