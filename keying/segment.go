// Package keying turns the detector's per-cycle tone decisions into keying
// segments: alternating runs of mark (tone) and space (silence).
package keying

import (
	"fmt"
)

type Type int

const (
	Space Type = iota
	Mark
)

func (t Type) String() string {
	if t == Mark {
		return "T"
	}
	return "S"
}

// Segment is one run of marks or spaces. Times are in milliseconds since
// the first decision.
type Segment struct {
	Type     Type
	Start    float64
	Duration float64
	Cycles   int
}

func (s Segment) End() float64 {
	return s.Start + s.Duration
}

func (s Segment) String() string {
	return fmt.Sprintf("<%v %v>", s.Type, int(s.Duration))
}

// Segmenter collects decisions into segments and hands each finished
// segment to emit. Runs shorter than MinDuration are glitches and are merged
// into the segment before them, so a segment is only final once the run after
// it has lasted MinDuration.
//
// Signal and Flush must be called from the same goroutine.
type Segmenter struct {
	MinDuration float64

	emit    func(Segment)
	clock   float64
	cur     Segment
	pending *Segment
	started bool
}

func NewSegmenter(minDuration float64, emit func(Segment)) *Segmenter {
	if emit == nil {
		emit = func(Segment) {}
	}

	return &Segmenter{MinDuration: minDuration, emit: emit}
}

// Signal implements tone.Decoder.
func (s *Segmenter) Signal(present bool, elapsedMs float64) {
	t := Space
	if present {
		t = Mark
	}

	switch {
	case !s.started:
		s.cur = Segment{Type: t, Start: s.clock}
		s.started = true
	case t != s.cur.Type:
		s.endRun(t)
	}

	s.cur.Duration += elapsedMs
	s.cur.Cycles++
	s.clock += elapsedMs

	if s.pending != nil && s.cur.Duration >= s.MinDuration {
		s.emit(*s.pending)
		s.pending = nil
	}
}

func (s *Segmenter) endRun(next Type) {
	if s.pending != nil && s.cur.Duration < s.MinDuration {
		// glitch: the previous segment goes on
		s.pending.Duration += s.cur.Duration
		s.pending.Cycles += s.cur.Cycles
		s.cur = *s.pending
		s.pending = nil
		return
	}

	done := s.cur
	s.pending = &done
	s.cur = Segment{Type: next, Start: s.clock}
}

// Flush emits everything held back, including the running segment, and
// starts over.
func (s *Segmenter) Flush() {
	if s.pending != nil {
		s.emit(*s.pending)
	}
	if s.started && s.cur.Cycles > 0 {
		s.emit(s.cur)
	}

	s.pending = nil
	s.started = false
	s.cur = Segment{}
}

// Elapsed returns the time covered by all decisions so far.
func (s *Segmenter) Elapsed() float64 {
	return s.clock
}
