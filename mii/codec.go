// Package mii models the nibble-serial MII bus: one 4-bit data transfer per
// active clock edge, low nibble of each byte first, with separate data-valid
// and data-error lines.
package mii

import (
	"log/slog"

	"github.com/phybus/ethsim"
	"github.com/phybus/ethsim/internal"
)

// Sample is one active edge's worth of MII signal values. Data carries a
// single nibble in its low 4 bits.
type Sample struct {
	Data  uint8
	Valid bool // data valid (dv/en)
	Err   bool // data error (er)
}

// DefaultIFG is the default inter-frame gap in byte-times.
const DefaultIFG = 12

// Source drives frames from a queue onto the bus, one nibble Sample per
// active edge.
type Source struct {
	Queue *ethsim.Queue[*ethsim.Frame]
	// IFG is the idle period between frames in byte-times.
	IFG int
	// Now queries the simulated time. Optional.
	Now    func() int64
	Logger *slog.Logger

	cur    *ethsim.Frame
	data   []byte
	qual   []byte
	off    int
	ifgCnt int
	active bool
	out    Sample
}

// NewSource returns a Source pulling from queue. A nil queue allocates an
// unbounded one.
func NewSource(queue *ethsim.Queue[*ethsim.Frame]) *Source {
	if queue == nil {
		queue = ethsim.NewQueue[*ethsim.Frame](0, 0)
	}
	return &Source{Queue: queue, IFG: DefaultIFG}
}

// Edge advances the source by one active clock edge and returns the bus
// sample to drive. Disabled edges hold the previous output.
func (s *Source) Edge(enabled bool) Sample {
	if !enabled {
		return s.out
	}
	if s.ifgCnt > 0 {
		s.ifgCnt--
	} else if s.cur == nil {
		if f, ok := s.Queue.TryDequeue(); ok {
			f.SimTimeStart = s.now()
			f.SimTimeSFD = ethsim.TimeUnset
			f.SimTimeEnd = ethsim.TimeUnset
			f.Normalize()
			internal.LogAttrs(s.Logger, slog.LevelDebug, "mii:tx-frame", slog.Int("len", len(f.Data)))
			s.data, s.qual = internal.ExpandNibbles(f.Data, f.Qual, false)
			s.cur = f
			s.off = 0
			s.active = true
		}
	}
	if s.cur == nil {
		s.out = Sample{}
		s.active = false
		return s.out
	}
	d := s.data[s.off]
	if s.cur.SimTimeSFD == ethsim.TimeUnset && d == 0x0D {
		s.cur.SimTimeSFD = s.now()
	}
	s.out = Sample{Data: d, Valid: true, Err: s.qual[s.off] != 0}
	s.off++
	if s.off >= len(s.data) {
		s.ifgCnt = max(s.IFG, 1)
		s.cur.SimTimeEnd = s.now()
		s.cur.Complete()
		s.cur = nil
		s.data, s.qual = nil, nil
	}
	return s.out
}

// Idle reports whether no frame is queued or in flight.
func (s *Source) Idle() bool { return s.Queue.Empty() && !s.active }

// Reset flushes an in-flight frame and returns the outputs to idle.
func (s *Source) Reset() {
	if s.cur != nil {
		internal.LogAttrs(s.Logger, slog.LevelWarn, "mii:tx-flush", slog.Int("len", len(s.cur.Data)))
		s.cur.SimTimeEnd = ethsim.TimeUnset
		s.cur.Complete()
		s.cur = nil
		s.data, s.qual = nil, nil
	}
	s.out = Sample{}
	s.active = false
	s.ifgCnt = 0
}

func (s *Source) now() int64 {
	if s.Now == nil {
		return ethsim.TimeUnset
	}
	return s.Now()
}

// Sink monitors the bus, folding nibble cycles back into byte frames pushed
// onto its queue when valid deasserts.
type Sink struct {
	Queue  *ethsim.Queue[*ethsim.Frame]
	Now    func() int64
	Logger *slog.Logger

	cur *ethsim.Frame
}

// NewSink returns a Sink pushing to queue. A nil queue allocates an
// unbounded one.
func NewSink(queue *ethsim.Queue[*ethsim.Frame]) *Sink {
	if queue == nil {
		queue = ethsim.NewQueue[*ethsim.Frame](0, 0)
	}
	return &Sink{Queue: queue}
}

// Edge consumes one active clock edge's bus sample.
func (s *Sink) Edge(enabled bool, in Sample) {
	if !enabled {
		return
	}
	if s.cur == nil {
		if in.Valid {
			s.cur = ethsim.NewFrame(nil, []byte{})
			s.cur.SimTimeStart = s.now()
		}
	} else if !in.Valid {
		f := s.cur
		s.cur = nil
		f.Data, f.Qual = internal.FoldNibbles(f.Data, f.Qual, ethsim.SFD)
		f.Compact()
		f.SimTimeEnd = s.now()
		internal.LogAttrs(s.Logger, slog.LevelDebug, "mii:rx-frame", slog.Int("len", len(f.Data)))
		s.Queue.Enqueue(f)
	}
	if s.cur == nil {
		return
	}
	if s.cur.SimTimeSFD == ethsim.TimeUnset && in.Data == 0x0D {
		s.cur.SimTimeSFD = s.now()
	}
	s.cur.Data = append(s.cur.Data, in.Data)
	var e byte
	if in.Err {
		e = 1
	}
	s.cur.Qual = append(s.cur.Qual, e)
}

// Idle reports whether no frame is being assembled.
func (s *Sink) Idle() bool { return s.cur == nil }

// Reset discards a partially assembled frame.
func (s *Sink) Reset() { s.cur = nil }

func (s *Sink) now() int64 {
	if s.Now == nil {
		return ethsim.TimeUnset
	}
	return s.Now()
}
