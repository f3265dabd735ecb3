// Package gmii models the byte-parallel GMII bus: one data byte per active
// clock edge, with separate data-valid and data-error lines. The low-speed
// MII-compatible fold (one nibble per edge, low nibble first) is selectable
// per frame through the MIIMode field, mirroring a PHY's mii_select pin.
package gmii

import (
	"log/slog"

	"github.com/phybus/ethsim"
	"github.com/phybus/ethsim/internal"
)

// Sample is one active edge's worth of GMII signal values.
type Sample struct {
	Data  uint8
	Valid bool // data valid (dv/en)
	Err   bool // data error (er)
}

// DefaultIFG is the default inter-frame gap in byte-times.
const DefaultIFG = 12

// Source drives frames from a queue onto the bus, one Sample per active
// edge. All methods must be called from the edge callback's goroutine.
type Source struct {
	// Queue feeds the source. Enqueue blocks while the occupancy limits
	// are reached.
	Queue *ethsim.Queue[*ethsim.Frame]
	// IFG is the idle period between frames in byte-times; a minimum of
	// one cycle is always inserted.
	IFG int
	// MIIMode folds each byte into two nibble cycles, sampled at frame
	// start.
	MIIMode bool
	// Now queries the simulated time. Optional; capture fields stay
	// TimeUnset without it.
	Now func() int64
	// Logger receives frame-level events. Optional.
	Logger *slog.Logger

	cur    *ethsim.Frame
	data   []byte
	qual   []byte
	off    int
	ifgCnt int
	active bool
	out    Sample
}

// NewSource returns a Source pulling from queue with default configuration.
// A nil queue allocates an unbounded one.
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
			s.startFrame(f)
		}
	}
	if s.cur == nil {
		s.out = Sample{}
		s.active = false
		return s.out
	}
	d := s.data[s.off]
	if s.cur.SimTimeSFD == ethsim.TimeUnset && (d == ethsim.SFD || d == 0x0D) {
		s.cur.SimTimeSFD = s.now()
	}
	s.out = Sample{Data: d, Valid: true, Err: s.qual[s.off] != 0}
	s.off++
	if s.off >= len(s.data) {
		s.finishFrame()
	}
	return s.out
}

func (s *Source) startFrame(f *ethsim.Frame) {
	f.SimTimeStart = s.now()
	f.SimTimeSFD = ethsim.TimeUnset
	f.SimTimeEnd = ethsim.TimeUnset
	f.Normalize()
	internal.LogAttrs(s.Logger, slog.LevelDebug, "gmii:tx-frame", slog.Int("len", len(f.Data)), slog.Bool("mii", s.MIIMode))
	if s.MIIMode {
		s.data, s.qual = internal.ExpandNibbles(f.Data, f.Qual, false)
	} else {
		s.data, s.qual = f.Data, f.Qual
	}
	s.cur = f
	s.off = 0
	s.active = true
}

func (s *Source) finishFrame() {
	s.ifgCnt = max(s.IFG, 1)
	s.cur.SimTimeEnd = s.now()
	s.cur.Complete()
	s.cur = nil
	s.data, s.qual = nil, nil
}

// Idle reports whether no frame is queued or in flight.
func (s *Source) Idle() bool { return s.Queue.Empty() && !s.active }

// Reset flushes an in-flight frame, firing its completion notification with
// the end time unset, and returns the outputs to idle. Queued frames stay
// queued.
func (s *Source) Reset() {
	if s.cur != nil {
		internal.LogAttrs(s.Logger, slog.LevelWarn, "gmii:tx-flush", slog.Int("len", len(s.cur.Data)))
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

// Sink monitors the bus, assembling valid cycles into frames pushed onto
// its queue. A frame completes when valid deasserts.
type Sink struct {
	// Queue receives completed frames.
	Queue *ethsim.Queue[*ethsim.Frame]
	// MIIMode folds nibble-serial captures back into bytes, sampled at
	// frame end.
	MIIMode bool
	Now     func() int64
	Logger  *slog.Logger

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

// Edge consumes one active clock edge's bus sample. Disabled edges are
// ignored.
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
		s.finishFrame()
	}
	if s.cur == nil {
		return
	}
	if s.cur.SimTimeSFD == ethsim.TimeUnset && (in.Data == ethsim.SFD || in.Data == 0x0D) {
		s.cur.SimTimeSFD = s.now()
	}
	s.cur.Data = append(s.cur.Data, in.Data)
	var e byte
	if in.Err {
		e = 1
	}
	s.cur.Qual = append(s.cur.Qual, e)
}

func (s *Sink) finishFrame() {
	f := s.cur
	s.cur = nil
	if s.MIIMode {
		f.Data, f.Qual = internal.FoldNibbles(f.Data, f.Qual, ethsim.SFD)
	}
	f.Compact()
	f.SimTimeEnd = s.now()
	internal.LogAttrs(s.Logger, slog.LevelDebug, "gmii:rx-frame", slog.Int("len", len(f.Data)))
	s.Queue.Enqueue(f)
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
