// Package xgmii models the 10G media-independent interface: 4 or 8 byte
// lanes per cycle with one control bit per lane. Idle cycles carry the idle
// control character on every lane; a frame starts with the start control
// character replacing the first preamble byte and ends with a terminate
// character. On the 64-bit path the start lane is constrained to lane 0 or
// lane 4 and selected by the deficit idle count algorithm of IEEE 802.3
// clause 46.
package xgmii

import (
	"log/slog"

	"github.com/phybus/ethsim"
	"github.com/phybus/ethsim/internal"
)

// Sample is one cycle's worth of XGMII signal values. Lane k occupies data
// bits 8k..8k+7 and control bit k.
type Sample struct {
	Data uint64
	Ctrl uint8
}

// Lane returns lane k's data byte and control bit.
func (smp Sample) Lane(k int) (d uint8, ctrl bool) {
	return uint8(smp.Data >> (k * 8)), smp.Ctrl>>k&1 != 0
}

// DefaultIFG is the default inter-frame gap in byte-times.
const DefaultIFG = 12

// Idle returns the all-lanes idle cycle for a bus lanes bytes wide.
func Idle(lanes int) Sample {
	var smp Sample
	for k := 0; k < lanes; k++ {
		smp.Data |= uint64(ethsim.CharIdle) << (k * 8)
		smp.Ctrl |= 1 << k
	}
	return smp
}

// Source drives frames from a queue onto the bus, one Sample per cycle.
type Source struct {
	Queue *ethsim.Queue[*ethsim.Frame]
	// Lanes is the bus width in bytes, 4 or 8.
	Lanes int
	// IFG is the requested inter-frame gap in byte-times. The gap actually
	// emitted varies with lane alignment per the DIC algorithm.
	IFG int
	// EnableDIC allows the deficit idle count to shrink individual gaps to
	// keep the average at IFG. On by default from NewSource.
	EnableDIC bool
	// ForceOffsetStart forces the next start onto lane 4 when the width
	// allows it (test hook).
	ForceOffsetStart bool
	Now              func() int64
	Logger           *slog.Logger

	cur    *ethsim.Frame
	data   []byte
	qual   []byte
	off    int
	ifgCnt int
	dic    int
	active bool
	out    Sample
}

// NewSource returns a Source pulling from queue, lanes bytes wide (4 or 8),
// with DIC enabled. A nil queue allocates an unbounded one.
func NewSource(queue *ethsim.Queue[*ethsim.Frame], lanes int) *Source {
	if lanes != 4 && lanes != 8 {
		panic("xgmii: lanes must be 4 or 8")
	}
	if queue == nil {
		queue = ethsim.NewQueue[*ethsim.Frame](0, 0)
	}
	return &Source{Queue: queue, Lanes: lanes, IFG: DefaultIFG, EnableDIC: true, out: Idle(lanes)}
}

// Edge advances the source by one cycle and returns the bus sample to
// drive. Disabled cycles hold the previous output.
func (s *Source) Edge(enabled bool) Sample {
	if !enabled {
		return s.out
	}
	if s.ifgCnt+s.dic > s.Lanes-1 || (!s.EnableDIC && s.ifgCnt > 4) {
		// in IFG
		s.ifgCnt -= s.Lanes
		if s.ifgCnt < 0 {
			if s.EnableDIC {
				s.dic = max(s.dic+s.ifgCnt, 0)
			}
			s.ifgCnt = 0
		}
	} else if s.cur == nil {
		if f, ok := s.Queue.TryDequeue(); ok {
			s.startFrame(f)
		} else {
			s.dic = 0
			s.ifgCnt = 0
		}
	}
	if s.cur == nil {
		s.out = Idle(s.Lanes)
		s.active = false
		return s.out
	}
	var smp Sample
	for k := 0; k < s.Lanes; k++ {
		if s.cur == nil {
			smp.Data |= uint64(ethsim.CharIdle) << (k * 8)
			smp.Ctrl |= 1 << k
			continue
		}
		d := s.data[s.off]
		if s.cur.SimTimeSFD == ethsim.TimeUnset && d == ethsim.SFD {
			s.cur.SimTimeSFD = s.now()
		}
		smp.Data |= uint64(d) << (k * 8)
		if s.qual[s.off] != 0 {
			smp.Ctrl |= 1 << k
		}
		s.off++
		if s.off >= len(s.data) {
			s.ifgCnt = max(s.IFG-(s.Lanes-k), 0)
			s.cur.SimTimeEnd = s.now()
			s.cur.Complete()
			s.cur = nil
			s.data, s.qual = nil, nil
		}
	}
	s.out = smp
	return smp
}

func (s *Source) startFrame(f *ethsim.Frame) {
	f.SimTimeStart = s.now()
	f.SimTimeSFD = ethsim.TimeUnset
	f.SimTimeEnd = ethsim.TimeUnset
	f.Normalize()
	f.StartLane = 0
	if f.Data[0] != ethsim.PreambleByte || f.Qual[0] != 0 {
		panic("xgmii: frame must begin with a preamble data byte")
	}
	internal.LogAttrs(s.Logger, slog.LevelDebug, "xgmii:tx-frame", slog.Int("len", len(f.Data)))

	// Control-coded copy of the frame: start replaces the first preamble
	// byte, terminate is appended.
	s.data = make([]byte, 0, len(f.Data)+5)
	s.qual = make([]byte, 0, len(f.Data)+5)
	s.data = append(s.data, byte(ethsim.CharStart))
	s.qual = append(s.qual, 1)
	s.data = append(s.data, f.Data[1:]...)
	s.qual = append(s.qual, f.Qual[1:]...)
	s.data = append(s.data, byte(ethsim.CharTerminate))
	s.qual = append(s.qual, 1)

	// Start offset: shift onto lane 4 when enough idle credit remains.
	minIFG := 0
	if s.EnableDIC {
		minIFG = 3 - s.dic
	}
	if s.Lanes > 4 && (s.ifgCnt > minIFG || s.ForceOffsetStart) {
		s.ifgCnt -= 4
		f.StartLane = 4
		pad := []byte{byte(ethsim.CharIdle), byte(ethsim.CharIdle), byte(ethsim.CharIdle), byte(ethsim.CharIdle)}
		s.data = append(pad, s.data...)
		s.qual = append([]byte{1, 1, 1, 1}, s.qual...)
	}
	if s.EnableDIC {
		s.dic = max(s.dic+s.ifgCnt, 0)
	}
	s.ifgCnt = 0
	s.cur = f
	s.off = 0
	s.active = true
}

// Idle reports whether no frame is queued or in flight.
func (s *Source) Idle() bool { return s.Queue.Empty() && !s.active }

// Reset flushes an in-flight frame and returns the outputs to idle.
func (s *Source) Reset() {
	if s.cur != nil {
		internal.LogAttrs(s.Logger, slog.LevelWarn, "xgmii:tx-flush", slog.Int("len", len(s.cur.Data)))
		s.cur.SimTimeEnd = ethsim.TimeUnset
		s.cur.Complete()
		s.cur = nil
		s.data, s.qual = nil, nil
	}
	s.out = Idle(s.Lanes)
	s.active = false
	s.ifgCnt = 0
	s.dic = 0
}

func (s *Source) now() int64 {
	if s.Now == nil {
		return ethsim.TimeUnset
	}
	return s.Now()
}

// Sink monitors the bus, scanning lanes for start and terminate control
// characters and pushing assembled frames onto its queue.
type Sink struct {
	Queue *ethsim.Queue[*ethsim.Frame]
	// Lanes is the bus width in bytes, 4 or 8.
	Lanes  int
	Now    func() int64
	Logger *slog.Logger

	cur *ethsim.Frame
}

// NewSink returns a Sink pushing to queue, lanes bytes wide (4 or 8). A nil
// queue allocates an unbounded one.
func NewSink(queue *ethsim.Queue[*ethsim.Frame], lanes int) *Sink {
	if lanes != 4 && lanes != 8 {
		panic("xgmii: lanes must be 4 or 8")
	}
	if queue == nil {
		queue = ethsim.NewQueue[*ethsim.Frame](0, 0)
	}
	return &Sink{Queue: queue, Lanes: lanes}
}

// Edge consumes one cycle's bus sample.
func (s *Sink) Edge(enabled bool, in Sample) {
	if !enabled {
		return
	}
	for k := 0; k < s.Lanes; k++ {
		d, ctrl := in.Lane(k)
		if s.cur == nil {
			if ctrl && d == byte(ethsim.CharStart) {
				// The start character stands in for the first
				// preamble byte; restore it.
				s.cur = ethsim.NewFrame([]byte{ethsim.PreambleByte}, []byte{0})
				s.cur.SimTimeStart = s.now()
				s.cur.StartLane = k
			}
			continue
		}
		if ctrl {
			if d != byte(ethsim.CharTerminate) {
				// Mid-frame control characters are data with
				// the qualifier set, not frame boundaries.
				s.cur.Data = append(s.cur.Data, d)
				s.cur.Qual = append(s.cur.Qual, 1)
			}
			f := s.cur
			s.cur = nil
			f.Compact()
			f.SimTimeEnd = s.now()
			internal.LogAttrs(s.Logger, slog.LevelDebug, "xgmii:rx-frame", slog.Int("len", len(f.Data)), slog.Int("lane", f.StartLane))
			s.Queue.Enqueue(f)
			continue
		}
		if s.cur.SimTimeSFD == ethsim.TimeUnset && d == ethsim.SFD {
			s.cur.SimTimeSFD = s.now()
		}
		s.cur.Data = append(s.cur.Data, d)
		s.cur.Qual = append(s.cur.Qual, 0)
	}
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
