// Package rgmii models the reduced-pin RGMII bus. Data is nibble-wide and
// double data rate: one full clock period transfers a byte, low nibble on
// the rising edge and high nibble on the falling edge. A single control line
// carries EN on the rising edge and EN XOR ER on the falling edge. The
// low-speed MII-compatible mode folds to one nibble per clock period,
// replicated across both edges.
package rgmii

import (
	"log/slog"

	"github.com/phybus/ethsim"
	"github.com/phybus/ethsim/internal"
)

// Sample holds both DDR edge values of one clock period.
type Sample struct {
	DataRise uint8 // low nibble, transferred on the rising edge
	DataFall uint8 // high nibble, transferred on the falling edge
	CtrlRise bool  // EN
	CtrlFall bool  // EN XOR ER
}

// DefaultIFG is the default inter-frame gap in byte-times.
const DefaultIFG = 12

func sampleOf(d byte, en, er bool) Sample {
	return Sample{
		DataRise: d & 0x0F,
		DataFall: d >> 4,
		CtrlRise: en,
		CtrlFall: en != er,
	}
}

// byteOf is the sink-side inverse of sampleOf.
func (in Sample) byteOf() (d byte, en, er bool) {
	return in.DataRise&0x0F | in.DataFall<<4, in.CtrlRise, in.CtrlRise != in.CtrlFall
}

// Source drives frames from a queue onto the bus, one DDR Sample per clock
// period.
type Source struct {
	Queue *ethsim.Queue[*ethsim.Frame]
	// IFG is the idle period between frames in byte-times.
	IFG int
	// MIIMode selects the low-speed nibble fold, sampled at frame start.
	MIIMode bool
	Now     func() int64
	Logger  *slog.Logger

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

// Edge advances the source by one clock period and returns the pair of DDR
// values to drive across it. Disabled periods hold the previous output.
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
			internal.LogAttrs(s.Logger, slog.LevelDebug, "rgmii:tx-frame", slog.Int("len", len(f.Data)), slog.Bool("mii", s.MIIMode))
			if s.MIIMode {
				s.data, s.qual = internal.ExpandNibbles(f.Data, f.Qual, true)
			} else {
				s.data, s.qual = f.Data, f.Qual
			}
			s.cur = f
			s.off = 0
			s.active = true
		}
	}
	if s.cur == nil {
		s.out = sampleOf(0, false, false)
		s.active = false
		return s.out
	}
	d := s.data[s.off]
	if s.cur.SimTimeSFD == ethsim.TimeUnset && (d == ethsim.SFD || d == 0x0D || d == 0xDD) {
		s.cur.SimTimeSFD = s.now()
	}
	s.out = sampleOf(d, true, s.qual[s.off] != 0)
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
		internal.LogAttrs(s.Logger, slog.LevelWarn, "rgmii:tx-flush", slog.Int("len", len(s.cur.Data)))
		s.cur.SimTimeEnd = ethsim.TimeUnset
		s.cur.Complete()
		s.cur = nil
		s.data, s.qual = nil, nil
	}
	s.out = sampleOf(0, false, false)
	s.active = false
	s.ifgCnt = 0
}

func (s *Source) now() int64 {
	if s.Now == nil {
		return ethsim.TimeUnset
	}
	return s.Now()
}

// Sink monitors the bus, recombining DDR nibble pairs into byte frames
// pushed onto its queue when EN deasserts.
type Sink struct {
	Queue *ethsim.Queue[*ethsim.Frame]
	// MIIMode folds the replicated-nibble capture back into bytes,
	// sampled at frame end.
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

// Edge consumes one clock period's DDR sample pair.
func (s *Sink) Edge(enabled bool, in Sample) {
	if !enabled {
		return
	}
	d, en, er := in.byteOf()
	if s.cur == nil {
		if en {
			s.cur = ethsim.NewFrame(nil, []byte{})
			s.cur.SimTimeStart = s.now()
		}
	} else if !en {
		f := s.cur
		s.cur = nil
		if s.MIIMode {
			f.Data, f.Qual = internal.FoldNibbles(f.Data, f.Qual, ethsim.SFD)
		}
		f.Compact()
		f.SimTimeEnd = s.now()
		internal.LogAttrs(s.Logger, slog.LevelDebug, "rgmii:rx-frame", slog.Int("len", len(f.Data)))
		s.Queue.Enqueue(f)
	}
	if s.cur == nil {
		return
	}
	if s.cur.SimTimeSFD == ethsim.TimeUnset && (d == ethsim.SFD || d == 0x0D || d == 0xDD) {
		s.cur.SimTimeSFD = s.now()
	}
	s.cur.Data = append(s.cur.Data, d)
	var e byte
	if er {
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
