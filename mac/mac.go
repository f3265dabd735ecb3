// Package mac models the streaming data path between user logic and a PHY
// codec: framed byte streams carried as wide beats with per-lane keep
// strobes, a last marker and sideband user bits. Frames at this layer have
// no preamble; they begin at the first byte of the destination address and
// end with the frame check sequence.
//
// The Rx half presents received frames to user logic beat by beat. The Tx
// half accepts beats from user logic and assembles them back into frames.
// Both capture hardware timestamps from an attached PTP clock query at the
// first beat of each frame.
package mac

import (
	"fmt"
	"log/slog"

	"github.com/phybus/ethsim"
	"github.com/phybus/ethsim/internal"
)

// Beat is one accepted stream transfer. Lane k occupies data bits 8k..8k+7
// and keep bit k. User bit 0 flags an errored frame; the remaining bits
// carry a hardware timestamp on the receive path and a timestamp tag on the
// transmit path.
type Beat struct {
	Data uint64
	Keep uint8
	Last bool
	User uint64
}

// DefaultIFG is the default inter-frame gap in byte-times.
const DefaultIFG = 12

// Frame is a MAC-layer frame: destination address through FCS, no preamble.
type Frame struct {
	Data []byte
	// Err marks the frame as errored end to end.
	Err bool
	// SimTimeStart and SimTimeEnd are simulated-time captures of the first
	// and last beat, ethsim.TimeUnset when not captured.
	SimTimeStart int64
	SimTimeEnd   int64
	// PTPTimestamp is the hardware timestamp latched at the first beat, in
	// the 64-bit relative wire format.
	PTPTimestamp uint64
	// PTPTag identifies the frame on the transmit timestamp return path.
	PTPTag uint64
	// OnComplete, if set, is called exactly once when the frame has been
	// fully streamed.
	OnComplete func(*Frame)

	completed bool
}

// FromPayload builds a frame around payload: zero-padded to the minimum
// frame size with the FCS appended.
func FromPayload(payload []byte) (*Frame, error) {
	return FromPayloadSized(payload, ethsim.MinFrameSize)
}

// FromPayloadSized is FromPayload with an explicit pre-FCS minimum length.
func FromPayloadSized(payload []byte, minLen int) (*Frame, error) {
	if len(payload) > ethsim.MaxFrameSize {
		return nil, ethsim.ErrInvalidLength
	}
	n := len(payload)
	if n < minLen {
		n = minLen
	}
	data := make([]byte, 0, n+4)
	data = append(data, payload...)
	data = data[:n]
	data = ethsim.AppendFCS(data, data)
	return newFrame(data), nil
}

// FromRawPayload builds a frame from bytes used verbatim, padding and FCS
// included.
func FromRawPayload(data []byte) *Frame {
	return newFrame(append([]byte{}, data...))
}

func newFrame(data []byte) *Frame {
	return &Frame{
		Data:         data,
		SimTimeStart: ethsim.TimeUnset,
		SimTimeEnd:   ethsim.TimeUnset,
	}
}

// SizeBytes returns the frame length for queue occupancy accounting.
func (f *Frame) SizeBytes() int { return len(f.Data) }

// Payload returns the frame contents, without the trailing FCS when
// stripFCS is set.
func (f *Frame) Payload(stripFCS bool) []byte {
	if stripFCS && len(f.Data) >= 4 {
		return f.Data[:len(f.Data)-4]
	}
	return f.Data
}

// FCS returns the trailing 4 bytes, nil for runt frames.
func (f *Frame) FCS() []byte {
	if len(f.Data) < 4 {
		return nil
	}
	return f.Data[len(f.Data)-4:]
}

// CheckFCS reports whether the trailing FCS matches the frame contents.
func (f *Frame) CheckFCS() bool { return ethsim.CheckFCS(f.Data) }

// Complete fires the completion notification. Subsequent calls are no-ops.
func (f *Frame) Complete() {
	if f.completed {
		return
	}
	f.completed = true
	if f.OnComplete != nil {
		f.OnComplete(f)
	}
}

func (f *Frame) String() string {
	return fmt.Sprintf("mac.Frame(len=%d, err=%v, start=%d, end=%d)",
		len(f.Data), f.Err, f.SimTimeStart, f.SimTimeEnd)
}

// Rx presents frames from a queue to user logic, one Beat per accepted
// cycle. The queue is typically fed by a codec Sink after FCS checking.
type Rx struct {
	Queue *ethsim.Queue[*Frame]
	// Lanes is the stream width in bytes, 1 to 8.
	Lanes int
	// IFG is the idle period between frames in byte-times.
	IFG int
	// Speed is the link speed in bits per second. The harness derives the
	// enable-signal cadence from it; the model itself only reports timing
	// through [Rx.ByteTime].
	Speed int64
	// PTPTime queries the hardware clock in the 64-bit relative wire
	// format. Optional.
	PTPTime func() uint64
	// Now queries the simulated time. Optional.
	Now    func() int64
	Logger *slog.Logger

	cur    *Frame
	off    int
	ifgCnt int
	active bool
}

// NewRx returns an Rx pulling from queue, lanes bytes wide. A nil queue
// allocates an unbounded one.
func NewRx(queue *ethsim.Queue[*Frame], lanes int) *Rx {
	if lanes < 1 || lanes > 8 {
		panic("mac: lanes must be 1 to 8")
	}
	if queue == nil {
		queue = ethsim.NewQueue[*Frame](0, 0)
	}
	return &Rx{Queue: queue, Lanes: lanes, IFG: DefaultIFG, Speed: 1_000_000_000}
}

// ByteTime returns the duration of one byte-time on the link in
// nanoseconds.
func (r *Rx) ByteTime() float64 { return 8e9 / float64(r.Speed) }

// Edge advances the receive path by one accepted cycle. ok reports whether
// the returned Beat carries data; idle cycles burn IFG credit.
func (r *Rx) Edge(enabled bool) (b Beat, ok bool) {
	if !enabled {
		return Beat{}, false
	}
	if r.ifgCnt > 0 {
		r.ifgCnt -= r.Lanes
		if r.ifgCnt < 0 {
			r.ifgCnt = 0
		}
		return Beat{}, false
	}
	if r.cur == nil {
		f, got := r.Queue.TryDequeue()
		if !got {
			r.active = false
			return Beat{}, false
		}
		f.SimTimeStart = r.now()
		f.SimTimeEnd = ethsim.TimeUnset
		if r.PTPTime != nil {
			f.PTPTimestamp = r.PTPTime()
		}
		internal.LogAttrs(r.Logger, slog.LevelDebug, "mac:rx-frame",
			slog.Int("len", len(f.Data)), slog.Bool("err", f.Err))
		r.cur = f
		r.off = 0
		r.active = true
	}
	b.User = r.cur.PTPTimestamp << 1
	if r.cur.Err {
		b.User |= 1
	}
	for k := 0; k < r.Lanes && r.off < len(r.cur.Data); k++ {
		b.Data |= uint64(r.cur.Data[r.off]) << (k * 8)
		b.Keep |= 1 << k
		r.off++
	}
	if r.off >= len(r.cur.Data) {
		b.Last = true
		r.cur.SimTimeEnd = r.now()
		r.cur.Complete()
		r.cur = nil
		r.ifgCnt = r.IFG
	}
	return b, true
}

// Idle reports whether no frame is queued or in flight.
func (r *Rx) Idle() bool { return r.Queue.Empty() && !r.active }

// Reset flushes an in-flight frame and clears the gap counter. Queued
// frames stay queued.
func (r *Rx) Reset() {
	if r.cur != nil {
		internal.LogAttrs(r.Logger, slog.LevelWarn, "mac:rx-flush", slog.Int("len", len(r.cur.Data)))
		r.cur.SimTimeEnd = ethsim.TimeUnset
		r.cur.Complete()
		r.cur = nil
	}
	r.active = false
	r.ifgCnt = 0
}

func (r *Rx) now() int64 {
	if r.Now == nil {
		return ethsim.TimeUnset
	}
	return r.Now()
}

// Timestamp is one transmit timestamp return entry: the hardware time of a
// frame's first beat paired with the tag user logic attached to it.
type Timestamp struct {
	TS  uint64
	Tag uint64
}

// Tx assembles beats from user logic into frames pushed onto its queue,
// latching a hardware timestamp at the first beat of each frame. The queue
// typically feeds a codec Source.
type Tx struct {
	Queue *ethsim.Queue[*Frame]
	// PTPTime queries the hardware clock in the 64-bit relative wire
	// format. Optional.
	PTPTime func() uint64
	// Now queries the simulated time. Optional.
	Now    func() int64
	Logger *slog.Logger

	cur *Frame
	ts  []Timestamp
}

// NewTx returns a Tx pushing to queue. A nil queue allocates an unbounded
// one.
func NewTx(queue *ethsim.Queue[*Frame]) *Tx {
	if queue == nil {
		queue = ethsim.NewQueue[*Frame](0, 0)
	}
	return &Tx{Queue: queue}
}

// Beat consumes one accepted stream transfer. A zero Keep is treated as all
// lanes present.
func (t *Tx) Beat(in Beat) {
	if t.cur == nil {
		t.cur = newFrame(nil)
		t.cur.SimTimeStart = t.now()
		t.cur.PTPTag = in.User >> 1
		if t.PTPTime != nil {
			t.cur.PTPTimestamp = t.PTPTime()
		}
	}
	if in.User&1 != 0 {
		t.cur.Err = true
	}
	keep := in.Keep
	if keep == 0 {
		keep = 0xFF
	}
	for k := 0; k < 8; k++ {
		if keep>>k&1 != 0 {
			t.cur.Data = append(t.cur.Data, uint8(in.Data>>(k*8)))
		}
	}
	if !in.Last {
		return
	}
	f := t.cur
	t.cur = nil
	f.SimTimeEnd = t.now()
	t.ts = append(t.ts, Timestamp{TS: f.PTPTimestamp, Tag: f.PTPTag})
	internal.LogAttrs(t.Logger, slog.LevelDebug, "mac:tx-frame",
		slog.Int("len", len(f.Data)), slog.Uint64("tag", f.PTPTag))
	t.Queue.Enqueue(f)
}

// TakeTimestamp pops the oldest transmit timestamp return entry.
func (t *Tx) TakeTimestamp() (Timestamp, bool) {
	if len(t.ts) == 0 {
		return Timestamp{}, false
	}
	e := t.ts[0]
	copy(t.ts, t.ts[1:])
	t.ts = t.ts[:len(t.ts)-1]
	return e, true
}

// Idle reports whether no frame is being assembled.
func (t *Tx) Idle() bool { return t.cur == nil }

// Reset discards a partially assembled frame and the pending timestamp
// entries.
func (t *Tx) Reset() {
	t.cur = nil
	t.ts = nil
}

func (t *Tx) now() int64 {
	if t.Now == nil {
		return ethsim.TimeUnset
	}
	return t.Now()
}
