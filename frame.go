package ethsim

import (
	"bytes"
	"fmt"
)

// Frame is an Ethernet frame as seen by the bus codecs: an ordered byte
// sequence paired with a per-byte qualifier sequence. For the MII/GMII/RGMII
// family the qualifier is the error line, for XGMII it is the control bit.
//
// The zero value is an empty frame. Frames built with [FromPayload] carry
// preamble, padding and FCS; monitor codecs populate the capture fields.
type Frame struct {
	Data []byte
	// Qual holds one qualifier per byte of Data once normalized. It may be
	// nil or shorter than Data; [Frame.Normalize] reconciles the lengths.
	Qual []byte

	// Simulation times captured by the codecs, TimeUnset when not captured.
	SimTimeStart int64
	SimTimeSFD   int64
	SimTimeEnd   int64

	// StartLane is the byte lane the frame started on for lane-oriented
	// interfaces (XGMII), -1 elsewhere.
	StartLane int

	// OnComplete fires exactly once when a drive codec finishes
	// transferring the frame. Frames dropped by [Queue.Clear] never fire.
	OnComplete func(*Frame)

	completed bool
}

// NewFrame returns a Frame over data with the given qualifier sequence,
// which may be nil or shorter than data (see [Frame.Normalize]).
func NewFrame(data, qual []byte) *Frame {
	return &Frame{
		Data:         data,
		Qual:         qual,
		SimTimeStart: TimeUnset,
		SimTimeSFD:   TimeUnset,
		SimTimeEnd:   TimeUnset,
		StartLane:    -1,
	}
}

// FromPayload builds a complete frame from payload: zero padding up to
// [MinFrameSize], 4-byte little-endian FCS, 8-byte preamble. Payloads above
// [MaxFrameSize] return [ErrInvalidLength].
func FromPayload(payload []byte) (*Frame, error) {
	return FromPayloadSized(payload, MinFrameSize)
}

// FromPayloadSized is [FromPayload] with an explicit pad-to length in octets
// (not counting preamble or FCS).
func FromPayloadSized(payload []byte, minLen int) (*Frame, error) {
	if len(payload) > MaxFrameSize {
		return nil, ErrInvalidLength
	}
	n := len(payload)
	if n < minLen {
		n = minLen
	}
	padded := make([]byte, 0, n+4)
	padded = append(padded, payload...)
	padded = padded[:n]
	padded = AppendFCS(padded, padded)
	return FromRawPayload(padded), nil
}

// FromRawPayload prepends the preamble to payload without padding or FCS.
// Used to build deliberately malformed frames.
func FromRawPayload(payload []byte) *Frame {
	pre := Preamble()
	data := make([]byte, 0, len(pre)+len(payload))
	data = append(data, pre[:]...)
	data = append(data, payload...)
	return NewFrame(data, nil)
}

// SizeBytes returns the frame length in octets as constructed, preamble and
// FCS included. It is the unit of queue byte accounting.
func (f *Frame) SizeBytes() int { return len(f.Data) }

// PreambleLen returns the preamble length including the SFD octet, found by
// scanning for the SFD from the front of the frame within a bounded window.
func (f *Frame) PreambleLen() (int, error) {
	n := len(f.Data)
	if n > preambleScanWindow {
		n = preambleScanWindow
	}
	i := bytes.IndexByte(f.Data[:n], SFD)
	if i < 0 {
		return 0, ErrMalformedFrame
	}
	return i + 1, nil
}

// GetPreamble returns the frame's preamble bytes including the SFD.
func (f *Frame) GetPreamble() ([]byte, error) {
	n, err := f.PreambleLen()
	if err != nil {
		return nil, err
	}
	return f.Data[:n], nil
}

// Payload returns the bytes after the preamble, with the 4-byte FCS
// stripped when stripFCS is set.
func (f *Frame) Payload(stripFCS bool) ([]byte, error) {
	n, err := f.PreambleLen()
	if err != nil {
		return nil, err
	}
	payload := f.Data[n:]
	if stripFCS {
		if len(payload) < 4 {
			return nil, ErrInvalidLength
		}
		payload = payload[:len(payload)-4]
	}
	return payload, nil
}

// FCS returns the last 4 bytes of the frame, the little-endian CRC-32.
func (f *Frame) FCS() []byte {
	if len(f.Data) < 4 {
		return nil
	}
	return f.Data[len(f.Data)-4:]
}

// CheckFCS recomputes the CRC-32 over the payload and compares it with the
// stored FCS. A false result is data, not an error: malformed frames are an
// expected scenario.
func (f *Frame) CheckFCS() bool {
	payload, err := f.Payload(false)
	if err != nil {
		return false
	}
	return CheckFCS(payload)
}

// Normalize reconciles the qualifier sequence length with the data length,
// replicating the last qualifier value into the gap (zero filling when the
// qualifier sequence is empty). Data is never changed.
func (f *Frame) Normalize() {
	n := len(f.Data)
	if len(f.Qual) > n {
		f.Qual = f.Qual[:n]
		return
	}
	fill := byte(0)
	if len(f.Qual) > 0 {
		fill = f.Qual[len(f.Qual)-1]
	}
	for len(f.Qual) < n {
		f.Qual = append(f.Qual, fill)
	}
}

// Compact drops an all-zero qualifier sequence. The reverse of
// [Frame.Normalize]; data is never changed.
func (f *Frame) Compact() {
	for _, q := range f.Qual {
		if q != 0 {
			return
		}
	}
	f.Qual = nil
}

// Complete fires the OnComplete notification. Drive codecs call it once the
// frame's transfer finishes; repeat calls are no-ops.
func (f *Frame) Complete() {
	if f.completed {
		return
	}
	f.completed = true
	if f.OnComplete != nil {
		f.OnComplete(f)
	}
}

// EqualData reports whether both frames carry identical data bytes.
// Qualifiers and capture times are not compared.
func (f *Frame) EqualData(other *Frame) bool {
	return other != nil && bytes.Equal(f.Data, other.Data)
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(len=%d, start=%d, sfd=%d, end=%d, lane=%d)",
		len(f.Data), f.SimTimeStart, f.SimTimeSFD, f.SimTimeEnd, f.StartLane)
}
