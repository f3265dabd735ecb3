package ethsim

// Ethernet preamble bytes. A frame on the wire begins with seven PreambleByte
// octets followed by a single SFD octet. See [IEEE 802.3] clause 3.2.
//
// [IEEE 802.3]: https://standards.ieee.org/ieee/802.3/7071/
const (
	PreambleByte = 0x55
	SFD          = 0xD5
)

// preambleScanWindow bounds how far into a frame the SFD is searched for.
const preambleScanWindow = 16

// Preamble returns the 8-octet Ethernet preamble including the SFD.
func Preamble() [8]byte {
	return [8]byte{PreambleByte, PreambleByte, PreambleByte, PreambleByte, PreambleByte, PreambleByte, PreambleByte, SFD}
}

// ControlChar is an XGMII control character, valid on a byte lane whose
// control bit is set. See IEEE 802.3 clause 46.
type ControlChar uint8

const (
	CharLPI       ControlChar = 0x06 // low power idle
	CharIdle      ControlChar = 0x07 // idle
	CharReserved0 ControlChar = 0x1C // reserved 0
	CharReserved1 ControlChar = 0x3C // reserved 1
	CharSigOS     ControlChar = 0x5C // signal ordered set
	CharReserved2 ControlChar = 0x7C // reserved 2
	CharSeqOS     ControlChar = 0x9C // sequence ordered set
	CharReserved3 ControlChar = 0xBC // reserved 3
	CharReserved4 ControlChar = 0xDC // reserved 4
	CharReserved5 ControlChar = 0xF7 // reserved 5
	CharStart     ControlChar = 0xFB // start of frame
	CharTerminate ControlChar = 0xFD // end of frame
	CharError     ControlChar = 0xFE // error propagation
)

func (c ControlChar) String() string {
	switch c {
	case CharLPI:
		return "LPI"
	case CharIdle:
		return "idle"
	case CharSigOS:
		return "signal OS"
	case CharSeqOS:
		return "sequence OS"
	case CharStart:
		return "start"
	case CharTerminate:
		return "terminate"
	case CharError:
		return "error"
	}
	return "reserved"
}

// Frame size limits in octets, excluding preamble and FCS.
const (
	// MinFrameSize is the minimum Ethernet payload before FCS; shorter
	// payloads are zero padded up to it by [FromPayload].
	MinFrameSize = 60
	// MaxFrameSize bounds [FromPayload] payloads (jumbo frame envelope).
	MaxFrameSize = 9018
)

// TimeUnset marks a simulation-time field that was never captured.
const TimeUnset int64 = -1
