package ethsim

import (
	"encoding/binary"
	"hash/crc32"
)

//
// FCS API.
//

// crcTable is the IEEE CRC-32 table used for Ethernet FCS calculation.
var crcTable = crc32.MakeTable(crc32.IEEE)

// CRC32 calculates the Ethernet Frame Check Sequence (FCS) for the given
// data using the IEEE 802.3 CRC-32 polynomial. The input should be the frame
// bytes after the preamble and excluding any existing FCS.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// AppendFCS appends the 4-byte little-endian FCS of data to dst.
func AppendFCS(dst, data []byte) []byte {
	return binary.LittleEndian.AppendUint32(dst, CRC32(data))
}

// CheckFCS reports whether the last 4 bytes of data hold the little-endian
// CRC-32 of the preceding bytes. Data shorter than the FCS itself fails.
func CheckFCS(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	n := len(data) - 4
	return CRC32(data[:n]) == binary.LittleEndian.Uint32(data[n:])
}

// FCSSearch searches for a valid FCS in data starting from minOffFCS.
// It computes the CRC incrementally, checking at each position whether it
// matches the next 4 bytes. Returns the offset of a valid FCS, or -1.
// Useful for captures whose exact frame length is unknown but bounded.
func FCSSearch(data []byte, minOffFCS int) (foundOffOrNegative int) {
	if minOffFCS < 0 {
		minOffFCS = 0
	}
	if len(data) < minOffFCS+4 {
		return -1
	}
	crc := crc32.Checksum(data[:minOffFCS], crcTable)
	for off := minOffFCS; off <= len(data)-4; off++ {
		got := binary.LittleEndian.Uint32(data[off:])
		if crc == got {
			return off
		}
		crc = crc32.Update(crc, crcTable, data[off:off+1])
	}
	return -1
}
