package internal

import (
	"bytes"
	"testing"
)

func TestExpandFoldRoundtrip(t *testing.T) {
	data := []byte{0x55, 0x55, 0xD5, 0x00, 0x01, 0xAB, 0xFF}
	qual := []byte{0, 0, 0, 0, 0, 1, 0}
	for _, dup := range []bool{false, true} {
		nd, nq := ExpandNibbles(data, qual, dup)
		if len(nd) != 2*len(data) || len(nq) != 2*len(data) {
			t.Fatalf("dup=%v: expanded lengths %d/%d", dup, len(nd), len(nq))
		}
		fd, fq := FoldNibbles(nd, nq, 0xD5)
		if !bytes.Equal(fd, data) {
			t.Errorf("dup=%v: fold = %x, want %x", dup, fd, data)
		}
		if !bytes.Equal(fq, qual) {
			t.Errorf("dup=%v: fold qual = %v, want %v", dup, fq, qual)
		}
	}
}

func TestExpandNibblesOrder(t *testing.T) {
	nd, _ := ExpandNibbles([]byte{0xD5}, []byte{0}, false)
	if !bytes.Equal(nd, []byte{0x05, 0x0D}) {
		t.Errorf("low nibble must come first, got %x", nd)
	}
	nd, _ = ExpandNibbles([]byte{0xD5}, []byte{0}, true)
	if !bytes.Equal(nd, []byte{0x55, 0xDD}) {
		t.Errorf("dup expansion = %x, want 55 dd", nd)
	}
}

func TestFoldNibblesResync(t *testing.T) {
	// An odd number of leading preamble nibbles throws off pairing; the
	// SFD pattern restores byte alignment.
	data, qual := ExpandNibbles([]byte{0x55, 0x55, 0xD5, 0x12, 0x34}, make([]byte, 5), false)
	data = append([]byte{0x05}, data...)
	qual = append([]byte{0}, qual...)
	fd, _ := FoldNibbles(data, qual, 0xD5)
	i := bytes.IndexByte(fd, 0xD5)
	if i < 0 {
		t.Fatalf("SFD lost in fold: %x", fd)
	}
	if !bytes.Equal(fd[i:], []byte{0xD5, 0x12, 0x34}) {
		t.Errorf("fold after resync = %x", fd[i:])
	}
}

func TestFoldNibblesQualifierSticks(t *testing.T) {
	// A qualifier asserted on one nibble marks the whole folded byte.
	fd, fq := FoldNibbles([]byte{0x05, 0x0D, 0x02, 0x01}, []byte{0, 0, 1, 0}, 0xD5)
	if !bytes.Equal(fd, []byte{0xD5, 0x12}) {
		t.Fatalf("fold = %x", fd)
	}
	if !bytes.Equal(fq, []byte{0, 1}) {
		t.Errorf("fold qual = %v, want [0 1]", fq)
	}
}
