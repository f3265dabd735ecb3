package ethsim

import (
	"bytes"
	"errors"
	"testing"
)

func TestFromPayloadPadding(t *testing.T) {
	f, err := FromPayload([]byte{0xDE, 0xAD})
	if err != nil {
		t.Fatal(err)
	}
	// 8 preamble + 60 padded payload + 4 FCS.
	if len(f.Data) != 72 {
		t.Fatalf("frame length = %d, want 72", len(f.Data))
	}
	if !f.CheckFCS() {
		t.Error("constructed frame fails its own FCS")
	}
	payload, err := f.Payload(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) != 60 || payload[0] != 0xDE || payload[1] != 0xAD || payload[2] != 0 {
		t.Errorf("payload = %x", payload)
	}
}

func TestFromPayloadZeroVector(t *testing.T) {
	f, err := FromPayload(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.FCS(), []byte{0x08, 0x89, 0x12, 0x04}) {
		t.Errorf("FCS of padded zero payload = %x", f.FCS())
	}
}

func TestFromPayloadTooLong(t *testing.T) {
	_, err := FromPayload(make([]byte, MaxFrameSize+1))
	if !errors.Is(err, ErrInvalidLength) {
		t.Errorf("err = %v, want ErrInvalidLength", err)
	}
}

func TestPreamble(t *testing.T) {
	f, _ := FromPayload([]byte{1, 2, 3})
	n, err := f.PreambleLen()
	if err != nil || n != 8 {
		t.Fatalf("PreambleLen = %d, %v", n, err)
	}
	pre, err := f.GetPreamble()
	if err != nil {
		t.Fatal(err)
	}
	want := Preamble()
	if !bytes.Equal(pre, want[:]) {
		t.Errorf("preamble = %x", pre)
	}

	noSFD := NewFrame(bytes.Repeat([]byte{PreambleByte}, 32), nil)
	if _, err := noSFD.PreambleLen(); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("missing SFD err = %v, want ErrMalformedFrame", err)
	}
	if noSFD.CheckFCS() {
		t.Error("CheckFCS passed on a frame with no SFD")
	}
}

func TestNormalizeCompact(t *testing.T) {
	f := NewFrame([]byte{1, 2, 3, 4}, []byte{0, 1})
	f.Normalize()
	if !bytes.Equal(f.Qual, []byte{0, 1, 1, 1}) {
		t.Errorf("Normalize replicate = %v", f.Qual)
	}
	f.Compact()
	if f.Qual == nil {
		t.Error("Compact dropped a qualifier sequence with asserted entries")
	}

	g := NewFrame([]byte{1, 2}, nil)
	g.Normalize()
	if !bytes.Equal(g.Qual, []byte{0, 0}) {
		t.Errorf("Normalize zero fill = %v", g.Qual)
	}
	g.Compact()
	if g.Qual != nil {
		t.Error("Compact kept an all-zero qualifier sequence")
	}

	h := NewFrame([]byte{1, 2}, []byte{0, 0, 1, 1})
	h.Normalize()
	if !bytes.Equal(h.Qual, []byte{0, 0}) {
		t.Errorf("Normalize truncate = %v", h.Qual)
	}
}

func TestCompleteOnce(t *testing.T) {
	calls := 0
	f := NewFrame(nil, nil)
	f.OnComplete = func(*Frame) { calls++ }
	f.Complete()
	f.Complete()
	if calls != 1 {
		t.Errorf("OnComplete fired %d times", calls)
	}
}

func TestTimesUnsetOnConstruction(t *testing.T) {
	f, _ := FromPayload([]byte{1})
	if f.SimTimeStart != TimeUnset || f.SimTimeSFD != TimeUnset || f.SimTimeEnd != TimeUnset {
		t.Errorf("capture times = %d %d %d, want all TimeUnset", f.SimTimeStart, f.SimTimeSFD, f.SimTimeEnd)
	}
	if f.StartLane != -1 {
		t.Errorf("StartLane = %d, want -1", f.StartLane)
	}
}
