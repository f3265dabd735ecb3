package ptp

import (
	"bytes"
	"math"
	"testing"
)

func TestSetPeriodNSDecomposition(t *testing.T) {
	cases := []struct {
		period   float64
		ns, fns  uint32
		num, den uint32
	}{
		{6.4, 6, 0x66666666, 2, 5}, // 156.25 MHz
		{6.5, 6, 0x80000000, 0, 0}, // exactly representable
		{3.2, 3, 0x33333333, 1, 5}, // 312.5 MHz
		{8.0, 8, 0, 0, 0},          // 125 MHz
	}
	for _, tc := range cases {
		c, err := NewClock(tc.period)
		if err != nil {
			t.Fatalf("NewClock(%v): %v", tc.period, err)
		}
		if c.periodNs != tc.ns || c.periodFns != tc.fns {
			t.Errorf("period %v: fixed point = (%d, %#x), want (%d, %#x)",
				tc.period, c.periodNs, c.periodFns, tc.ns, tc.fns)
		}
		if c.driftNum != tc.num || c.driftDen != tc.den {
			t.Errorf("period %v: drift = %d/%d, want %d/%d",
				tc.period, c.driftNum, c.driftDen, tc.num, tc.den)
		}
	}
}

func TestNewClockRejectsBadPeriods(t *testing.T) {
	for _, p := range []float64{0, -1, math.Inf(1), math.NaN()} {
		if _, err := NewClock(p); err == nil {
			t.Errorf("NewClock(%v) accepted", p)
		}
	}
}

func TestEdgeAccumulatesExactly(t *testing.T) {
	c, err := NewClock(6.4)
	if err != nil {
		t.Fatal(err)
	}
	// 5 edges of 6.4 ns land on exactly 32 ns: the drift correction
	// cancels the fixed-point truncation over one denominator cycle.
	for i := 0; i < 5; i++ {
		c.Edge()
		if c.Step() {
			t.Errorf("edge %d asserted step without a set", i)
		}
	}
	ns, fns := c.Rel()
	if ns != 32 || fns != 0 {
		t.Errorf("rel after 5 edges = %d ns + %#x fns, want exactly 32 ns", ns, fns)
	}
	if got := c.Rel64(); got != 32<<16 {
		t.Errorf("Rel64 = %#x, want %#x", got, uint64(32<<16))
	}
	s, ns32, fns32 := c.TimeOfDay()
	if s != 0 || ns32 != 32 || fns32 != 0 {
		t.Errorf("tod after 5 edges = %d s %d ns %#x fns", s, ns32, fns32)
	}
}

func TestStepOnSet(t *testing.T) {
	c, _ := NewClock(6.4)
	c.Edge()
	c.SetRel64(100 << 16)
	c.Edge()
	if !c.Step() {
		t.Error("edge after SetRel did not assert step")
	}
	c.Edge()
	if c.Step() {
		t.Error("step stayed asserted past one edge")
	}
	ns, _ := c.Rel()
	// Two edges past the set point.
	if ns < 112 || ns > 113 {
		t.Errorf("rel ns = %d, want 112..113", ns)
	}
}

func TestPPSOnSecondsCarry(t *testing.T) {
	c, _ := NewClock(6.4)
	c.SetTimeOfDay(0, 999_999_968, 0)
	for i := 0; i < 4; i++ {
		c.Edge()
		if c.PPS() {
			t.Fatalf("PPS asserted %d edges early", 5-i-1)
		}
	}
	c.Edge()
	if !c.PPS() {
		t.Fatal("PPS missed the seconds carry")
	}
	s, ns, fns := c.TimeOfDay()
	if s != 1 || ns != 0 || fns != 0 {
		t.Errorf("tod after carry = %d s %d ns %#x fns, want 1 s exactly", s, ns, fns)
	}
	c.Edge()
	if c.PPS() {
		t.Error("PPS stayed asserted past one edge")
	}
}

func TestDriftDisabled(t *testing.T) {
	c, _ := NewClock(8.0)
	for i := 0; i < 1000; i++ {
		c.Edge()
	}
	ns, fns := c.Rel()
	if ns != 8000 || fns != 0 {
		t.Errorf("rel = %d ns + %#x fns, want exactly 8000 ns", ns, fns)
	}
}

func TestPeriodNSReadback(t *testing.T) {
	c, _ := NewClock(6.4)
	if got := c.PeriodNS(); got < 6.3999999 || got > 6.4000001 {
		t.Errorf("PeriodNS = %v", got)
	}
}

func TestTime96Put(t *testing.T) {
	ts := Time96{Sec: 0x1234_56789ABC, Ns: 0x0DEAD123, Fns: 0xBEEF}
	var b [12]byte
	ts.Put(b[:])
	want := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0x0D, 0xEA, 0xD1, 0x23, 0xBE, 0xEF}
	if !bytes.Equal(b[:], want) {
		t.Errorf("Put = %x, want %x", b, want)
	}
}

func TestSetters96And64(t *testing.T) {
	c, _ := NewClock(6.4)
	c.SetTimeOfDay96(Time96{Sec: 5, Ns: 100, Fns: 0x8000})
	s, ns, fns := c.TimeOfDay()
	if s != 5 || ns != 100 || fns != 0x8000_0000 {
		t.Errorf("tod = %d %d %#x", s, ns, fns)
	}
	if got := c.TimeOfDay96(); got != (Time96{Sec: 5, Ns: 100, Fns: 0x8000}) {
		t.Errorf("TimeOfDay96 = %+v", got)
	}
	c.SetRel64(0xABCD_1234)
	if got := c.Rel64(); got != 0xABCD_1234 {
		t.Errorf("Rel64 roundtrip = %#x", got)
	}
}

func TestRelWraps48Bits(t *testing.T) {
	c, _ := NewClock(8.0)
	c.SetRel(1<<48-4, 0)
	c.Edge()
	ns, _ := c.Rel()
	if ns != 4 {
		t.Errorf("rel ns after wrap = %d, want 4", ns)
	}
}

func TestReset(t *testing.T) {
	c, _ := NewClock(6.4)
	c.SetTimeOfDay(9, 9, 9)
	c.Edge()
	c.Reset()
	if s, ns, fns := c.TimeOfDay(); s != 0 || ns != 0 || fns != 0 {
		t.Error("Reset left time-of-day residue")
	}
	if ns, fns := c.Rel(); ns != 0 || fns != 0 {
		t.Error("Reset left relative counter residue")
	}
	if c.Step() || c.PPS() {
		t.Error("Reset left outputs asserted")
	}
	// Period survives a reset.
	if c.periodNs != 6 {
		t.Error("Reset cleared the period")
	}
}

func TestLimitDenominator(t *testing.T) {
	cases := []struct {
		num, den, maxDen int64
		wantN, wantD     int64
	}{
		{1, 3, 10, 1, 3},
		{355, 113, 113, 355, 113},
		{355, 113, 100, 311, 99},
		{3141592653589793, 1000000000000000, 10, 22, 7},
		{3141592653589793, 1000000000000000, 113, 355, 113},
		{0, 5, 10, 0, 0},
	}
	for _, tc := range cases {
		n, d := limitDenominator(tc.num, tc.den, tc.maxDen)
		if n != tc.wantN || d != tc.wantD {
			t.Errorf("limitDenominator(%d/%d, %d) = %d/%d, want %d/%d",
				tc.num, tc.den, tc.maxDen, n, d, tc.wantN, tc.wantD)
		}
	}
}
