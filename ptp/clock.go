// Package ptp models an IEEE 1588 hardware clock: a 96-bit time-of-day
// counter (48-bit seconds, 32-bit nanoseconds, 16-bit fractional
// nanoseconds on the wire) and a 64-bit free-running relative counter
// (48:16), both advanced each clock edge by a fixed-point period plus a
// rational drift correction. Fractional nanoseconds are accumulated with 32
// bits internally; the exposed value is the high 16.
package ptp

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"math/big"

	"github.com/phybus/ethsim/internal"
)

var errBadPeriod = errors.New("ptp: period must be positive and finite")

// Time96 is the 96-bit time-of-day timestamp wire format (48:32:16).
type Time96 struct {
	Sec uint64 // low 48 bits valid
	Ns  uint32
	Fns uint16
}

// Put writes the timestamp into the first 12 bytes of b, big-endian.
func (t Time96) Put(b []byte) {
	_ = b[11]
	binary.BigEndian.PutUint16(b[0:2], uint16(t.Sec>>32))
	binary.BigEndian.PutUint32(b[2:6], uint32(t.Sec))
	binary.BigEndian.PutUint32(b[6:10], t.Ns)
	binary.BigEndian.PutUint16(b[10:12], t.Fns)
}

// Rel64 packs a relative timestamp (48-bit ns, 16-bit fractional ns) into
// its 64-bit wire format.
func Rel64(ns uint64, fns uint16) uint64 {
	return ns<<16 | uint64(fns)
}

const (
	nsPerSec = 1_000_000_000
	relMask  = 1<<48 - 1
)

// Clock is the fixed-point accumulator. Advance it with [Clock.Edge] once
// per active clock edge; outputs ([Clock.Step], [Clock.PPS]) are valid for
// the cycle of the most recent Edge. Counters may be read by any number of
// consumers but stepped by exactly one driver.
type Clock struct {
	// Logger receives period configuration events. Optional.
	Logger *slog.Logger

	periodNs  uint32
	periodFns uint32
	driftNum  uint32
	driftDen  uint32
	driftCnt  uint32

	todS   uint64
	todNs  uint32
	todFns uint32 // 32-bit internal accumulator

	relNs  uint64
	relFns uint32

	updated bool
	step    bool
	pps     bool
}

// NewClock returns a running Clock with the given nominal period in
// nanoseconds (6.4 for the default 156.25 MHz). Non-positive or non-finite
// periods are a fatal configuration error.
func NewClock(periodNS float64) (*Clock, error) {
	c := &Clock{}
	if err := c.SetPeriodNS(periodNS); err != nil {
		return nil, err
	}
	return c, nil
}

// SetPeriod sets the per-edge increment directly: whole nanoseconds and
// 32-bit fractional nanoseconds.
func (c *Clock) SetPeriod(ns, fns uint32) {
	c.periodNs = ns
	c.periodFns = fns
}

// SetDrift sets the rational drift correction: num fractional-nanosecond
// units added once every denom edges. A zero denom disables drift.
func (c *Clock) SetDrift(num, denom uint32) {
	c.driftNum = num
	c.driftDen = denom
}

// SetPeriodNS decomposes a period in nanoseconds into the fixed-point
// increment plus a drift fraction with denominator at most 65535.
func (c *Clock) SetPeriodNS(t float64) error {
	if !(t > 0) || math.IsInf(t, 0) {
		return errBadPeriod
	}
	r := new(big.Rat).SetFloat64(t)
	if r == nil {
		return errBadPeriod
	}
	r.Mul(r, new(big.Rat).SetInt64(1<<32))
	whole := new(big.Int)
	rem := new(big.Int)
	whole.QuoRem(r.Num(), r.Denom(), rem)
	if !whole.IsUint64() || whole.Uint64() > math.MaxUint64>>1 {
		return errBadPeriod
	}
	period := whole.Uint64()
	num, den := limitDenominator(rem.Int64(), r.Denom().Int64(), 65535)
	c.SetPeriod(uint32(period>>32), uint32(period))
	c.SetDrift(uint32(num), uint32(den))
	internal.LogAttrs(c.Logger, slog.LevelDebug, "ptp:set-period",
		slog.Uint64("ns", uint64(c.periodNs)),
		slog.Uint64("fns", uint64(c.periodFns)),
		slog.Uint64("driftNum", uint64(c.driftNum)),
		slog.Uint64("driftDenom", uint64(c.driftDen)))
	return nil
}

// PeriodNS returns the effective per-edge period in nanoseconds, drift
// included.
func (c *Clock) PeriodNS() float64 {
	p := float64(uint64(c.periodNs)<<32 | uint64(c.periodFns))
	if c.driftDen != 0 {
		p += float64(c.driftNum) / float64(c.driftDen)
	}
	return p / (1 << 32)
}

// limitDenominator returns the closest rational to num/den with denominator
// at most maxDen, by walking the continued fraction expansion.
func limitDenominator(num, den, maxDen int64) (int64, int64) {
	if num == 0 || den == 0 {
		return 0, 0
	}
	if den <= maxDen {
		return num, den
	}
	p0, q0, p1, q1 := int64(0), int64(1), int64(1), int64(0)
	n, d := num, den
	for {
		a := n / d
		q2 := q0 + a*q1
		if q2 > maxDen {
			break
		}
		p0, q0, p1, q1 = p1, q1, p0+a*p1, q2
		n, d = d, n-a*d
		if d == 0 {
			return p1, q1
		}
	}
	k := (maxDen - q0) / q1
	// Closer of the two final convergents. Compare |num/den - p/q| scaled
	// by den*q to stay in integers.
	pa, qa := p0+k*p1, q0+k*q1
	da := abs64(num*qa - pa*den)
	db := abs64(num*q1 - p1*den)
	if db*qa <= da*q1 {
		return p1, q1
	}
	return pa, qa
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// SetTimeOfDay steps the time-of-day counter. fns uses the full 32-bit
// internal resolution.
func (c *Clock) SetTimeOfDay(s uint64, ns, fns uint32) {
	c.todS = s
	c.todNs = ns
	c.todFns = fns
	c.updated = true
}

// SetTimeOfDay96 steps the time-of-day counter from the wire format.
func (c *Clock) SetTimeOfDay96(t Time96) {
	c.SetTimeOfDay(t.Sec, t.Ns, uint32(t.Fns)<<16)
}

// TimeOfDay returns the counter at internal resolution.
func (c *Clock) TimeOfDay() (s uint64, ns, fns uint32) {
	return c.todS, c.todNs, c.todFns
}

// TimeOfDay96 returns the counter in the wire format; the fractional field
// is the high 16 bits of the internal accumulator.
func (c *Clock) TimeOfDay96() Time96 {
	return Time96{Sec: c.todS, Ns: c.todNs, Fns: uint16(c.todFns >> 16)}
}

// SetRel steps the relative counter. fns uses the 32-bit internal
// resolution.
func (c *Clock) SetRel(ns uint64, fns uint32) {
	c.relNs = ns & relMask
	c.relFns = fns
	c.updated = true
}

// SetRel64 steps the relative counter from the 64-bit wire format.
func (c *Clock) SetRel64(v uint64) {
	c.SetRel(v>>16, uint32(v&0xffff)<<16)
}

// Rel returns the relative counter at internal resolution.
func (c *Clock) Rel() (ns uint64, fns uint32) { return c.relNs, c.relFns }

// Rel64 returns the relative counter in the 64-bit wire format.
func (c *Clock) Rel64() uint64 { return Rel64(c.relNs, uint16(c.relFns>>16)) }

// Step reports whether a discontinuity (any Set* call) took effect on the
// cycle of the most recent Edge. Normal accumulation never asserts it.
func (c *Clock) Step() bool { return c.step }

// PPS reports whether the time-of-day seconds field incremented on the
// cycle of the most recent Edge.
func (c *Clock) PPS() bool { return c.pps }

// Edge advances both counters by one clock period.
func (c *Clock) Edge() {
	c.step = c.updated
	c.updated = false
	c.pps = false

	inc := uint64(c.periodNs)<<32 + uint64(c.periodFns)
	drift := uint64(0)
	if c.driftDen != 0 && c.driftCnt == 0 {
		drift = uint64(c.driftNum)
	}

	acc := uint64(c.todFns) + inc + drift
	c.todFns = uint32(acc)
	c.todNs += uint32(acc >> 32)
	if c.todNs >= nsPerSec {
		c.todS++
		c.todNs -= nsPerSec
		c.pps = true
	}

	acc = uint64(c.relFns) + inc + drift
	c.relFns = uint32(acc)
	c.relNs = (c.relNs + acc>>32) & relMask

	if c.driftDen != 0 {
		if c.driftCnt > 0 {
			c.driftCnt--
		} else {
			c.driftCnt = c.driftDen - 1
		}
	}
}

// Reset zeroes both counters and the drift phase. The configured period is
// retained.
func (c *Clock) Reset() {
	c.todS, c.todNs, c.todFns = 0, 0, 0
	c.relNs, c.relFns = 0, 0
	c.driftCnt = 0
	c.updated = false
	c.step = false
	c.pps = false
}
