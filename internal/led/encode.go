package led

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Timing describes the NRZ bit templates of an addressable LED.
type Timing struct {
	T0H, T0L time.Duration // "0" bit: short high, long low
	T1H, T1L time.Duration // "1" bit: long high, short low
	Reset    time.Duration // minimum low time that latches a frame
}

// WS2812B timings from the datasheet.
var WS2812B = Timing{
	T0H:   400 * time.Nanosecond,
	T0L:   850 * time.Nanosecond,
	T1H:   800 * time.Nanosecond,
	T1L:   450 * time.Nanosecond,
	Reset: 50 * time.Microsecond,
}

// Tolerance is the maximum deviation of any encoded high or low phase from
// its template.
const Tolerance = 150 * time.Nanosecond

// DefaultSlotFreq gives three slots per 1.25µs bit.
const DefaultSlotFreq = 2400 * physic.KiloHertz

var ErrTiming = errors.New("led: slot frequency cannot reproduce bit timing")

func (t Timing) BitPeriod() time.Duration {
	return max(t.T0H+t.T0L, t.T1H+t.T1L)
}

// Encoder expands wire words into a shift-out stream where every data bit
// becomes Width slots at the slot frequency: a 1 is a long run of high slots,
// a 0 a short one. With the default 2.4MHz clock a 0 encodes as 100 and a 1
// as 110.
type Encoder struct {
	timing     Timing
	freq       physic.Frequency
	slot       time.Duration
	width      int
	zero, one  byte
	lut        [256][]byte
	resetBytes int
}

func NewEncoder(t Timing, freq physic.Frequency) (*Encoder, error) {
	if freq <= 0 {
		freq = DefaultSlotFreq
	}
	slot := freq.Period()
	if slot <= 0 {
		return nil, fmt.Errorf("%w: period of %s", ErrTiming, freq)
	}
	width := int(roundDiv(t.BitPeriod(), slot))
	if width < 2 || width > 8 {
		return nil, fmt.Errorf("%w: %d slots per bit at %s", ErrTiming, width, freq)
	}
	high0 := clampSlots(roundDiv(t.T0H, slot), width)
	high1 := clampSlots(roundDiv(t.T1H, slot), width)
	if high1 <= high0 {
		return nil, fmt.Errorf("%w: 0 and 1 bits collapse at %s", ErrTiming, freq)
	}
	for _, c := range []struct{ got, want time.Duration }{
		{time.Duration(high0) * slot, t.T0H},
		{time.Duration(width-high0) * slot, t.T0L},
		{time.Duration(high1) * slot, t.T1H},
		{time.Duration(width-high1) * slot, t.T1L},
	} {
		if d := c.got - c.want; d > Tolerance || d < -Tolerance {
			return nil, fmt.Errorf("%w: phase %s wants %s at %s", ErrTiming, c.got, c.want, freq)
		}
	}

	e := &Encoder{
		timing: t,
		freq:   freq,
		slot:   slot,
		width:  width,
		zero:   template(high0, width),
		one:    template(high1, width),
	}
	// A byte of data becomes 8*width slots, i.e. exactly width bytes.
	for v := 0; v < 256; v++ {
		var acc uint64
		for i := 7; i >= 0; i-- {
			tpl := e.zero
			if (v>>i)&1 == 1 {
				tpl = e.one
			}
			acc = acc<<uint(width) | uint64(tpl)
		}
		out := make([]byte, width)
		for i := 0; i < width; i++ {
			out[i] = byte(acc >> (8 * uint(width-1-i)))
		}
		e.lut[v] = out
	}
	resetBits := roundUpDiv(t.Reset, slot)
	e.resetBytes = int((resetBits + 7) / 8)
	return e, nil
}

// template builds a width-slot pattern with high leading ones.
func template(high, width int) byte {
	return byte(((1 << uint(high)) - 1) << uint(width-high))
}

func roundDiv(a, b time.Duration) int64 {
	return int64((a + b/2) / b)
}

func roundUpDiv(a, b time.Duration) int64 {
	return int64((a + b - 1) / b)
}

func clampSlots(n int64, width int) int {
	if n < 1 {
		return 1
	}
	if n > int64(width-1) {
		return width - 1
	}
	return int(n)
}

func (e *Encoder) Freq() physic.Frequency {
	return e.freq
}

// Width is the number of slots per data bit.
func (e *Encoder) Width() int {
	return e.width
}

// Templates returns the slot patterns for a 0 and a 1 bit.
func (e *Encoder) Templates() (zero, one byte) {
	return e.zero, e.one
}

// FrameLen is the encoded size of n pixels including the reset tail.
func (e *Encoder) FrameLen(n int) int {
	return n*3*e.width + e.resetBytes
}

// FrameTime is how long n pixels plus the reset gap occupy the wire.
func (e *Encoder) FrameTime(n int) time.Duration {
	return time.Duration(e.FrameLen(n)*8) * e.slot
}

// Encode appends the encoding of words to dst, followed by the low reset
// tail. Only the upper 24 bits of each word are sent.
func (e *Encoder) Encode(dst []byte, words []uint32) []byte {
	for _, w := range words {
		dst = append(dst, e.lut[byte(w>>24)]...)
		dst = append(dst, e.lut[byte(w>>16)]...)
		dst = append(dst, e.lut[byte(w>>8)]...)
	}
	for i := 0; i < e.resetBytes; i++ {
		dst = append(dst, 0)
	}
	return dst
}
