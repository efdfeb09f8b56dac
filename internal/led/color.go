package led

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Pixel is one RGB triple as held in a strip buffer, before brightness and
// wire ordering are applied.
type Pixel struct {
	R, G, B uint8
}

func RGB(r, g, b uint8) Pixel {
	return Pixel{R: r, G: g, B: b}
}

// Scale multiplies every channel by f, truncating. f is clamped to [0,1].
func (p Pixel) Scale(f float32) Pixel {
	f = clamp01(f)
	return Pixel{
		R: uint8(float32(p.R) * f),
		G: uint8(float32(p.G) * f),
		B: uint8(float32(p.B) * f),
	}
}

// Lerp interpolates from p towards to. t=0 yields p, t=1 yields to.
func (p Pixel) Lerp(to Pixel, t float32) Pixel {
	t = clamp01(t)
	return Pixel{
		R: lerp8(p.R, to.R, t),
		G: lerp8(p.G, to.G, t),
		B: lerp8(p.B, to.B, t),
	}
}

func (p Pixel) NRGBA() color.NRGBA {
	return color.NRGBA{R: p.R, G: p.G, B: p.B, A: 255}
}

func (p Pixel) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.R, p.G, p.B)
}

func lerp8(a, b uint8, t float32) uint8 {
	return uint8(float32(a) + (float32(b)-float32(a))*t)
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

var (
	Black   = RGB(0, 0, 0)
	White   = RGB(255, 255, 255)
	Red     = RGB(255, 0, 0)
	Green   = RGB(0, 255, 0)
	Blue    = RGB(0, 0, 255)
	Yellow  = RGB(255, 255, 0)
	Cyan    = RGB(0, 255, 255)
	Magenta = RGB(255, 0, 255)
	Orange  = RGB(255, 128, 0)
	Purple  = RGB(128, 0, 255)
	Pink    = RGB(255, 192, 203)
)

var palette = map[string]Pixel{
	"black":   Black,
	"white":   White,
	"red":     Red,
	"green":   Green,
	"blue":    Blue,
	"yellow":  Yellow,
	"cyan":    Cyan,
	"magenta": Magenta,
	"orange":  Orange,
	"purple":  Purple,
	"pink":    Pink,
}

// Named looks up a palette color by name, case-insensitively.
func Named(name string) (Pixel, bool) {
	p, ok := palette[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// ParseColor accepts a palette name or "r,g,b" with decimal channels.
func ParseColor(s string) (Pixel, error) {
	if p, ok := Named(s); ok {
		return p, nil
	}
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return Black, fmt.Errorf("color %q: want a name or r,g,b", s)
	}
	var v [3]uint8
	for i, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return Black, fmt.Errorf("color %q: channel %d: %w", s, i, err)
		}
		v[i] = uint8(n)
	}
	return RGB(v[0], v[1], v[2]), nil
}

// ColorOrder is the channel sequence a strip expects on the wire, e.g. "GRB"
// for WS2812B.
type ColorOrder [3]byte

var GRB = ColorOrder{'G', 'R', 'B'}

// ParseColorOrder accepts any permutation of R, G and B.
func ParseColorOrder(s string) (ColorOrder, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return ColorOrder{}, fmt.Errorf("color order %q: need three channels", s)
	}
	var o ColorOrder
	seen := map[byte]bool{}
	for i := 0; i < 3; i++ {
		c := s[i]
		if c != 'R' && c != 'G' && c != 'B' {
			return ColorOrder{}, fmt.Errorf("color order %q: unknown channel %q", s, c)
		}
		if seen[c] {
			return ColorOrder{}, fmt.Errorf("color order %q: duplicate channel %q", s, c)
		}
		seen[c] = true
		o[i] = c
	}
	return o, nil
}

func (o ColorOrder) String() string {
	return string(o[:])
}

func (o ColorOrder) channel(p Pixel, i int) uint8 {
	switch o[i] {
	case 'R':
		return p.R
	case 'B':
		return p.B
	default:
		return p.G
	}
}

// Word packs p into the 32-bit wire word: the three channels in wire order
// occupy bits 31..8, MSB first; the low byte is unused.
func (o ColorOrder) Word(p Pixel) uint32 {
	return uint32(o.channel(p, 0))<<24 | uint32(o.channel(p, 1))<<16 | uint32(o.channel(p, 2))<<8
}

// Unpack is the inverse of Word.
func (o ColorOrder) Unpack(w uint32) Pixel {
	var p Pixel
	for i := 0; i < 3; i++ {
		v := uint8(w >> (24 - 8*uint(i)))
		switch o[i] {
		case 'R':
			p.R = v
		case 'B':
			p.B = v
		default:
			p.G = v
		}
	}
	return p
}
