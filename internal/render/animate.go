package render

import "github.com/coreman2200/funtimes-buzzerbox/internal/led"

type animator func(e *Engine, elapsed uint32)

var animators = map[Mode]animator{
	Static:  (*Engine).touchAll,
	Rainbow: (*Engine).rainbow,
	Chase:   (*Engine).chase,
	Pulse:   (*Engine).pulse,
	Sparkle: (*Engine).sparkle,
	Fade:    (*Engine).fade,
}

// touchAll resends whatever direct pixel writes left in the buffers.
func (e *Engine) touchAll(uint32) {
	for _, s := range e.strips {
		s.Touch()
	}
}

func (e *Engine) rainbow(elapsed uint32) {
	phase := (elapsed / e.speedMs) % 256
	for _, s := range e.strips {
		px := s.Pixels()
		for i := range px {
			hue := (phase + uint32(i*256/e.pixels)) & 0xFF
			px[i] = Wheel(uint8(hue))
		}
		s.Touch()
	}
}

// Wheel converts a hue at full saturation and value to RGB using six
// regions of 43 steps.
func Wheel(hue uint8) led.Pixel {
	region := hue / 43
	rem := (int(hue) - int(region)*43) * 6
	q := uint8(255 * (255 - rem) / 255)
	t := uint8(255 * rem / 255)
	switch region {
	case 0:
		return led.RGB(255, t, 0)
	case 1:
		return led.RGB(q, 255, 0)
	case 2:
		return led.RGB(0, 255, t)
	case 3:
		return led.RGB(0, q, 255)
	case 4:
		return led.RGB(t, 0, 255)
	default:
		return led.RGB(255, 0, q)
	}
}

func (e *Engine) chase(elapsed uint32) {
	pos := int((elapsed / e.speedMs) % uint32(e.pixels))
	next := (pos + 1) % e.pixels
	for _, s := range e.strips {
		px := s.Pixels()
		for i := range px {
			if i == pos || i == next {
				px[i] = e.primary
			} else {
				px[i] = e.secondary
			}
		}
		s.Touch()
	}
}

// triangle maps elapsed onto 0→1→0 over 2*speed.
func (e *Engine) triangle(elapsed uint32) float32 {
	period := uint64(e.speedMs) * 2
	phase := float32(uint64(elapsed)%period) / float32(e.speedMs)
	if phase < 1 {
		return phase
	}
	return 2 - phase
}

func (e *Engine) pulse(elapsed uint32) {
	e.fillAll(e.primary.Scale(e.triangle(elapsed)))
}

func (e *Engine) fade(elapsed uint32) {
	t := e.triangle(elapsed)
	e.fillAll(e.primary.Lerp(e.secondary, t))
}

const (
	sparklesPerStrip = 3
	sparkleDecay     = 0.9
)

func (e *Engine) sparkle(elapsed uint32) {
	if (elapsed/e.speedMs)%2 == 0 {
		for _, s := range e.strips {
			px := s.Pixels()
			for n := 0; n < sparklesPerStrip; n++ {
				px[e.rng.IntN(len(px))] = e.primary
			}
			s.Touch()
		}
		return
	}
	for _, s := range e.strips {
		px := s.Pixels()
		for i := range px {
			px[i] = px[i].Scale(sparkleDecay)
		}
		s.Touch()
	}
}
