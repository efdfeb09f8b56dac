package render

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
)

var (
	ErrStrip = errors.New("render: invalid strip index")
	ErrLED   = errors.New("render: invalid led index")
)

// AmbientSpeed is the rainbow speed restored by a game reset.
const AmbientSpeed = 100

// Engine owns the strip buffers, the global brightness and the animation
// phase clock. Every method is safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	strips []*led.Strip
	pixels int

	brightness float32

	mode      Mode
	startedMs uint32
	speedMs   uint32
	primary   led.Pixel
	secondary led.Pixel

	rng *rand.Rand
}

// NewEngine allocates count strips of pixels LEDs each. seed feeds the
// sparkle generator so runs can be replayed.
func NewEngine(count, pixels int, seed uint64) (*Engine, error) {
	if count <= 0 || pixels <= 0 {
		return nil, errors.New("render: strip count and length must be positive")
	}
	e := &Engine{
		pixels:     pixels,
		brightness: 1,
		mode:       Static,
		speedMs:    AmbientSpeed,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for i := 0; i < count; i++ {
		e.strips = append(e.strips, led.NewStrip(pixels))
	}
	return e, nil
}

func (e *Engine) Strips() int { return len(e.strips) }

// Pixels is the fixed length of every strip.
func (e *Engine) Pixels() int { return e.pixels }

func (e *Engine) strip(i int) (*led.Strip, error) {
	if i < 0 || i >= len(e.strips) {
		return nil, ErrStrip
	}
	return e.strips[i], nil
}

// ValidLED reports whether strip/index addresses a real pixel.
func (e *Engine) ValidLED(strip, index int) bool {
	return strip >= 0 && strip < len(e.strips) && index >= 0 && index < e.pixels
}

func (e *Engine) SetPixel(strip, index int, p led.Pixel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.strip(strip)
	if err != nil {
		return err
	}
	if !s.Set(index, p) {
		return ErrLED
	}
	return nil
}

func (e *Engine) Pixel(strip, index int) (led.Pixel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.strip(strip)
	if err != nil {
		return led.Black, err
	}
	p, ok := s.At(index)
	if !ok {
		return led.Black, ErrLED
	}
	return p, nil
}

// Snapshot copies one strip's buffer.
func (e *Engine) Snapshot(strip int) ([]led.Pixel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.strip(strip)
	if err != nil {
		return nil, err
	}
	return append([]led.Pixel(nil), s.Pixels()...), nil
}

func (e *Engine) SetStrip(strip int, p led.Pixel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.strip(strip)
	if err != nil {
		return err
	}
	s.Fill(p)
	return nil
}

func (e *Engine) SetAll(p led.Pixel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fillAll(p)
}

func (e *Engine) fillAll(p led.Pixel) {
	for _, s := range e.strips {
		s.Fill(p)
	}
}

func (e *Engine) ClearStrip(strip int) error {
	return e.SetStrip(strip, led.Black)
}

func (e *Engine) ClearAll() {
	e.SetAll(led.Black)
}

// SetRange paints count pixels from start; the run is clipped to the strip.
func (e *Engine) SetRange(strip, start, count int, p led.Pixel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.strip(strip)
	if err != nil {
		return err
	}
	if !s.FillRange(start, count, p) {
		return ErrLED
	}
	return nil
}

func (e *Engine) SetGradient(strip, start, count int, from, to led.Pixel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.strip(strip)
	if err != nil {
		return err
	}
	if !s.Gradient(start, count, from, to) {
		return ErrLED
	}
	return nil
}

// SetBrightness clamps b to [0,1]. Buffers keep full intensity; scaling
// happens on the way to the wire.
func (e *Engine) SetBrightness(b float32) {
	switch {
	case b < 0 || b != b:
		b = 0
	case b > 1:
		b = 1
	}
	e.mu.Lock()
	e.brightness = b
	for _, s := range e.strips {
		s.Touch()
	}
	e.mu.Unlock()
}

func (e *Engine) Brightness() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.brightness
}

// SetAnimation switches mode and restarts the phase clock at nowMs. A zero
// speed is treated as 1ms.
func (e *Engine) SetAnimation(m Mode, speedMs, nowMs uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setAnimation(m, speedMs, nowMs)
}

func (e *Engine) setAnimation(m Mode, speedMs, nowMs uint32) {
	if speedMs == 0 {
		speedMs = 1
	}
	e.mode = m
	e.speedMs = speedMs
	e.startedMs = nowMs
}

func (e *Engine) SetAnimationColors(primary, secondary led.Pixel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.primary = primary
	e.secondary = secondary
}

// Animation returns the current mode and speed.
func (e *Engine) Animation() (Mode, uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode, e.speedMs
}

func (e *Engine) Mode() Mode {
	m, _ := e.Animation()
	return m
}

// Blank stops any animation and clears every strip.
func (e *Engine) Blank(nowMs uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setAnimation(Static, e.speedMs, nowMs)
	e.fillAll(led.Black)
}

// Flood stops any animation and paints every strip p.
func (e *Engine) Flood(p led.Pixel, nowMs uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setAnimation(Static, e.speedMs, nowMs)
	e.fillAll(p)
}

// Highlight stops any animation, paints the listed strips p and clears the
// rest. Unknown strip indices are skipped.
func (e *Engine) Highlight(p led.Pixel, strips []int, nowMs uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setAnimation(Static, e.speedMs, nowMs)
	e.fillAll(led.Black)
	for _, i := range strips {
		if s, err := e.strip(i); err == nil {
			s.Fill(p)
		}
	}
}

// Ambient clears the strips and restarts the idle rainbow.
func (e *Engine) Ambient(nowMs uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fillAll(led.Black)
	e.setAnimation(Rainbow, AmbientSpeed, nowMs)
}

// Update recomputes the strips for the current mode at nowMs.
func (e *Engine) Update(nowMs uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	elapsed := nowMs - e.startedMs
	if fn := animators[e.mode]; fn != nil {
		fn(e, elapsed)
	}
}

// EachDirty implements led.FrameSource. The engine stays locked while fn
// runs so frames are captured whole.
func (e *Engine) EachDirty(fn func(strip int, px []led.Pixel, brightness float32, gen uint64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.strips {
		if s.Dirty() {
			fn(i, s.Pixels(), e.brightness, s.Generation())
		}
	}
}

func (e *Engine) MarkTransmitted(strip int, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, err := e.strip(strip); err == nil {
		s.Clean(gen)
	}
}

// Dirty reports whether strip awaits transmission.
func (e *Engine) Dirty(strip int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.strip(strip)
	return err == nil && s.Dirty()
}
