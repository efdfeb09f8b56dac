package led

import (
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
)

// Sink abstracts one strip's output. Send returns once the frame has left the
// wire (or the equivalent for non-hardware sinks).
type Sink interface {
	Send(words []uint32) error
	Close() error
}

// SPISink shifts NRZ-encoded frames out of an SPI MOSI line.
type SPISink struct {
	mu   sync.Mutex
	conn spi.Conn
	port spi.PortCloser
	enc  *Encoder
	buf  []byte
}

// NewSPISink wraps an already connected SPI conn.
func NewSPISink(conn spi.Conn, enc *Encoder) *SPISink {
	return &SPISink{conn: conn, enc: enc}
}

// OpenSPI opens the named spidev port ("" picks the first one) at the
// encoder's slot frequency.
func OpenSPI(name string, enc *Encoder) (*SPISink, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	c, err := p.Connect(enc.Freq(), spi.Mode0, 8)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("connect spi %q: %w", name, err)
	}
	s := NewSPISink(c, enc)
	s.port = p
	return s, nil
}

func (s *SPISink) Send(words []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("spi sink closed")
	}
	s.buf = s.enc.Encode(s.buf[:0], words)
	if err := s.conn.Tx(s.buf, nil); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

func (s *SPISink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
	if s.port != nil {
		err := s.port.Close()
		s.port = nil
		return err
	}
	return nil
}

// NRZSink hands frames to periph's nrzled driver, which does its own bit
// expansion. The driver takes RGB and always shifts out G, R, B, so the
// word's channels are fed in the slots that put them on the wire in order.
type NRZSink struct {
	mu   sync.Mutex
	dev  *nrzled.Dev
	port spi.PortCloser
	rgb  []byte
}

// NewNRZSink drives pixels LEDs through nrzled on an already opened port.
func NewNRZSink(p spi.Port, pixels int) (*NRZSink, error) {
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: pixels,
		Channels:  3,
		Freq:      800 * physic.KiloHertz,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &NRZSink{dev: d, rgb: make([]byte, pixels*3)}, nil
}

func OpenNRZ(name string, pixels int) (*NRZSink, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	s, err := NewNRZSink(p, pixels)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	s.port = p
	return s, nil
}

func (s *NRZSink) Send(words []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return fmt.Errorf("nrzled sink closed")
	}
	s.rgb = s.rgb[:0]
	for _, w := range words {
		s.rgb = append(s.rgb, byte(w>>16), byte(w>>24), byte(w>>8))
	}
	if _, err := s.dev.Write(s.rgb); err != nil {
		return fmt.Errorf("nrzled write: %w", err)
	}
	return nil
}

func (s *NRZSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Halt()
	s.dev = nil
	if s.port != nil {
		if cerr := s.port.Close(); err == nil {
			err = cerr
		}
		s.port = nil
	}
	return err
}

// screenMu keeps concurrent lanes from interleaving ANSI output.
var screenMu sync.Mutex

// ScreenSink paints frames on the terminal; handy on a bench without strips.
type ScreenSink struct {
	dev   display.Drawer
	order ColorOrder
	img   *image.NRGBA
}

func NewScreenSink(pixels int, order ColorOrder) *ScreenSink {
	return &ScreenSink{
		dev:   screen.New(pixels),
		order: order,
		img:   image.NewNRGBA(image.Rect(0, 0, pixels, 1)),
	}
}

func (s *ScreenSink) Send(words []uint32) error {
	for x := 0; x < s.img.Rect.Max.X && x < len(words); x++ {
		s.img.SetNRGBA(x, 0, s.order.Unpack(words[x]).NRGBA())
	}
	screenMu.Lock()
	defer screenMu.Unlock()
	if err := s.dev.Draw(s.dev.Bounds(), s.img, image.Point{}); err != nil {
		return err
	}
	_, err := os.Stdout.WriteString("\n")
	return err
}

func (s *ScreenSink) Close() error {
	return s.dev.Halt()
}

// SimSink records frames in memory. Delay emulates wire time.
type SimSink struct {
	Delay time.Duration

	mu     sync.Mutex
	frames [][]uint32
	closed bool
}

func NewSim() *SimSink {
	return &SimSink{}
}

func (s *SimSink) Send(words []uint32) error {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sim sink closed")
	}
	s.frames = append(s.frames, append([]uint32(nil), words...))
	return nil
}

func (s *SimSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Frames returns a copy of every frame sent so far.
func (s *SimSink) Frames() [][]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]uint32, len(s.frames))
	copy(out, s.frames)
	return out
}

// Last returns the most recent frame, or nil.
func (s *SimSink) Last() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}
