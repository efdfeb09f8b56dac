package led

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrFrameOverrun means a strip did not drain its previous frame before the
// deadline. The frame rate guarantee is broken; callers treat it as fatal.
var ErrFrameOverrun = errors.New("led: previous frame not drained before deadline")

// FrameSource is the pixel store the transmitter reads from.
type FrameSource interface {
	// EachDirty calls fn for every dirty strip while the store is held stable.
	// fn must not retain px.
	EachDirty(fn func(strip int, px []Pixel, brightness float32, gen uint64))
	// MarkTransmitted clears the strip's dirty flag unless it was written
	// after generation gen was captured.
	MarkTransmitted(strip int, gen uint64)
}

// Observer receives every brightness-scaled frame handed to a lane. It must
// not retain px.
type Observer func(strip int, px []Pixel)

type TxConfig struct {
	Order ColorOrder
	// Interval is the minimum spacing between flushes (16ms ≈ 60Hz).
	Interval time.Duration
	// Gap is the idle time enforced between frames on one strip.
	Gap time.Duration
	// DrainTimeout bounds the wait for a strip's previous frame.
	DrainTimeout time.Duration
}

// Transmitter pushes dirty strips to their sinks. Every strip has its own
// lane: two word buffers and a goroutine that owns the sink, so strips send
// concurrently while one strip never overlaps itself.
type Transmitter struct {
	cfg      TxConfig
	lanes    []*lane
	observer Observer

	lastMs  uint32
	primed  bool
	pending []int

	closeOnce sync.Once
}

type lane struct {
	strip   int
	sink    Sink
	bufs    [2][]uint32
	back    int
	scaled  []Pixel
	frames  chan []uint32
	result  chan error
	stopped chan struct{}
	gap     time.Duration

	busy     bool
	busyGen  uint64
	stageGen uint64
}

// NewTransmitter starts one lane per sink. pixels is the strip length.
func NewTransmitter(cfg TxConfig, pixels int, sinks []Sink) *Transmitter {
	if cfg.Order == (ColorOrder{}) {
		cfg.Order = GRB
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 16 * time.Millisecond
	}
	if cfg.Gap <= 0 {
		cfg.Gap = WS2812B.Reset
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 100 * time.Millisecond
	}
	t := &Transmitter{cfg: cfg}
	for i, s := range sinks {
		l := &lane{
			strip:   i,
			sink:    s,
			bufs:    [2][]uint32{make([]uint32, pixels), make([]uint32, pixels)},
			scaled:  make([]Pixel, pixels),
			frames:  make(chan []uint32),
			result:  make(chan error, 1),
			stopped: make(chan struct{}),
			gap:     cfg.Gap,
		}
		go l.run()
		t.lanes = append(t.lanes, l)
	}
	return t
}

// SetObserver installs fn to see every outgoing frame.
func (t *Transmitter) SetObserver(fn Observer) {
	t.observer = fn
}

func (t *Transmitter) Strips() int {
	return len(t.lanes)
}

func (l *lane) run() {
	defer close(l.stopped)
	var end time.Time
	for words := range l.frames {
		if wait := l.gap - time.Since(end); wait > 0 {
			time.Sleep(wait)
		}
		err := l.sink.Send(words)
		end = time.Now()
		l.result <- err
	}
}

// stage scales and packs px into the back buffer. The back buffer is never the
// one in flight.
func (l *lane) stage(px []Pixel, brightness float32, order ColorOrder, gen uint64) {
	buf := l.bufs[l.back]
	for i := range buf {
		var p Pixel
		if i < len(px) {
			p = px[i].Scale(brightness)
		}
		l.scaled[i] = p
		buf[i] = order.Word(p)
	}
	l.stageGen = gen
}

// settle collects the in-flight frame's outcome. With wait false it only
// polls; with wait true it blocks up to timeout.
func (l *lane) settle(wait bool, timeout time.Duration) (done bool, err error) {
	if !l.busy {
		return true, nil
	}
	if !wait {
		select {
		case err = <-l.result:
		default:
			return false, nil
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case err = <-l.result:
		case <-timer.C:
			return false, fmt.Errorf("strip %d: %w", l.strip, ErrFrameOverrun)
		}
	}
	l.busy = false
	if err != nil {
		return true, fmt.Errorf("strip %d: %w", l.strip, err)
	}
	return true, nil
}

func (l *lane) launch() {
	buf := l.bufs[l.back]
	l.back ^= 1
	l.busy = true
	l.busyGen = l.stageGen
	l.frames <- buf
}

// Flush transmits the dirty strips of src if at least Interval has passed
// since the previous flush. It returns how many frames were launched.
func (t *Transmitter) Flush(nowMs uint32, src FrameSource) (int, error) {
	// Retire frames that have already drained.
	for _, l := range t.lanes {
		done, err := l.settle(false, 0)
		if err != nil {
			return 0, err
		}
		if done && l.busyGen != 0 {
			src.MarkTransmitted(l.strip, l.busyGen)
			l.busyGen = 0
		}
	}

	interval := uint32(t.cfg.Interval / time.Millisecond)
	if t.primed && nowMs-t.lastMs < interval {
		return 0, nil
	}
	t.primed = true
	t.lastMs = nowMs

	t.pending = t.pending[:0]
	src.EachDirty(func(strip int, px []Pixel, brightness float32, gen uint64) {
		if strip < 0 || strip >= len(t.lanes) {
			return
		}
		t.lanes[strip].stage(px, brightness, t.cfg.Order, gen)
		t.pending = append(t.pending, strip)
	})

	n := 0
	for _, strip := range t.pending {
		l := t.lanes[strip]
		if l.busy {
			prev := l.busyGen
			if _, err := l.settle(true, t.cfg.DrainTimeout); err != nil {
				return n, err
			}
			src.MarkTransmitted(strip, prev)
		}
		l.launch()
		if t.observer != nil {
			t.observer(strip, l.scaled)
		}
		n++
	}
	return n, nil
}

// Drain waits for every in-flight frame and marks it transmitted.
func (t *Transmitter) Drain(src FrameSource) error {
	for _, l := range t.lanes {
		gen := l.busyGen
		busy := l.busy
		if _, err := l.settle(true, t.cfg.DrainTimeout); err != nil {
			return err
		}
		if busy && gen != 0 && src != nil {
			src.MarkTransmitted(l.strip, gen)
		}
		l.busyGen = 0
	}
	return nil
}

// Close drains the lanes, stops their goroutines and closes the sinks.
func (t *Transmitter) Close() error {
	var errs []error
	t.closeOnce.Do(func() {
		if err := t.Drain(nil); err != nil {
			errs = append(errs, err)
		}
		for _, l := range t.lanes {
			close(l.frames)
			<-l.stopped
			if err := l.sink.Close(); err != nil {
				errs = append(errs, fmt.Errorf("strip %d: %w", l.strip, err))
			}
		}
	})
	return errors.Join(errs...)
}
