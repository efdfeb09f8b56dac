// Package app assembles the buzzer box: one Core owns the game, the LED
// engine and everything that feeds or drains them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-buzzerbox/internal/config"
	"github.com/coreman2200/funtimes-buzzerbox/internal/console"
	"github.com/coreman2200/funtimes-buzzerbox/internal/game"
	"github.com/coreman2200/funtimes-buzzerbox/internal/indicator"
	"github.com/coreman2200/funtimes-buzzerbox/internal/input"
	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
	"github.com/coreman2200/funtimes-buzzerbox/internal/preview"
	"github.com/coreman2200/funtimes-buzzerbox/internal/render"
)

// IO is the hardware and transport the core is attached to. Nil pins and a
// nil In disable the matching feature.
type IO struct {
	Sinks []led.Sink

	ButtonA, ButtonB      gpio.PinIn
	LampA, LampB, Running gpio.PinOut

	// In carries console commands, Out receives responses and status lines.
	In  io.Reader
	Out io.Writer

	// Now overrides the millisecond clock.
	Now func() uint32
}

type Core struct {
	Cfg     *config.Config
	Eng     *render.Engine
	Game    *game.Game
	Tx      *led.Transmitter
	Console *console.Console
	Panel   *indicator.Panel
	Watcher *input.Watcher
	Hub     *preview.Hub

	in  io.Reader
	now func() uint32
}

// Clock returns a monotonic millisecond counter that wraps like a hardware
// timer.
func Clock() func() uint32 {
	start := time.Now()
	return func() uint32 { return uint32(time.Since(start).Milliseconds()) }
}

func InitCore(cfg *config.Config, hw IO) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(hw.Sinks) != cfg.Strips {
		return nil, fmt.Errorf("have %d sinks for %d strips", len(hw.Sinks), cfg.Strips)
	}
	now := hw.Now
	if now == nil {
		now = Clock()
	}
	out := hw.Out
	if out == nil {
		out = io.Discard
	}
	order, _ := led.ParseColorOrder(cfg.ColorOrder)
	colorA, _ := led.ParseColor(cfg.Game.ColorA)
	colorB, _ := led.ParseColor(cfg.Game.ColorB)

	// 1) Pixel buffers and compositor
	eng, err := render.NewEngine(cfg.Strips, cfg.LEDsPerStrip, cfg.Seed)
	if err != nil {
		return nil, err
	}
	eng.SetBrightness(float32(cfg.Brightness))

	// 2) Transmitter and preview
	tx := led.NewTransmitter(led.TxConfig{
		Order:        order,
		Interval:     time.Second / time.Duration(cfg.FPS),
		DrainTimeout: drainTimeout(cfg),
	}, cfg.LEDsPerStrip, hw.Sinks)
	hub := preview.NewHub(cfg.Strips, cfg.LEDsPerStrip)
	tx.SetObserver(hub.Frame)

	// 3) Game wiring (hooks → engine, lamps, status sinks)
	panel := indicator.New(hw.LampA, hw.LampB, hw.Running)
	output := console.NewOutput(out)
	hooks := game.Hooks{
		Blank:     eng.Blank,
		Flood:     eng.Flood,
		Highlight: eng.Highlight,
		Ambient:   eng.Ambient,
		Indicate:  panel.Set,
		Status: func(line string) {
			output.Line(line)
			hub.Status(line)
		},
	}
	g := game.New(game.Config{
		Debounce:       time.Duration(cfg.Game.DebounceMs) * time.Millisecond,
		StatusInterval: time.Duration(cfg.Game.StatusMs) * time.Millisecond,
		MaxDuration:    uint32(cfg.Game.MaxDurationS),
		StripsA:        cfg.Game.StripsA,
		StripsB:        cfg.Game.StripsB,
		ColorA:         colorA,
		ColorB:         colorB,
		ExpiredColor:   led.Red,
	}, hooks, now)
	hub.StateFn = func() string { return g.State().String() }

	c := &Core{
		Cfg:     cfg,
		Eng:     eng,
		Game:    g,
		Tx:      tx,
		Console: console.New(console.NewHandler(g, eng, now, output), cfg.Console.Queue),
		Panel:   panel,
		Hub:     hub,
		in:      hw.In,
		now:     now,
	}

	// 4) Buzzers
	if hw.ButtonA != nil && hw.ButtonB != nil {
		w, err := input.NewWatcher(hw.ButtonA, hw.ButtonB, g.Press, now)
		if err != nil {
			_ = tx.Close()
			return nil, err
		}
		c.Watcher = w
	} else {
		log.Warn().Msg("buzzer pins not configured; presses only via tests")
	}
	return c, nil
}

// Step runs one main-loop iteration. The clock is read after queued commands
// ran, so a timer they started is never older than the tick that follows.
// Only a transmitter fault is returned; it means the frame guarantee is gone.
func (c *Core) Step() error {
	c.Console.Poll(c.Cfg.Console.LinesPerTick)
	nowMs := c.now()
	c.Game.Tick(nowMs)
	c.Eng.Update(nowMs)
	if _, err := c.Tx.Flush(nowMs, c.Eng); err != nil {
		return err
	}
	c.logEvents()
	return nil
}

func (c *Core) logEvents() {
	for {
		select {
		case ev := <-c.Game.Events():
			e := log.Debug()
			if ev.Kind != game.StatusUpdate {
				e = log.Info()
			}
			e.Str("event", ev.Kind.String()).Uint32("at_ms", ev.AtMs).Str("data", ev.Data).Msg("game")
		default:
			return
		}
	}
}

// Run starts the reader goroutines and drives Step every TickMs until ctx
// is done or the transmitter faults.
func (c *Core) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.Hub.Run(ctx)
	if c.Watcher != nil {
		go func() {
			if err := c.Watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("buzzer watcher stopped")
			}
		}()
	}
	if c.in != nil {
		go func() {
			if err := c.Console.Serve(ctx, c.in); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("console reader stopped")
			}
		}()
	}

	tick := time.NewTicker(time.Duration(c.Cfg.TickMs) * time.Millisecond)
	defer tick.Stop()
	log.Info().Int("strips", c.Cfg.Strips).Int("leds", c.Cfg.LEDsPerStrip).Int("fps", c.Cfg.FPS).Msg("main loop starting")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := c.Step(); err != nil {
				return err
			}
		}
	}
}

// Close lets in-flight frames finish, turns the lamps off and releases the
// sinks.
func (c *Core) Close() error {
	if err := c.Tx.Drain(c.Eng); err != nil {
		log.Warn().Err(err).Msg("drain on close")
	}
	c.Panel.Off()
	return c.Tx.Close()
}
