// Package input turns buzzer GPIO edges into game presses.
package input

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-buzzerbox/internal/game"
)

// PressFunc receives an edge for player stamped at atMs.
type PressFunc func(p game.Player, atMs uint32) bool

// Watcher runs one edge-waiting goroutine per buzzer pin. Each goroutine is
// the only writer for its button, so a button never races itself.
type Watcher struct {
	pins  map[game.Player]gpio.PinIn
	press PressFunc
	now   func() uint32
	// Poll bounds each WaitForEdge so cancellation is noticed.
	Poll time.Duration
}

// NewWatcher configures a and b as pulled-up inputs that report falling
// edges. Buttons short the line to ground.
func NewWatcher(a, b gpio.PinIn, press PressFunc, now func() uint32) (*Watcher, error) {
	w := &Watcher{
		pins:  map[game.Player]gpio.PinIn{game.PlayerA: a, game.PlayerB: b},
		press: press,
		now:   now,
		Poll:  100 * time.Millisecond,
	}
	for p, pin := range w.pins {
		if pin == nil {
			return nil, fmt.Errorf("buzzer %s: no pin", p)
		}
		if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("buzzer %s on %s: %w", p, pin, err)
		}
	}
	return w, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for p, pin := range w.pins {
		wg.Add(1)
		go func(p game.Player, pin gpio.PinIn) {
			defer wg.Done()
			w.watch(ctx, p, pin)
		}(p, pin)
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Watcher) watch(ctx context.Context, p game.Player, pin gpio.PinIn) {
	log.Debug().Str("player", p.String()).Str("pin", pin.String()).Msg("watching buzzer")
	for ctx.Err() == nil {
		if !pin.WaitForEdge(w.Poll) {
			continue
		}
		at := w.now()
		if w.press(p, at) {
			log.Info().Str("player", p.String()).Uint32("at_ms", at).Msg("buzzer accepted")
		}
	}
}
