// Package indicator drives the discrete player lamps and the running line.
package indicator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-buzzerbox/internal/game"
)

// Panel owns the three lamp outputs. Any of them may be nil when the
// hardware lacks it.
type Panel struct {
	mu      sync.Mutex
	a, b    gpio.PinOut
	running gpio.PinOut
	last    game.Lamps
	primed  bool
}

func New(a, b, running gpio.PinOut) *Panel {
	return &Panel{a: a, b: b, running: running}
}

// Set drives the outputs. Unchanged levels are not rewritten.
func (p *Panel) Set(l game.Lamps) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.primed && l == p.last {
		return
	}
	if err := p.write(l); err != nil {
		log.Warn().Err(err).Msg("indicator write failed")
		return
	}
	p.last = l
	p.primed = true
}

func (p *Panel) write(l game.Lamps) error {
	var errs []error
	for _, o := range []struct {
		name string
		pin  gpio.PinOut
		on   bool
	}{
		{"A", p.a, l.A},
		{"B", p.b, l.B},
		{"running", p.running, l.Running},
	} {
		if o.pin == nil {
			continue
		}
		if err := o.pin.Out(gpio.Level(o.on)); err != nil {
			errs = append(errs, fmt.Errorf("lamp %s: %w", o.name, err))
		}
	}
	return errors.Join(errs...)
}

// Last is the most recently applied lamp state.
func (p *Panel) Last() game.Lamps {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Off forces every lamp low.
func (p *Panel) Off() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.write(game.Lamps{}); err != nil {
		log.Warn().Err(err).Msg("indicator write failed")
	}
	p.last = game.Lamps{}
	p.primed = true
}
