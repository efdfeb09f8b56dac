package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-buzzerbox/internal/config"
	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
)

// Encoder builds the NRZ encoder described by cfg.
func Encoder(cfg *config.Config) (*led.Encoder, error) {
	t := led.WS2812B
	if cfg.SPI.ResetUs > 0 {
		t.Reset = time.Duration(cfg.SPI.ResetUs) * time.Microsecond
	}
	return led.NewEncoder(t, physic.Frequency(cfg.SPI.SlotHz)*physic.Hertz)
}

// OpenSinks opens one sink per strip for the configured backend. Hardware
// failures fall back to the simulator so the box stays usable on a bench.
func OpenSinks(cfg *config.Config) ([]led.Sink, error) {
	order, err := led.ParseColorOrder(cfg.ColorOrder)
	if err != nil {
		return nil, err
	}
	var open func(i int) (led.Sink, error)
	switch cfg.Sink {
	case "spi":
		enc, err := Encoder(cfg)
		if err != nil {
			return nil, err
		}
		open = func(i int) (led.Sink, error) { return led.OpenSPI(cfg.SPI.Devs[i], enc) }
	case "nrzled":
		open = func(i int) (led.Sink, error) { return led.OpenNRZ(cfg.SPI.Devs[i], cfg.LEDsPerStrip) }
	case "screen":
		open = func(int) (led.Sink, error) { return led.NewScreenSink(cfg.LEDsPerStrip, order), nil }
	case "sim":
		open = func(int) (led.Sink, error) { return led.NewSim(), nil }
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	sinks := make([]led.Sink, 0, cfg.Strips)
	for i := 0; i < cfg.Strips; i++ {
		s, err := open(i)
		if err != nil {
			log.Warn().Err(err).Str("sink", cfg.Sink).Int("strip", i).Msg("sink init failed; falling back to SIM")
			s = led.NewSim()
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// drainTimeout bounds the wait for one frame: a few wire times, never less
// than one frame interval.
func drainTimeout(cfg *config.Config) time.Duration {
	d := time.Second / time.Duration(cfg.FPS)
	if enc, err := Encoder(cfg); err == nil {
		d = max(d, 4*enc.FrameTime(cfg.LEDsPerStrip))
	}
	return d + 20*time.Millisecond
}
