package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
)

// EnvPrefix namespaces every environment override, e.g. BUZZERBOX_FPS.
const EnvPrefix = "BUZZERBOX_"

type SPI struct {
	Devs    []string `yaml:"devs" env:"DEVS" envSeparator:","` // one port per strip, e.g. /dev/spidev0.0
	SlotHz  int      `yaml:"slot_hz" env:"SLOT_HZ"`             // NRZ slot clock, 2400000 gives 3 slots per bit
	ResetUs int      `yaml:"reset_us" env:"RESET_US"`
}

type Game struct {
	MaxDurationS int    `yaml:"max_duration_s" env:"MAX_DURATION_S"`
	DebounceMs   int    `yaml:"debounce_ms" env:"DEBOUNCE_MS"`
	StatusMs     int    `yaml:"status_ms" env:"STATUS_MS"`
	StripsA      []int  `yaml:"strips_a" env:"STRIPS_A" envSeparator:","`
	StripsB      []int  `yaml:"strips_b" env:"STRIPS_B" envSeparator:","`
	ColorA       string `yaml:"color_a" env:"COLOR_A"` // palette name or r,g,b
	ColorB       string `yaml:"color_b" env:"COLOR_B"`
}

// GPIO holds periph pin names. Empty names disable the line.
type GPIO struct {
	ButtonA string `yaml:"button_a" env:"BUTTON_A"`
	ButtonB string `yaml:"button_b" env:"BUTTON_B"`
	LampA   string `yaml:"lamp_a" env:"LAMP_A"`
	LampB   string `yaml:"lamp_b" env:"LAMP_B"`
	Running string `yaml:"running" env:"RUNNING"`
}

type Console struct {
	Device       string `yaml:"device" env:"DEVICE"` // tty path, or "stdio"
	Baud         int    `yaml:"baud" env:"BAUD"`
	Queue        int    `yaml:"queue" env:"QUEUE"`
	LinesPerTick int    `yaml:"lines_per_tick" env:"LINES_PER_TICK"`
}

type Preview struct {
	Addr string `yaml:"addr" env:"ADDR"` // empty disables the server
}

type Config struct {
	Sink         string  `yaml:"sink" env:"SINK"` // "spi" | "nrzled" | "screen" | "sim"
	Strips       int     `yaml:"strips" env:"STRIPS"`
	LEDsPerStrip int     `yaml:"leds_per_strip" env:"LEDS_PER_STRIP"`
	ColorOrder   string  `yaml:"color_order" env:"COLOR_ORDER"`
	Brightness   float64 `yaml:"brightness" env:"BRIGHTNESS"`
	FPS          int     `yaml:"fps" env:"FPS"`
	TickMs       int     `yaml:"tick_ms" env:"TICK_MS"`
	Seed         uint64  `yaml:"seed" env:"SEED"`
	LogLevel     string  `yaml:"log_level" env:"LOG_LEVEL"`

	SPI     SPI     `yaml:"spi" envPrefix:"SPI_"`
	Game    Game    `yaml:"game" envPrefix:"GAME_"`
	GPIO    GPIO    `yaml:"gpio" envPrefix:"GPIO_"`
	Console Console `yaml:"console" envPrefix:"CONSOLE_"`
	Preview Preview `yaml:"preview" envPrefix:"PREVIEW_"`
}

// Default mirrors the wiring of the reference buzzer box: four 60-LED strips,
// two per team.
func Default() *Config {
	return &Config{
		Sink:         "sim",
		Strips:       4,
		LEDsPerStrip: 60,
		ColorOrder:   "GRB",
		Brightness:   1,
		FPS:          60,
		TickMs:       10,
		Seed:         1,
		LogLevel:     "info",
		SPI: SPI{
			Devs:    []string{"/dev/spidev0.0", "/dev/spidev0.1", "/dev/spidev1.0", "/dev/spidev1.1"},
			SlotHz:  2400000,
			ResetUs: 50,
		},
		Game: Game{
			MaxDurationS: 300,
			DebounceMs:   50,
			StatusMs:     100,
			StripsA:      []int{0, 1},
			StripsB:      []int{2, 3},
			ColorA:       "blue",
			ColorB:       "orange",
		},
		GPIO: GPIO{
			ButtonA: "GPIO17",
			ButtonB: "GPIO27",
			LampA:   "GPIO22",
			LampB:   "GPIO23",
			Running: "GPIO24",
		},
		Console: Console{
			Device:       "stdio",
			Baud:         115200,
			Queue:        16,
			LinesPerTick: 4,
		},
		Preview: Preview{Addr: ":8080"},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ApplyEnv overrides c with any BUZZERBOX_* variables that are set.
func ApplyEnv(c *Config) error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Strips <= 0 {
		errs = append(errs, fmt.Errorf("strips must be positive, got %d", c.Strips))
	}
	if c.LEDsPerStrip <= 0 {
		errs = append(errs, fmt.Errorf("leds_per_strip must be positive, got %d", c.LEDsPerStrip))
	}
	if _, err := led.ParseColorOrder(c.ColorOrder); err != nil {
		errs = append(errs, err)
	}
	if c.FPS <= 0 || c.FPS > 1000 {
		errs = append(errs, fmt.Errorf("fps %d out of range", c.FPS))
	}
	if c.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("tick_ms must be positive, got %d", c.TickMs))
	}
	if c.Game.MaxDurationS <= 0 {
		errs = append(errs, fmt.Errorf("game.max_duration_s must be positive"))
	}
	for _, s := range append(append([]int(nil), c.Game.StripsA...), c.Game.StripsB...) {
		if s < 0 || s >= c.Strips {
			errs = append(errs, fmt.Errorf("player strip %d outside 0..%d", s, c.Strips-1))
		}
	}
	for _, col := range []string{c.Game.ColorA, c.Game.ColorB} {
		if _, err := led.ParseColor(col); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Sink {
	case "spi", "nrzled":
		if len(c.SPI.Devs) < c.Strips {
			errs = append(errs, fmt.Errorf("sink %s needs %d spi devs, have %d", c.Sink, c.Strips, len(c.SPI.Devs)))
		}
	case "screen", "sim":
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q", c.Sink))
	}
	return errors.Join(errs...)
}
