package game

import (
	"fmt"
	"time"

	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
)

// State enumerates the game states. The zero value is Idle.
type State uint32

const (
	Idle State = iota
	TimerRunning
	TimerPaused
	PlayerAPressed
	PlayerBPressed
)

var stateNames = [...]string{
	Idle:           "idle",
	TimerRunning:   "timer_running",
	TimerPaused:    "timer_paused",
	PlayerAPressed: "player_a_pressed",
	PlayerBPressed: "player_b_pressed",
}

func (s State) String() string {
	if int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", uint32(s))
	}
	return stateNames[s]
}

// Player identifies a buzzer.
type Player int

const (
	PlayerA Player = iota
	PlayerB
)

func (p Player) String() string {
	if p == PlayerB {
		return "B"
	}
	return "A"
}

// Session is the whole game record. All times are milliseconds (or seconds
// where named) on a 32-bit clock that wraps.
type Session struct {
	State            State
	TimerDurationMs  uint32
	TimerStartMs     uint32
	TimeRemainingS   uint32
	PausedRemainingS uint32
	PlayerAPressed   bool
	PlayerBPressed   bool
	ExpiredNaturally bool
	LastPressAMs     uint32
	LastPressBMs     uint32
	LastStatusMs     uint32
}

// ActivePlayer is 'A' or 'B' while a buzzer holds the floor, 'N' otherwise.
func (s Session) ActivePlayer() byte {
	switch s.State {
	case PlayerAPressed:
		return 'A'
	case PlayerBPressed:
		return 'B'
	}
	return 'N'
}

// Lamps is the desired level of the discrete indicator outputs.
type Lamps struct {
	A, B, Running bool
}

// Hooks are the side effects the game drives. Nil hooks are skipped. They
// run with the game lock held and must not call back into the Game.
type Hooks struct {
	// Blank stops the animation and clears every strip.
	Blank func(nowMs uint32)
	// Flood stops the animation and paints every strip.
	Flood func(p led.Pixel, nowMs uint32)
	// Highlight paints the given strips and clears the rest.
	Highlight func(p led.Pixel, strips []int, nowMs uint32)
	// Ambient clears the strips and restarts the idle animation.
	Ambient func(nowMs uint32)
	// Indicate drives the discrete lamps.
	Indicate func(Lamps)
	// Status receives every emitted status line.
	Status func(line string)
}

// Config tunes the game. Zero fields take the defaults.
type Config struct {
	Debounce       time.Duration
	StatusInterval time.Duration
	MaxDuration    uint32 // seconds
	StripsA        []int
	StripsB        []int
	ColorA         led.Pixel
	ColorB         led.Pixel
	ExpiredColor   led.Pixel
}

func DefaultConfig() Config {
	return Config{
		Debounce:       50 * time.Millisecond,
		StatusInterval: 100 * time.Millisecond,
		MaxDuration:    300,
		StripsA:        []int{0, 1},
		StripsB:        []int{2, 3},
		ColorA:         led.Blue,
		ColorB:         led.Orange,
		ExpiredColor:   led.Red,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = d.StatusInterval
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = d.MaxDuration
	}
	if c.StripsA == nil {
		c.StripsA = d.StripsA
	}
	if c.StripsB == nil {
		c.StripsB = d.StripsB
	}
	if c.ColorA == (led.Pixel{}) {
		c.ColorA = d.ColorA
	}
	if c.ColorB == (led.Pixel{}) {
		c.ColorB = d.ColorB
	}
	if c.ExpiredColor == (led.Pixel{}) {
		c.ExpiredColor = d.ExpiredColor
	}
	return c
}
