// Package console implements the line-oriented text protocol used to run
// the game from a serial terminal or a host application.
package console

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-buzzerbox/internal/game"
	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
	"github.com/coreman2200/funtimes-buzzerbox/internal/render"
)

// Game is the slice of the state machine the console drives.
type Game interface {
	StartTimer(seconds uint32) error
	StopTimer()
	PauseTimer() bool
	ResumeTimer() bool
	ResetGame()
	ForceReset()
	Session() game.Session
	MaxDuration() uint32
}

// LEDs is the slice of the LED engine the console drives.
type LEDs interface {
	ValidLED(strip, index int) bool
	Strips() int
	SetPixel(strip, index int, p led.Pixel) error
	SetStrip(strip int, p led.Pixel) error
	SetAll(p led.Pixel)
	ClearStrip(strip int) error
	ClearAll()
	SetRange(strip, start, count int, p led.Pixel) error
	SetGradient(strip, start, count int, from, to led.Pixel) error
	SetAnimation(m render.Mode, speedMs, nowMs uint32)
	SetAnimationColors(primary, secondary led.Pixel)
	Animation() (render.Mode, uint32)
	SetBrightness(b float32)
	Brightness() float32
}

// DefaultSpeed applies when led_animate gets no speed.
const DefaultSpeed = 100

type handler func(h *Handler, args string)

var commands = map[string]handler{
	"hello":          (*Handler).hello,
	"status":         (*Handler).status,
	"help":           (*Handler).help,
	"start_timer":    (*Handler).startTimer,
	"stop_timer":     (*Handler).stopTimer,
	"pause_timer":    (*Handler).pauseTimer,
	"resume_timer":   (*Handler).resumeTimer,
	"reset_game":     (*Handler).resetGame,
	"force_reset":    (*Handler).forceReset,
	"led_set":        (*Handler).ledSet,
	"led_strip":      (*Handler).ledStrip,
	"led_all":        (*Handler).ledAll,
	"led_clear":      (*Handler).ledClear,
	"led_range":      (*Handler).ledRange,
	"led_gradient":   (*Handler).ledGradient,
	"led_colors":     (*Handler).ledColors,
	"led_animate":    (*Handler).ledAnimate,
	"led_brightness": (*Handler).ledBrightness,
}

var helpText = []string{
	"Available commands:",
	"  hello [name]       - Say hello",
	"  status             - Get system status",
	"  start_timer <sec>  - Start game timer",
	"  stop_timer         - Stop game timer",
	"  pause_timer        - Pause running timer",
	"  resume_timer       - Resume paused timer",
	"  reset_game         - Reset game state",
	"  force_reset        - Complete system reset",
	"  led_set <strip> <led> <r> <g> <b> - Set single LED",
	"  led_strip <strip> <r> <g> <b>     - Set entire strip",
	"  led_all <r> <g> <b>                - Set all LEDs",
	"  led_clear [strip]                  - Clear LEDs",
	"  led_range <strip> <start> <count> <r> <g> <b> - Set a run of LEDs",
	"  led_gradient <strip> <start> <count> <r> <g> <b> <r> <g> <b> - Blend a run of LEDs",
	"  led_colors <primary> [secondary]   - Animation colors (name or r,g,b)",
	"  led_animate <mode> [speed]         - Set animation",
	"  led_brightness <0-100>             - Set brightness",
	"  help               - Show this help",
}

// Handler executes one command line at a time.
type Handler struct {
	game Game
	leds LEDs
	now  func() uint32
	out  *Output
}

func NewHandler(g Game, l LEDs, now func() uint32, out *Output) *Handler {
	return &Handler{game: g, leds: l, now: now, out: out}
}

// Dispatch echoes line and runs the command it names. Lookup is
// case-insensitive; arguments are passed through trimmed.
func (h *Handler) Dispatch(line string) {
	h.out.Line("Received: " + line)
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	name, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)
	fn, ok := commands[strings.ToLower(name)]
	if !ok {
		h.out.Lines("Unknown command: "+name, "Type 'help' for available commands")
		return
	}
	log.Debug().Str("cmd", strings.ToLower(name)).Str("args", args).Msg("console command")
	fn(h, args)
}

func (h *Handler) hello(args string) {
	if args == "" {
		h.out.Line("Hello from Chantskis Feud!")
		return
	}
	h.out.Line("Hello, " + args + "!")
}

func (h *Handler) status(string) {
	s := h.game.Session()
	mode, _ := h.leds.Animation()
	lines := []string{"System Status: OK", "Console: Connected"}
	lines = append(lines, s.Report()...)
	lines = append(lines,
		"Animation: "+mode.String(),
		fmt.Sprintf("Brightness: %d%%", int(math.Round(float64(h.leds.Brightness())*100))),
	)
	h.out.Lines(lines...)
}

func (h *Handler) help(string) {
	h.out.Lines(helpText...)
}

func (h *Handler) startTimer(args string) {
	if args == "" {
		h.out.Line("Error: start_timer requires duration in seconds")
		return
	}
	d, ok := firstNumber(args)
	if !ok {
		h.out.Line("Error: Invalid duration format")
		return
	}
	limit := uint64(h.game.MaxDuration())
	if d == 0 || d > limit {
		h.out.Line(fmt.Sprintf("Error: Duration must be between 1 and %d seconds", limit))
		return
	}
	if err := h.game.StartTimer(uint32(d)); err != nil {
		h.out.Line("Error: " + err.Error())
		return
	}
	h.out.Line(fmt.Sprintf("Timer started for %d seconds", d))
}

func (h *Handler) stopTimer(string) {
	h.game.StopTimer()
	h.out.Line("Timer stopped")
}

func (h *Handler) pauseTimer(string) {
	h.game.PauseTimer()
	h.out.Line("Timer paused")
}

func (h *Handler) resumeTimer(string) {
	h.game.ResumeTimer()
	h.out.Line("Timer resumed")
}

func (h *Handler) resetGame(string) {
	h.game.ResetGame()
	h.out.Line("Game reset")
}

func (h *Handler) forceReset(string) {
	h.game.ForceReset()
	h.out.Line("System force reset complete")
}

func (h *Handler) static() {
	_, speed := h.leds.Animation()
	h.leds.SetAnimation(render.Static, speed, h.now())
}

func (h *Handler) ledSet(args string) {
	v, ok := numbers(args, 5)
	if !ok {
		h.out.Line("Error: led_set requires: strip led r g b")
		return
	}
	if !h.validLED(v[0], v[1]) {
		h.out.Line("Error: Invalid strip or LED index")
		return
	}
	p, ok := rgb(v[2:5])
	if !ok {
		h.out.Line("Error: RGB values must be 0-255")
		return
	}
	if err := h.leds.SetPixel(int(v[0]), int(v[1]), p); err != nil {
		h.out.Line("Error: Invalid strip or LED index")
		return
	}
	h.static()
	h.out.Line(fmt.Sprintf("LED set: strip %d, led %d = %s", v[0], v[1], p))
}

func (h *Handler) ledStrip(args string) {
	v, ok := numbers(args, 4)
	if !ok {
		h.out.Line("Error: led_strip requires: strip r g b")
		return
	}
	if !h.validStrip(v[0]) {
		h.out.Line("Error: Invalid strip index")
		return
	}
	p, ok := rgb(v[1:4])
	if !ok {
		h.out.Line("Error: RGB values must be 0-255")
		return
	}
	if err := h.leds.SetStrip(int(v[0]), p); err != nil {
		h.out.Line("Error: Invalid strip index")
		return
	}
	h.static()
	h.out.Line(fmt.Sprintf("Strip %d set to %s", v[0], p))
}

func (h *Handler) ledAll(args string) {
	v, ok := numbers(args, 3)
	if !ok {
		h.out.Line("Error: led_all requires: r g b")
		return
	}
	p, ok := rgb(v)
	if !ok {
		h.out.Line("Error: RGB values must be 0-255")
		return
	}
	h.leds.SetAll(p)
	h.static()
	h.out.Line("All LEDs set to " + p.String())
}

func (h *Handler) ledClear(args string) {
	if args == "" {
		h.leds.ClearAll()
		h.static()
		h.out.Line("All LEDs cleared")
		return
	}
	s, ok := firstNumber(args)
	if !ok || !h.validStrip(s) {
		h.out.Line("Error: Invalid strip index")
		return
	}
	if err := h.leds.ClearStrip(int(s)); err != nil {
		h.out.Line("Error: Invalid strip index")
		return
	}
	h.static()
	h.out.Line(fmt.Sprintf("Strip %d cleared", s))
}

func (h *Handler) ledRange(args string) {
	v, ok := numbers(args, 6)
	if !ok {
		h.out.Line("Error: led_range requires: strip start count r g b")
		return
	}
	if !h.validLED(v[0], v[1]) {
		h.out.Line("Error: Invalid strip or LED index")
		return
	}
	p, ok := rgb(v[3:6])
	if !ok {
		h.out.Line("Error: RGB values must be 0-255")
		return
	}
	if err := h.leds.SetRange(int(v[0]), int(v[1]), clampCount(v[2]), p); err != nil {
		h.out.Line("Error: Invalid strip or LED index")
		return
	}
	h.static()
	h.out.Line(fmt.Sprintf("Range set: strip %d, led %d+%d = %s", v[0], v[1], v[2], p))
}

func (h *Handler) ledGradient(args string) {
	v, ok := numbers(args, 9)
	if !ok {
		h.out.Line("Error: led_gradient requires: strip start count r g b r g b")
		return
	}
	if !h.validLED(v[0], v[1]) {
		h.out.Line("Error: Invalid strip or LED index")
		return
	}
	from, ok1 := rgb(v[3:6])
	to, ok2 := rgb(v[6:9])
	if !ok1 || !ok2 {
		h.out.Line("Error: RGB values must be 0-255")
		return
	}
	if err := h.leds.SetGradient(int(v[0]), int(v[1]), clampCount(v[2]), from, to); err != nil {
		h.out.Line("Error: Invalid strip or LED index")
		return
	}
	h.static()
	h.out.Line(fmt.Sprintf("Gradient set: strip %d, led %d+%d = %s..%s", v[0], v[1], v[2], from, to))
}

func (h *Handler) ledColors(args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		h.out.Line("Error: led_colors requires: primary [secondary]")
		return
	}
	primary, err := led.ParseColor(fields[0])
	secondary := led.Black
	if err == nil && len(fields) == 2 {
		secondary, err = led.ParseColor(fields[1])
	}
	if err != nil {
		h.out.Line("Error: Invalid color. Use a name or r,g,b")
		return
	}
	h.leds.SetAnimationColors(primary, secondary)
	h.out.Line(fmt.Sprintf("Animation colors set to %s and %s", primary, secondary))
}

func (h *Handler) ledAnimate(args string) {
	modeStr, speedStr, _ := strings.Cut(args, " ")
	mode, err := render.ParseMode(modeStr)
	if err != nil {
		h.out.Line("Error: Invalid animation mode. Use: static, fade, rainbow, chase, pulse, sparkle")
		return
	}
	speed := uint64(DefaultSpeed)
	if strings.TrimSpace(speedStr) != "" {
		s, ok := firstNumber(speedStr)
		if !ok {
			h.out.Line("Error: Invalid speed format")
			return
		}
		speed = min(s, math.MaxUint32)
	}
	h.leds.SetAnimation(mode, uint32(speed), h.now())
	_, effective := h.leds.Animation()
	h.out.Line(fmt.Sprintf("Animation set to %s (speed: %dms)", mode, effective))
}

func (h *Handler) ledBrightness(args string) {
	if args == "" {
		h.out.Line("Error: led_brightness requires brightness value (0-100)")
		return
	}
	b, ok := firstNumber(args)
	if !ok {
		h.out.Line("Error: Invalid brightness format")
		return
	}
	if b > 100 {
		h.out.Line("Error: Brightness must be 0-100")
		return
	}
	h.leds.SetBrightness(float32(b) / 100)
	h.out.Line(fmt.Sprintf("Brightness set to %d%%", b))
}

func (h *Handler) validStrip(s uint64) bool {
	return s < uint64(h.leds.Strips())
}

func (h *Handler) validLED(s, i uint64) bool {
	return s <= math.MaxInt32 && i <= math.MaxInt32 && h.leds.ValidLED(int(s), int(i))
}

// number parses a run of ASCII digits, saturating on overflow so range
// checks still reject it.
func number(tok string) (uint64, bool) {
	if tok == "" {
		return 0, false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return math.MaxUint64, true
	}
	return v, true
}

// firstNumber parses the first whitespace-delimited field.
func firstNumber(args string) (uint64, bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, false
	}
	return number(fields[0])
}

// numbers parses exactly n numeric fields.
func numbers(args string, n int) ([]uint64, bool) {
	fields := strings.Fields(args)
	if len(fields) != n {
		return nil, false
	}
	out := make([]uint64, n)
	for i, f := range fields {
		v, ok := number(f)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func rgb(v []uint64) (led.Pixel, bool) {
	if v[0] > 255 || v[1] > 255 || v[2] > 255 {
		return led.Black, false
	}
	return led.RGB(uint8(v[0]), uint8(v[1]), uint8(v[2])), true
}

func clampCount(c uint64) int {
	return int(min(c, math.MaxInt32))
}
