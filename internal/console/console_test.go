package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-buzzerbox/internal/game"
	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
	"github.com/coreman2200/funtimes-buzzerbox/internal/render"
)

type fixture struct {
	buf  *bytes.Buffer
	game *game.Game
	leds *render.Engine
	h    *Handler
	now  uint32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{buf: &bytes.Buffer{}, now: 5000}
	leds, err := render.NewEngine(4, 60, 7)
	require.NoError(t, err)
	f.leds = leds
	out := NewOutput(f.buf)
	clock := func() uint32 { return f.now }
	f.game = game.New(game.Config{}, game.Hooks{
		Blank:     leds.Blank,
		Flood:     leds.Flood,
		Highlight: leds.Highlight,
		Ambient:   leds.Ambient,
		Status:    out.Line,
	}, clock)
	f.h = NewHandler(f.game, leds, clock, out)
	return f
}

// run dispatches line and returns what was written, minus the echo.
func (f *fixture) run(line string) string {
	f.buf.Reset()
	f.h.Dispatch(line)
	s := f.buf.String()
	echo := "Received: " + line + "\n"
	return strings.TrimPrefix(s, echo)
}

func TestEchoFirst(t *testing.T) {
	f := newFixture(t)
	f.h.Dispatch("  hello  ")
	assert.Equal(t, "Received:   hello  \nHello from Chantskis Feud!\n", f.buf.String())
}

func TestHello(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Hello, Team Blue!\n", f.run("HELLO Team Blue"))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Unknown command: frobnicate\nType 'help' for available commands\n", f.run("frobnicate now"))
}

func TestBlankLineOnlyEchoes(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "", f.run("   "))
}

func TestHelpListsCommands(t *testing.T) {
	f := newFixture(t)
	out := f.run("help")
	for name := range commands {
		assert.Contains(t, out, "  "+name, name)
	}
}

func TestStartTimer(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		Line, Want string
	}{
		{"start_timer", "Error: start_timer requires duration in seconds\n"},
		{"start_timer 3x", "Error: Invalid duration format\n"},
		{"start_timer -5", "Error: Invalid duration format\n"},
		{"start_timer 0", "Error: Duration must be between 1 and 300 seconds\n"},
		{"start_timer 301", "Error: Duration must be between 1 and 300 seconds\n"},
		{"start_timer 99999999999999999999999", "Error: Duration must be between 1 and 300 seconds\n"},
	}
	for _, c := range cases {
		assert.Equal(t, c.Want, f.run(c.Line), c.Line)
		assert.Equal(t, game.Idle, f.game.State())
	}

	out := f.run("Start_Timer 45 extra")
	assert.Equal(t, "status: timer=45 playera=0 playerb=0 active=N expired=0\nTimer started for 45 seconds\n", out)
	assert.Equal(t, game.TimerRunning, f.game.State())
}

func TestTimerLifecycle(t *testing.T) {
	f := newFixture(t)
	f.run("start_timer 30")
	f.now += 2500
	assert.Contains(t, f.run("pause_timer"), "Timer paused\n")
	assert.Equal(t, game.TimerPaused, f.game.State())
	assert.Contains(t, f.run("resume_timer"), "Timer resumed\n")
	assert.Equal(t, uint32(27), f.game.Session().TimeRemainingS)
	assert.Contains(t, f.run("stop_timer"), "Timer stopped\n")
	assert.Equal(t, game.Idle, f.game.State())

	// No-ops still acknowledge.
	assert.Equal(t, "Timer paused\n", f.run("pause_timer"))
	assert.Equal(t, game.Idle, f.game.State())

	assert.Contains(t, f.run("reset_game"), "Game reset\n")
	assert.Equal(t, render.Rainbow, f.leds.Mode())
	assert.Contains(t, f.run("force_reset"), "System force reset complete\n")
	assert.Equal(t, game.Session{}, f.game.Session())
}

func TestStatusSnapshot(t *testing.T) {
	f := newFixture(t)
	f.run("start_timer 12")
	f.run("led_brightness 40")
	f.run("led_animate chase 20")
	assert.Equal(t, strings.Join([]string{
		"System Status: OK",
		"Console: Connected",
		"Game State: timer_running",
		"Timer: 12 seconds",
		"Player A: Ready",
		"Player B: Ready",
		"Active Player: N",
		"Animation: chase",
		"Brightness: 40%",
	}, "\n")+"\n", f.run("status"))
}

func TestLedSetForcesStatic(t *testing.T) {
	f := newFixture(t)
	f.leds.SetAnimation(render.Rainbow, 10, 0)
	assert.Equal(t, "LED set: strip 0, led 5 = (255,0,0)\n", f.run("led_set 0 5 255 0 0"))
	assert.Contains(t, f.run("status"), "Animation: static\n")
	p, err := f.leds.Pixel(0, 5)
	require.NoError(t, err)
	assert.Equal(t, led.Red, p)
}

func TestLedSetRejectsWithoutChange(t *testing.T) {
	f := newFixture(t)
	before := snapshot(t, f.leds)
	cases := []struct {
		Line, Want string
	}{
		{"led_set 0 5 x 0 0", "Error: led_set requires: strip led r g b\n"},
		{"led_set 0 5 1 2", "Error: led_set requires: strip led r g b\n"},
		{"led_set 4 0 1 2 3", "Error: Invalid strip or LED index\n"},
		{"led_set 0 60 1 2 3", "Error: Invalid strip or LED index\n"},
		{"led_set 0 0 256 2 3", "Error: RGB values must be 0-255\n"},
		{"led_strip 9 1 2 3", "Error: Invalid strip index\n"},
		{"led_strip 1 2 3", "Error: led_strip requires: strip r g b\n"},
		{"led_all 1 2 300", "Error: RGB values must be 0-255\n"},
		{"led_all", "Error: led_all requires: r g b\n"},
		{"led_clear 7", "Error: Invalid strip index\n"},
		{"led_clear q", "Error: Invalid strip index\n"},
		{"led_range 0 70 2 1 1 1", "Error: Invalid strip or LED index\n"},
		{"led_gradient 0 0 5 1 1 1 1 1", "Error: led_gradient requires: strip start count r g b r g b\n"},
	}
	for _, c := range cases {
		assert.Equal(t, c.Want, f.run(c.Line), c.Line)
	}
	assert.Equal(t, before, snapshot(t, f.leds))
	assert.Equal(t, render.Static, f.leds.Mode())
}

func snapshot(t *testing.T, e *render.Engine) [][]led.Pixel {
	t.Helper()
	var out [][]led.Pixel
	for i := 0; i < e.Strips(); i++ {
		px, err := e.Snapshot(i)
		require.NoError(t, err)
		out = append(out, px)
	}
	return out
}

func TestLedStripAllClear(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Strip 2 set to (0,0,255)\n", f.run("led_strip 2 0 0 255"))
	p, _ := f.leds.Pixel(2, 59)
	assert.Equal(t, led.Blue, p)

	assert.Equal(t, "All LEDs set to (1,2,3)\n", f.run("led_all 1 2 3"))
	p, _ = f.leds.Pixel(3, 0)
	assert.Equal(t, led.RGB(1, 2, 3), p)

	assert.Equal(t, "Strip 3 cleared\n", f.run("led_clear 3"))
	p, _ = f.leds.Pixel(3, 0)
	assert.Equal(t, led.Black, p)
	p, _ = f.leds.Pixel(0, 0)
	assert.Equal(t, led.RGB(1, 2, 3), p)

	assert.Equal(t, "All LEDs cleared\n", f.run("led_clear"))
	p, _ = f.leds.Pixel(0, 0)
	assert.Equal(t, led.Black, p)
}

func TestLedRangeAndGradient(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Range set: strip 1, led 58+5 = (9,9,9)\n", f.run("led_range 1 58 5 9 9 9"))
	p, _ := f.leds.Pixel(1, 59)
	assert.Equal(t, led.RGB(9, 9, 9), p)
	p, _ = f.leds.Pixel(1, 57)
	assert.Equal(t, led.Black, p)

	f.run("led_gradient 0 0 3 0 0 0 200 100 0")
	p, _ = f.leds.Pixel(0, 1)
	assert.Equal(t, led.RGB(100, 50, 0), p)
}

func TestLedAnimate(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Animation set to rainbow (speed: 100ms)\n", f.run("led_animate RAINBOW"))
	m, speed := f.leds.Animation()
	assert.Equal(t, render.Rainbow, m)
	assert.Equal(t, uint32(100), speed)

	assert.Equal(t, "Animation set to pulse (speed: 250ms)\n", f.run("led_animate pulse 250"))
	assert.Equal(t, "Animation set to chase (speed: 1ms)\n", f.run("led_animate chase 0"))
	assert.Equal(t, "Error: Invalid speed format\n", f.run("led_animate fade fast"))
	assert.Equal(t, "Error: Invalid animation mode. Use: static, fade, rainbow, chase, pulse, sparkle\n", f.run("led_animate strobe"))
	m, _ = f.leds.Animation()
	assert.Equal(t, render.Chase, m)
}

func TestLedColors(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Animation colors set to (255,128,0) and (10,20,30)\n", f.run("led_colors orange 10,20,30"))
	assert.Equal(t, "Error: Invalid color. Use a name or r,g,b\n", f.run("led_colors mauve"))
	f.run("led_animate chase 10")
	f.leds.Update(f.now)
	p, _ := f.leds.Pixel(0, 0)
	assert.Equal(t, led.Orange, p)
	p, _ = f.leds.Pixel(0, 5)
	assert.Equal(t, led.RGB(10, 20, 30), p)
}

func TestLedBrightness(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Error: led_brightness requires brightness value (0-100)\n", f.run("led_brightness"))
	assert.Equal(t, "Error: Invalid brightness format\n", f.run("led_brightness 5%"))
	assert.Equal(t, "Error: Brightness must be 0-100\n", f.run("led_brightness 101"))
	assert.Equal(t, float32(1), f.leds.Brightness())
	assert.Equal(t, "Brightness set to 25%\n", f.run("led_brightness 25"))
	assert.Equal(t, float32(0.25), f.leds.Brightness())
}

func TestServeFramesAndPolls(t *testing.T) {
	f := newFixture(t)
	c := New(f.h, 8)
	long := strings.Repeat("x", LineMax+10)
	input := "hello\r\n" + long + "\nhello Bo\nstatus"

	require.NoError(t, c.Serve(context.Background(), strings.NewReader(input)))
	assert.Equal(t, uint64(1), c.Overlong())

	f.buf.Reset()
	assert.Equal(t, 2, c.Poll(2))
	assert.Equal(t, "Received: hello\nHello from Chantskis Feud!\nReceived: hello Bo\nHello, Bo!\n", f.buf.String())
	assert.Equal(t, 1, c.Poll(5))
	assert.Equal(t, 0, c.Poll(5))
}

func TestLineAtLimitAccepted(t *testing.T) {
	f := newFixture(t)
	c := New(f.h, 2)
	line := "hello " + strings.Repeat("y", LineMax-7)
	require.Len(t, line, LineMax-1)
	require.NoError(t, c.Serve(context.Background(), strings.NewReader(line+"\n")))
	assert.Zero(t, c.Overlong())
	assert.Equal(t, 1, c.Poll(1))
}
