package game

import (
	"fmt"
	"sync"
	"testing"

	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
	"github.com/coreman2200/funtimes-buzzerbox/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rig wires a game to a real LED engine and a hand-driven clock.
type rig struct {
	now   uint32
	g     *Game
	leds  *render.Engine
	lines []string
	lamps []Lamps
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{now: 10_000}
	leds, err := render.NewEngine(4, 60, 1)
	require.NoError(t, err)
	r.leds = leds
	r.g = New(Config{}, Hooks{
		Blank:     leds.Blank,
		Flood:     leds.Flood,
		Highlight: leds.Highlight,
		Ambient:   leds.Ambient,
		Indicate:  func(l Lamps) { r.lamps = append(r.lamps, l) },
		Status:    func(s string) { r.lines = append(r.lines, s) },
	}, func() uint32 { return r.now })
	return r
}

func (r *rig) advance(ms uint32) {
	r.now += ms
}

func (r *rig) tick() {
	r.g.Tick(r.now)
}

func (r *rig) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.g.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (r *rig) stripIs(t *testing.T, strip int, want led.Pixel) {
	t.Helper()
	px, err := r.leds.Snapshot(strip)
	require.NoError(t, err)
	for i, p := range px {
		require.Equal(t, want, p, "strip %d led %d", strip, i)
	}
}

func TestStartThenTickKeepsFullDuration(t *testing.T) {
	r := newRig(t)
	for d := uint32(1); d <= 300; d++ {
		require.NoError(t, r.g.StartTimer(d))
		r.tick()
		s := r.g.Session()
		require.Equal(t, d, s.TimeRemainingS)
		require.Equal(t, TimerRunning, s.State)
		require.Equal(t, TimerRunning, r.g.State())
		r.advance(7)
	}
}

func TestStartRejectsOutOfRange(t *testing.T) {
	r := newRig(t)
	for _, d := range []uint32{0, 301, 100000} {
		err := r.g.StartTimer(d)
		assert.ErrorIs(t, err, ErrDuration)
	}
	assert.Equal(t, Session{}, r.g.Session())
	assert.Empty(t, r.lines)
}

func TestNaturalExpiry(t *testing.T) {
	for _, d := range []uint32{1, 2, 59, 120, 300} {
		t.Run(fmt.Sprint(d), func(t *testing.T) {
			r := newRig(t)
			r.leds.SetAnimation(render.Rainbow, 10, r.now)
			require.NoError(t, r.g.StartTimer(d))
			r.advance(d*1000 + 1)
			r.tick()
			r.advance(100)
			r.tick()
			r.advance(5000)
			r.tick()

			s := r.g.Session()
			assert.Equal(t, Idle, s.State)
			assert.True(t, s.ExpiredNaturally)
			assert.Zero(t, s.TimeRemainingS)
			assert.Zero(t, s.TimerDurationMs)
			assert.Equal(t, render.Static, r.leds.Mode())
			for i := 0; i < 4; i++ {
				r.stripIs(t, i, led.Red)
			}

			expired := 0
			for _, ev := range r.drain() {
				if ev.Kind == TimerExpired {
					expired++
					assert.Contains(t, ev.Data, "expired=1")
				}
			}
			assert.Equal(t, 1, expired)
			assert.Equal(t, "status: timer=0 playera=0 playerb=0 active=N expired=1", r.lines[len(r.lines)-1])
		})
	}
}

func TestCountdownFloorsSeconds(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(10))
	r.advance(1)
	r.tick()
	assert.Equal(t, uint32(9), r.g.Session().TimeRemainingS)
	r.advance(8998)
	r.tick()
	assert.Equal(t, uint32(1), r.g.Session().TimeRemainingS)
	r.advance(1)
	r.tick()
	assert.Equal(t, uint32(1), r.g.Session().TimeRemainingS)
	r.advance(1)
	r.tick()
	assert.Equal(t, uint32(0), r.g.Session().TimeRemainingS)
	assert.Equal(t, TimerRunning, r.g.State())
}

func TestCountdownAcrossClockWrap(t *testing.T) {
	r := newRig(t)
	r.now = 0xFFFFFFFF - 500
	require.NoError(t, r.g.StartTimer(3))
	r.advance(1500)
	r.tick()
	assert.Equal(t, uint32(1), r.g.Session().TimeRemainingS)
	r.advance(1501)
	r.tick()
	assert.Equal(t, Idle, r.g.State())
}

func TestPauseResumeRestoresRemaining(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(60))
	r.advance(12_345)
	r.tick()
	before := r.g.Session().TimeRemainingS

	require.True(t, r.g.PauseTimer())
	s := r.g.Session()
	assert.Equal(t, TimerPaused, s.State)
	assert.Equal(t, uint32(47), s.PausedRemainingS)
	assert.Zero(t, s.TimerDurationMs)

	// Frozen while paused.
	r.advance(20_000)
	r.tick()
	assert.Equal(t, uint32(47), r.g.Session().TimeRemainingS)

	require.True(t, r.g.ResumeTimer())
	s = r.g.Session()
	assert.Equal(t, TimerRunning, s.State)
	assert.InDelta(t, before, s.TimeRemainingS, 1)
	assert.False(t, s.PlayerAPressed)
	assert.False(t, s.PlayerBPressed)
	assert.Equal(t, uint32(47_000), s.TimerDurationMs)
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	r := newRig(t)
	assert.False(t, r.g.PauseTimer())
	assert.False(t, r.g.ResumeTimer())
	assert.Equal(t, Session{}, r.g.Session())

	require.NoError(t, r.g.StartTimer(5))
	assert.False(t, r.g.ResumeTimer())
	require.True(t, r.g.PauseTimer())
	assert.False(t, r.g.PauseTimer())
}

func TestResumeNeedsTimeLeft(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(1))
	r.advance(999)
	require.True(t, r.g.PauseTimer())
	assert.Zero(t, r.g.Session().PausedRemainingS)
	assert.False(t, r.g.ResumeTimer())
	assert.Equal(t, TimerPaused, r.g.State())
}

func TestPressTakesTheFloor(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(30))
	r.advance(5_500)
	r.tick()

	require.True(t, r.g.Press(PlayerB, r.now))
	s := r.g.Session()
	assert.Equal(t, PlayerBPressed, s.State)
	assert.True(t, s.PlayerBPressed)
	assert.False(t, s.PlayerAPressed)
	assert.Equal(t, uint32(24), s.PausedRemainingS)
	assert.Zero(t, s.TimerDurationMs)
	assert.Equal(t, byte('B'), s.ActivePlayer())
	r.stripIs(t, 0, led.Black)
	r.stripIs(t, 1, led.Black)
	r.stripIs(t, 2, led.Orange)
	r.stripIs(t, 3, led.Orange)
	assert.Equal(t, "status: timer=24 playera=0 playerb=1 active=B expired=0", r.lines[len(r.lines)-1])

	// A is too late.
	r.advance(200)
	assert.False(t, r.g.Press(PlayerA, r.now))
	assert.Equal(t, PlayerBPressed, r.g.State())

	var presses []string
	for _, ev := range r.drain() {
		if ev.Kind == ButtonPress {
			presses = append(presses, ev.Data)
		}
	}
	assert.Equal(t, []string{"B"}, presses)

	require.True(t, r.g.ResumeTimer())
	s = r.g.Session()
	assert.Equal(t, TimerRunning, s.State)
	assert.Equal(t, uint32(24), s.TimeRemainingS)
	assert.False(t, s.PlayerBPressed)
	r.stripIs(t, 2, led.Black)
}

func TestTickBeforeStartDoesNotExpire(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(30))
	// A reading taken just before StartTimer stamped its start.
	r.g.Tick(r.now - 1)
	s := r.g.Session()
	assert.Equal(t, TimerRunning, s.State)
	assert.False(t, s.ExpiredNaturally)
	assert.Equal(t, uint32(30), s.TimeRemainingS)
	for _, ev := range r.drain() {
		assert.NotEqual(t, TimerExpired, ev.Kind)
	}
}

func TestPressStampedBeforeStartKeepsFullTime(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(30))
	// The edge was stamped a millisecond before the timer started.
	require.True(t, r.g.Press(PlayerA, r.now-1))
	s := r.g.Session()
	assert.Equal(t, PlayerAPressed, s.State)
	assert.Equal(t, uint32(30), s.PausedRemainingS)

	require.True(t, r.g.ResumeTimer())
	assert.Equal(t, TimerRunning, r.g.State())
	assert.Equal(t, uint32(30), r.g.Session().TimeRemainingS)
}

func TestPressIgnoredUnlessRunning(t *testing.T) {
	r := newRig(t)
	assert.False(t, r.g.Press(PlayerA, r.now))
	assert.Equal(t, Idle, r.g.State())

	require.NoError(t, r.g.StartTimer(10))
	require.True(t, r.g.PauseTimer())
	r.advance(100)
	assert.False(t, r.g.Press(PlayerA, r.now))
	assert.Equal(t, TimerPaused, r.g.State())
}

func TestDebounceWindow(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(60))
	t0 := r.now + 100

	n := 0
	countPresses := func() {
		for _, ev := range r.drain() {
			if ev.Kind == ButtonPress {
				n++
			}
		}
	}

	require.True(t, r.g.Press(PlayerA, t0))
	require.True(t, r.g.ResumeTimer())
	// Bounce inside the window.
	assert.False(t, r.g.Press(PlayerA, t0+30))
	assert.False(t, r.g.Press(PlayerA, t0+50))
	assert.Equal(t, TimerRunning, r.g.State())
	countPresses()
	assert.Equal(t, 1, n)

	// B keeps its own history.
	assert.True(t, r.g.Press(PlayerB, t0+30))
	require.True(t, r.g.ResumeTimer())
	assert.True(t, r.g.Press(PlayerA, t0+51))
	countPresses()
	assert.Equal(t, 3, n)
}

func TestDebounceRunsBeforeStateCheck(t *testing.T) {
	r := newRig(t)
	t0 := r.now
	assert.False(t, r.g.Press(PlayerA, t0))
	assert.Equal(t, t0, r.g.Session().LastPressAMs)

	require.NoError(t, r.g.StartTimer(10))
	assert.False(t, r.g.Press(PlayerA, t0+20))
	assert.True(t, r.g.Press(PlayerA, t0+100))
}

func TestConcurrentPressesOneWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		r := newRig(t)
		require.NoError(t, r.g.StartTimer(30))
		at := r.now + 1000

		var wg sync.WaitGroup
		var mu sync.Mutex
		won := 0
		for _, p := range []Player{PlayerA, PlayerB} {
			wg.Add(1)
			go func(p Player) {
				defer wg.Done()
				if r.g.Press(p, at) {
					mu.Lock()
					won++
					mu.Unlock()
				}
			}(p)
		}
		wg.Wait()

		s := r.g.Session()
		require.Equal(t, 1, won)
		require.False(t, s.PlayerAPressed && s.PlayerBPressed)
		require.Contains(t, []State{PlayerAPressed, PlayerBPressed}, s.State)
	}
}

func TestStopClearsEverything(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(30))
	require.True(t, r.g.Press(PlayerA, r.now+100))
	r.g.StopTimer()

	s := r.g.Session()
	assert.Equal(t, Idle, s.State)
	assert.Zero(t, s.TimeRemainingS)
	assert.Zero(t, s.PausedRemainingS)
	assert.False(t, s.PlayerAPressed)
	assert.False(t, s.ExpiredNaturally)
	r.stripIs(t, 0, led.Black)
}

func TestPeriodicStatus(t *testing.T) {
	r := newRig(t)
	r.tick()
	r.advance(500)
	r.tick()
	assert.Empty(t, r.lines)

	require.NoError(t, r.g.StartTimer(10))
	require.Len(t, r.lines, 1)
	for i := 0; i < 10; i++ {
		r.advance(10)
		r.tick()
	}
	assert.Len(t, r.lines, 2)
	assert.Equal(t, "status: timer=9 playera=0 playerb=0 active=N expired=0", r.lines[1])
}

func TestResetIdempotent(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(30))
	require.True(t, r.g.Press(PlayerA, r.now+100))
	r.advance(300)
	r.tick()

	r.g.ResetGame()
	s := r.g.Session()
	assert.Equal(t, Idle, s.State)
	assert.False(t, s.PlayerAPressed)
	assert.NotZero(t, s.LastPressAMs)
	assert.Equal(t, render.Rainbow, r.leds.Mode())
	r.g.ResetGame()
	assert.Equal(t, s, r.g.Session())

	r.g.ForceReset()
	first := r.g.Session()
	r.g.ForceReset()
	assert.Equal(t, first, r.g.Session())
	assert.Equal(t, Session{}, first)
	assert.Equal(t, Lamps{}, r.lamps[len(r.lamps)-1])
}

func TestIndicatorsTable(t *testing.T) {
	cases := []struct {
		State State
		Now   uint32
		Want  Lamps
	}{
		{Idle, 0, Lamps{}},
		{Idle, 300, Lamps{}},
		{TimerRunning, 0, Lamps{A: true, B: true, Running: true}},
		{TimerRunning, 249, Lamps{A: true, B: true, Running: true}},
		{TimerRunning, 250, Lamps{Running: true}},
		{TimerRunning, 500, Lamps{A: true, B: true, Running: true}},
		{TimerPaused, 999, Lamps{A: true, B: true, Running: true}},
		{TimerPaused, 1000, Lamps{}},
		{TimerPaused, 2000, Lamps{A: true, B: true, Running: true}},
		{PlayerAPressed, 250, Lamps{A: true}},
		{PlayerBPressed, 1000, Lamps{B: true}},
	}
	for _, c := range cases {
		assert.Equal(t, c.Want, Indicators(c.State, c.Now), "%s@%d", c.State, c.Now)
	}
}

func TestTickDrivesIndicators(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(30))
	r.now = 20_250
	r.tick()
	assert.Equal(t, Lamps{Running: true}, r.lamps[len(r.lamps)-1])
}

func TestEventsDropWhenFull(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.g.StartTimer(300))
	for i := 0; i < 3*EventBuffer; i++ {
		r.advance(100)
		r.tick()
	}
	assert.Len(t, r.drain(), EventBuffer)
	assert.NotZero(t, r.g.Dropped())
}

func TestReport(t *testing.T) {
	s := Session{State: PlayerAPressed, TimeRemainingS: 12, PlayerAPressed: true}
	assert.Equal(t, []string{
		"Game State: player_a_pressed",
		"Timer: 12 seconds",
		"Player A: PRESSED",
		"Player B: Ready",
		"Active Player: A",
	}, s.Report())
}
