package game

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var ErrDuration = errors.New("timer duration out of range")

// Game is the buzzer state machine. The session is guarded by mu; every
// transition happens under it, so a press and a tick never interleave
// half way. The state tag is also mirrored into an atomic for readers that
// must not block. Lock order is game then LED engine: hooks may take the
// engine lock, the engine never calls back here.
type Game struct {
	mu    sync.Mutex
	s     Session
	state atomic.Uint32

	cfg        Config
	debounceMs uint32
	statusMs   uint32

	hooks Hooks
	now   func() uint32

	events  chan Event
	dropped atomic.Uint64
}

// New builds an idle game. now is the shared monotonic millisecond clock.
func New(cfg Config, hooks Hooks, now func() uint32) *Game {
	cfg = cfg.withDefaults()
	return &Game{
		cfg:        cfg,
		debounceMs: uint32(cfg.Debounce.Milliseconds()),
		statusMs:   uint32(cfg.StatusInterval.Milliseconds()),
		hooks:      hooks,
		now:        now,
		events:     make(chan Event, EventBuffer),
	}
}

// State is safe to call from any goroutine without blocking on a
// transition in progress.
func (g *Game) State() State {
	return State(g.state.Load())
}

// Session returns a copy of the record.
func (g *Game) Session() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s
}

func (g *Game) setState(st State) {
	g.s.State = st
	g.state.Store(uint32(st))
}

func (g *Game) MaxDuration() uint32 {
	return g.cfg.MaxDuration
}

// StartTimer begins a countdown of seconds from any state.
func (g *Game) StartTimer(seconds uint32) error {
	if seconds == 0 || seconds > g.cfg.MaxDuration {
		return fmt.Errorf("%w: %d not in 1..%d seconds", ErrDuration, seconds, g.cfg.MaxDuration)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.s.TimerDurationMs = seconds * 1000
	g.s.TimerStartMs = now
	g.s.TimeRemainingS = seconds
	g.s.PausedRemainingS = 0
	g.s.PlayerAPressed = false
	g.s.PlayerBPressed = false
	g.s.ExpiredNaturally = false
	g.setState(TimerRunning)
	g.blank(now)
	g.emit(now, StatusUpdate)
	return nil
}

// StopTimer returns to Idle from any state.
func (g *Game) StopTimer() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.s.TimerDurationMs = 0
	g.s.TimeRemainingS = 0
	g.s.PausedRemainingS = 0
	g.s.PlayerAPressed = false
	g.s.PlayerBPressed = false
	g.s.ExpiredNaturally = false
	g.setState(Idle)
	g.emit(now, StatusUpdate)
	g.blank(now)
}

// PauseTimer freezes a running countdown. It reports whether it did.
func (g *Game) PauseTimer() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.s.State != TimerRunning {
		return false
	}
	now := g.now()
	g.pause(now)
	g.setState(TimerPaused)
	g.emit(now, StatusUpdate)
	return true
}

// since is the wrapping time from the countdown start to now. A reading
// taken before the start counts as zero.
func (g *Game) since(now uint32) uint32 {
	d := now - g.s.TimerStartMs
	if int32(d) < 0 {
		return 0
	}
	return d
}

// pause freezes the remaining whole seconds and disarms the countdown.
func (g *Game) pause(now uint32) {
	elapsed := g.since(now)
	var remaining uint32
	if elapsed < g.s.TimerDurationMs {
		remaining = (g.s.TimerDurationMs - elapsed) / 1000
	}
	g.s.PausedRemainingS = remaining
	g.s.TimeRemainingS = remaining
	g.s.TimerDurationMs = 0
}

// ResumeTimer restarts a paused or interrupted countdown with the frozen
// remainder. It reports whether it did.
func (g *Game) ResumeTimer() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.s.State {
	case TimerPaused, PlayerAPressed, PlayerBPressed:
	default:
		return false
	}
	if g.s.PausedRemainingS == 0 {
		return false
	}
	now := g.now()
	g.s.TimerDurationMs = g.s.PausedRemainingS * 1000
	g.s.TimerStartMs = now
	g.s.TimeRemainingS = g.s.PausedRemainingS
	g.s.PausedRemainingS = 0
	g.s.PlayerAPressed = false
	g.s.PlayerBPressed = false
	g.setState(TimerRunning)
	g.blank(now)
	g.emit(now, StatusUpdate)
	return true
}

// ResetGame zeroes the round and brings back the idle animation. Debounce
// history survives.
func (g *Game) ResetGame() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset(g.now())
}

func (g *Game) reset(now uint32) {
	g.s.TimerDurationMs = 0
	g.s.TimerStartMs = 0
	g.s.TimeRemainingS = 0
	g.s.PausedRemainingS = 0
	g.s.PlayerAPressed = false
	g.s.PlayerBPressed = false
	g.s.ExpiredNaturally = false
	g.setState(Idle)
	if g.hooks.Ambient != nil {
		g.hooks.Ambient(now)
	}
	g.emit(now, StatusUpdate)
}

// ForceReset is ResetGame that also forgets debounce and status history and
// switches the indicator lamps off.
func (g *Game) ForceReset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset(g.now())
	g.s.LastPressAMs = 0
	g.s.LastPressBMs = 0
	g.s.LastStatusMs = 0
	if g.hooks.Indicate != nil {
		g.hooks.Indicate(Lamps{})
	}
}

// Press handles a falling edge on a buzzer seen at atMs. It debounces, then
// accepts the press only while the timer runs. It reports whether the press
// took the floor.
func (g *Game) Press(p Player, atMs uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last := &g.s.LastPressAMs
	if p == PlayerB {
		last = &g.s.LastPressBMs
	}
	if atMs-*last <= g.debounceMs {
		return false
	}
	*last = atMs
	if g.s.State != TimerRunning {
		return false
	}

	g.pause(atMs)
	color, strips := g.cfg.ColorA, g.cfg.StripsA
	if p == PlayerB {
		g.s.PlayerBPressed = true
		g.setState(PlayerBPressed)
		color, strips = g.cfg.ColorB, g.cfg.StripsB
	} else {
		g.s.PlayerAPressed = true
		g.setState(PlayerAPressed)
	}
	if g.hooks.Highlight != nil {
		g.hooks.Highlight(color, strips, atMs)
	}
	g.emit(atMs, StatusUpdate)
	g.post(Event{Kind: ButtonPress, AtMs: atMs, Data: p.String()})
	return true
}

// Tick advances the countdown, refreshes the indicators and emits the
// periodic status line.
func (g *Game) Tick(nowMs uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.s.State == TimerRunning {
		elapsed := g.since(nowMs)
		if elapsed >= g.s.TimerDurationMs {
			g.s.TimeRemainingS = 0
			g.s.TimerDurationMs = 0
			g.s.ExpiredNaturally = true
			g.setState(Idle)
			if g.hooks.Flood != nil {
				g.hooks.Flood(g.cfg.ExpiredColor, nowMs)
			}
			g.emit(nowMs, TimerExpired)
		} else {
			g.s.TimeRemainingS = (g.s.TimerDurationMs - elapsed) / 1000
		}
	}
	if g.hooks.Indicate != nil {
		g.hooks.Indicate(Indicators(g.s.State, nowMs))
	}
	if g.s.State != Idle && nowMs-g.s.LastStatusMs >= g.statusMs {
		g.emit(nowMs, StatusUpdate)
	}
}

func (g *Game) blank(now uint32) {
	if g.hooks.Blank != nil {
		g.hooks.Blank(now)
	}
}

// emit sends the status line and stamps the emission time.
func (g *Game) emit(now uint32, kind EventKind) {
	line := g.s.StatusLine()
	g.s.LastStatusMs = now
	if g.hooks.Status != nil {
		g.hooks.Status(line)
	}
	g.post(Event{Kind: kind, AtMs: now, Data: line})
}
