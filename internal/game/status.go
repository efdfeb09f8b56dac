package game

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusLine renders the periodic single-line report.
func (s Session) StatusLine() string {
	var b strings.Builder
	b.WriteString("status: timer=")
	b.WriteString(strconv.FormatUint(uint64(s.TimeRemainingS), 10))
	b.WriteString(" playera=")
	b.WriteString(bit(s.PlayerAPressed))
	b.WriteString(" playerb=")
	b.WriteString(bit(s.PlayerBPressed))
	b.WriteString(" active=")
	b.WriteByte(s.ActivePlayer())
	b.WriteString(" expired=")
	b.WriteString(bit(s.ExpiredNaturally))
	return b.String()
}

func bit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func ready(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "Ready"
}

// Report is the game part of the console status snapshot.
func (s Session) Report() []string {
	return []string{
		"Game State: " + s.State.String(),
		fmt.Sprintf("Timer: %d seconds", s.TimeRemainingS),
		"Player A: " + ready(s.PlayerAPressed),
		"Player B: " + ready(s.PlayerBPressed),
		fmt.Sprintf("Active Player: %c", s.ActivePlayer()),
	}
}

// Indicators maps state and time onto the discrete lamps. Running flashes
// both player lamps every 250ms with the running line steady; paused flashes
// all three every second.
func Indicators(state State, nowMs uint32) Lamps {
	switch state {
	case TimerRunning:
		on := (nowMs/250)%2 == 0
		return Lamps{A: on, B: on, Running: true}
	case TimerPaused:
		on := (nowMs/1000)%2 == 0
		return Lamps{A: on, B: on, Running: on}
	case PlayerAPressed:
		return Lamps{A: true}
	case PlayerBPressed:
		return Lamps{B: true}
	}
	return Lamps{}
}
