package game

// EventKind tags entries on the event channel.
type EventKind int

const (
	StatusUpdate EventKind = iota
	ButtonPress
	TimerExpired
)

func (k EventKind) String() string {
	switch k {
	case StatusUpdate:
		return "status_update"
	case ButtonPress:
		return "button_press"
	case TimerExpired:
		return "timer_expired"
	}
	return "unknown"
}

// Event is a notification from the game to the main loop. Data is the
// status line for StatusUpdate and TimerExpired, the player for ButtonPress.
type Event struct {
	Kind EventKind
	AtMs uint32
	Data string
}

// EventBuffer is the capacity of the event channel.
const EventBuffer = 8

// post never blocks; when the reader falls behind the event is dropped.
func (g *Game) post(ev Event) {
	select {
	case g.events <- ev:
	default:
		g.dropped.Add(1)
	}
}

// Events delivers status, press and expiry notifications.
func (g *Game) Events() <-chan Event {
	return g.events
}

// Dropped counts events discarded because the channel was full.
func (g *Game) Dropped() uint64 {
	return g.dropped.Load()
}
