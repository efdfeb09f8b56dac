package render

import (
	"fmt"
	"strings"
)

// Mode selects how the compositor fills the strips each tick.
type Mode int

const (
	Static Mode = iota
	Fade
	Rainbow
	Chase
	Pulse
	Sparkle
)

var modeNames = [...]string{
	Static:  "static",
	Fade:    "fade",
	Rainbow: "rainbow",
	Chase:   "chase",
	Pulse:   "pulse",
	Sparkle: "sparkle",
}

// Modes lists every mode in console order.
func Modes() []Mode {
	return []Mode{Static, Fade, Rainbow, Chase, Pulse, Sparkle}
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode matches a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for i, n := range modeNames {
		if strings.EqualFold(s, n) {
			return Mode(i), nil
		}
	}
	return Static, fmt.Errorf("unknown animation mode %q", s)
}
