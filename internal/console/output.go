package console

import (
	"io"
	"strings"
	"sync"
)

// Output serializes writes from the command handler and the asynchronous
// status emitter so their lines never interleave.
type Output struct {
	mu sync.Mutex
	w  io.Writer
}

func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

// Line writes s followed by a newline unless it already ends in one.
func (o *Output) Line(s string) {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = io.WriteString(o.w, s)
}

// Lines writes a block in one go.
func (o *Output) Lines(lines ...string) {
	o.Line(strings.Join(lines, "\n"))
}
