package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// LineMax bounds a command line including its terminator. Longer lines are
// dropped whole.
const LineMax = 256

// Console couples a line reader goroutine with a Handler. Lines queue in a
// bounded channel; the main loop drains them with Poll and never blocks.
type Console struct {
	*Handler
	lines    chan string
	overlong atomic.Uint64
}

// New builds a console whose queue holds depth lines.
func New(h *Handler, depth int) *Console {
	if depth <= 0 {
		depth = 16
	}
	return &Console{Handler: h, lines: make(chan string, depth)}
}

// Serve reads lines from r until EOF, a read error, or ctx is done. When the
// queue is full it waits for the main loop to catch up.
func (c *Console) Serve(ctx context.Context, r io.Reader) error {
	br := bufio.NewReaderSize(r, LineMax)
	skipping := false
	for {
		chunk, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !skipping {
				c.overlong.Add(1)
				log.Warn().Int("max", LineMax).Msg("console line too long; discarded")
			}
			skipping = true
			continue
		}
		if err != nil {
			if len(chunk) > 0 && !skipping {
				c.enqueue(ctx, chunk)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if skipping {
			skipping = false
			continue
		}
		if !c.enqueue(ctx, chunk) {
			return ctx.Err()
		}
	}
}

func (c *Console) enqueue(ctx context.Context, chunk []byte) bool {
	line := string(bytes.TrimRight(chunk, "\r\n"))
	select {
	case c.lines <- line:
		return true
	case <-ctx.Done():
		return false
	}
}

// Poll runs at most limit queued lines and returns how many it ran.
func (c *Console) Poll(limit int) int {
	n := 0
	for n < limit {
		select {
		case line := <-c.lines:
			c.Dispatch(line)
			n++
		default:
			return n
		}
	}
	return n
}

// Overlong counts discarded lines.
func (c *Console) Overlong() uint64 {
	return c.overlong.Load()
}
