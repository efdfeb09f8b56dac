// Package preview streams transmitted frames and status lines to browsers.
// It is read-only: nothing received from a client reaches the game.
package preview

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
)

type frameMsg struct {
	T     int64  `json:"t"`
	Strip int    `json:"strip"`
	RGB   []byte `json:"rgb"`
}

type statusMsg struct {
	T      int64  `json:"t"`
	Status string `json:"status"`
}

type helloMsg struct {
	Strips int    `json:"strips"`
	Pixels int    `json:"leds_per_strip"`
	State  string `json:"state,omitempty"`
}

// Hub fans messages out to websocket clients. Producers never block: when
// the outbound queue is full messages are dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	strips, pixels int
	// StateFn, when set, reports the game state in health and hello messages.
	StateFn func() string

	out       chan []byte
	frames    atomic.Uint64
	statuses  atomic.Uint64
	dropped   atomic.Uint64
	startTime time.Time
}

func NewHub(strips, pixels int) *Hub {
	return &Hub{
		clients:   map[*websocket.Conn]bool{},
		strips:    strips,
		pixels:    pixels,
		out:       make(chan []byte, 64),
		startTime: time.Now(),
	}
}

// Frame implements led.Observer.
func (h *Hub) Frame(strip int, px []led.Pixel) {
	h.frames.Add(1)
	if h.idle() {
		return
	}
	rgb := make([]byte, 0, len(px)*3)
	for _, p := range px {
		rgb = append(rgb, p.R, p.G, p.B)
	}
	b, _ := json.Marshal(frameMsg{T: time.Now().UnixNano(), Strip: strip, RGB: rgb})
	h.enqueue(b)
}

// Status forwards one status line.
func (h *Hub) Status(line string) {
	h.statuses.Add(1)
	if h.idle() {
		return
	}
	b, _ := json.Marshal(statusMsg{T: time.Now().UnixNano(), Status: line})
	h.enqueue(b)
}

func (h *Hub) idle() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) == 0
}

func (h *Hub) enqueue(b []byte) {
	select {
	case h.out <- b:
	default:
		h.dropped.Add(1)
	}
}

// Run broadcasts queued messages until ctx is done, then closes clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case b := <-h.out:
			h.broadcast(b)
		}
	}
}

func (h *Hub) broadcast(b []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write preview")
		}
	}
}

func (h *Hub) state() string {
	if h.StateFn == nil {
		return ""
	}
	return h.StateFn()
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	hello, _ := json.Marshal(helloMsg{Strips: h.strips, Pixels: h.pixels, State: h.state()})
	conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		conn.Close()
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		// Drain and discard; reads only detect the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	clients := len(h.clients)
	h.mu.RUnlock()
	resp := map[string]any{
		"uptime_s":       time.Since(h.startTime).Seconds(),
		"clients":        clients,
		"frames":         h.frames.Load(),
		"statuses":       h.statuses.Load(),
		"dropped":        h.dropped.Load(),
		"strips":         h.strips,
		"leds_per_strip": h.pixels,
		"state":          h.state(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Routes registers the preview endpoints on mux.
func (h *Hub) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleFramesWS)
	mux.HandleFunc("/health", h.HandleHealth)
}

// Clients is the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
