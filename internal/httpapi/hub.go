package httpapi

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsReadLimit    = 1024
	wsTimeout      = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// Event tells dashboards to refetch. It never carries device data.
type Event struct {
	Type   string    `json:"type"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Hub fans refresh hints out to websocket clients.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]*sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		conns:    make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Notify broadcasts a refresh hint.
func (h *Hub) Notify(reason string) {
	h.Broadcast(Event{Type: "refresh", Reason: reason, At: time.Now().UTC()})
}

// Broadcast writes v to every client; clients that fail are dropped.
func (h *Hub) Broadcast(v any) {
	h.mu.Lock()
	conns := maps.Clone(h.conns)
	h.mu.Unlock()

	for c, wmu := range conns {
		if err := write(c, wmu, v); err != nil {
			h.remove(c)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("WebSocket upgrade failed")

		return
	}

	wmu := &sync.Mutex{}

	h.mu.Lock()
	h.conns[conn] = wmu
	h.mu.Unlock()

	_ = write(conn, wmu, Event{Type: "hello", At: time.Now().UTC()})

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsTimeout))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
				wmu.Unlock()

				if err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(conn)
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()

	_ = c.Close()
}

func write(c *websocket.Conn, wmu *sync.Mutex, v any) error {
	wmu.Lock()
	defer wmu.Unlock()

	_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))

	return c.WriteJSON(v)
}
