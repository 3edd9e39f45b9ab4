// Package livereload pushes rebuild notifications to connected browsers over a
// websocket. Delivery is fire-and-forget: a client that is not connected, or whose
// buffer is full when a rebuild lands, misses it.
package livereload

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"git.home.luguber.info/inful/gardener/internal/logfields"
	"git.home.luguber.info/inful/gardener/internal/metrics"
)

// Message is the only payload ever sent to clients.
const Message = "rebuild"

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingEvery    = (pongWait * 9) / 10
	clientBuffer = 4
)

// Hub manages websocket clients and broadcasts rebuilds to them.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*client
	closed   bool
	recorder metrics.Recorder
	upgrader websocket.Upgrader
}

type client struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewHub returns a hub reporting to rec (NoopRecorder when nil).
func NewHub(rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Hub{
		clients:  map[int]*client{},
		recorder: rec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// pages are served from a different port than the socket
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and holds the connection until either side closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("livereload upgrade", logfields.Error(err))
		return
	}
	c := h.register()
	if c == nil {
		_ = conn.Close()
		return
	}
	defer h.removeClient(c.id)

	go h.writeLoop(conn, c)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// clients never send anything meaningful; reading detects the disconnect
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case msg := <-c.ch:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				slog.Debug("livereload broadcast write", logfields.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register() *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	c := &client{id: h.nextID, ch: make(chan string, clientBuffer), done: make(chan struct{})}
	h.nextID++
	h.clients[c.id] = c
	h.recorder.SetLiveReloadClients(len(h.clients))
	return c
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
		h.recorder.SetLiveReloadClients(len(h.clients))
	}
}

// Notify sends Message to every connected client. Clients whose buffer is full are
// dropped.
func (h *Hub) Notify() {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- Message:
		default:
			dropped++
			h.removeClient(c.id)
			h.recorder.IncLiveReloadDropped()
		}
	}
	h.recorder.IncLiveReloadBroadcast()
	slog.Debug("livereload broadcast", logfields.Clients(len(snapshot)), slog.Int("dropped", dropped))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}
