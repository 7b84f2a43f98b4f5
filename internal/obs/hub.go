// Package obs streams read-only render frames to websocket observers. It
// never touches simulation state: the observer system hands it one immutable
// frame per tick and slow clients are dropped rather than back-pressuring the
// tick loop.
package obs

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wildvale/server/internal/sim"
)

const clientBuffer = 8

// Hub fans each tick's frame out to all connected observers.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	server *http.Server
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Broadcast queues the frame for every connected observer. Clients that
// cannot keep up have their connection closed.
func (h *Hub) Broadcast(f sim.Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		h.log.Error("frame marshal failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- payload:
		default:
			h.log.Warn("dropping slow observer")
			delete(h.clients, c)
			close(c.out)
		}
	}
}

// Observers returns the number of connected clients.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler upgrades an HTTP request to a websocket observer session.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		c := &client{conn: conn, out: make(chan []byte, clientBuffer)}

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			conn.Close()
			return
		}
		h.clients[c] = struct{}{}
		h.mu.Unlock()
		h.log.Info("observer connected", zap.String("remote", conn.RemoteAddr().String()))

		go h.writeLoop(c)
		h.readLoop(c)
	}
}

// writeLoop sends queued frames until the client's channel closes or a write
// fails.
func (h *Hub) writeLoop(c *client) {
	for payload := range c.out {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c)
			return
		}
	}
	c.conn.Close()
}

// readLoop discards inbound messages; observers are read-only. A read error
// means the client went away.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(1024)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.out)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Serve starts the observer HTTP endpoint at addr, path /observe. Blocks
// until the server stops.
func (h *Hub) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/observe", h.Handler())

	h.mu.Lock()
	h.server = &http.Server{Addr: addr, Handler: mux}
	srv := h.server
	h.mu.Unlock()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close disconnects all observers and stops the HTTP server.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.out)
	}
	srv := h.server
	h.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
