package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-handscroll/internal/log"
)

// Hub fans each broadcast out to its subscribed clients. The latest message
// is kept and replayed to every client that joins afterwards.
type Hub struct {
	name   string
	logger *slog.Logger

	broadcast chan Message
	joins     chan *Client
	leaves    chan *Client
	done      chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  *Message
	running bool
}

// New creates an idle hub. Call Run to start it.
func New(name string) *Hub {
	return &Hub{
		name:      name,
		logger:    log.Component("hub").With("hub", name),
		broadcast: make(chan Message, 256),
		joins:     make(chan *Client),
		leaves:    make(chan *Client),
		done:      make(chan struct{}),
		clients:   make(map[*Client]struct{}),
	}
}

// Run serves joins, leaves and broadcasts until ctx is done, then closes
// every client's queue. A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	h.setRunning(true)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.joins:
			h.add(c)
		case c := <-h.leaves:
			h.remove(c)
		case msg := <-h.broadcast:
			h.fanout(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- *h.latest
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client joined", "clients", n)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client left", "clients", n)
}

// fanout queues msg for every client. A client whose queue is full is
// dropped rather than stalling the others.
func (h *Hub) fanout(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = &msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("dropped slow client")
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.running = false
	h.mu.Unlock()
	close(h.done)
}

func (h *Hub) setRunning(v bool) {
	h.mu.Lock()
	h.running = v
	h.mu.Unlock()
}

// join hands c to the run loop. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.joins <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave removes c, returning immediately if the hub has stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.leaves <- c:
	case <-h.done:
	}
}

// Broadcast queues msg for every client. The message is dropped when the
// broadcast queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	msg, err := Encode(v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount returns the number of joined clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Done is closed when Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }
