package ws

import (
	"errors"
	"sync"

	"foodmed/internal/models"

	"go.uber.org/zap"
)

// ErrNotAttached is returned for operations on a connection the hub no longer tracks.
var ErrNotAttached = errors.New("ws: connection is not attached")

// Publisher receives presence transitions and stored messages after the hub
// committed them. Implementations must not block.
type Publisher interface {
	PresenceChanged(userID string, online bool)
	MessageSaved(m *models.Message)
}

// Hub maintains the set of open connections and fans events out to them.
// Online-set transitions and their broadcast happen under one lock, so every
// connection sees snapshots in registry order.
type Hub struct {
	registry *Registry
	pub      Publisher
	log      *zap.Logger

	mu      sync.Mutex
	version uint64

	clientsMu sync.RWMutex
	clients   map[string]*Client
}

func NewHub(registry *Registry, pub Publisher, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		registry: registry,
		pub:      pub,
		log:      log,
		clients:  make(map[string]*Client),
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Attach starts tracking c and queues the current online set on it.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clientsMu.Lock()
	h.clients[c.ID] = c
	h.clientsMu.Unlock()
	snap := Snapshot{Users: h.registry.OnlineUsers(), Version: h.version}
	c.enqueue(encodeSnapshot(c.Dialect(), snap))
}

// Identify binds c to userID and broadcasts the online set when it changed.
// Otherwise only c gets the current set, in its own dialect.
func (h *Hub) Identify(c *Client, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.attached(c) {
		return ErrNotAttached
	}
	prev, hadPrev := h.registry.UserOf(c.ID)
	wasOnline := h.registry.IsOnline(userID)
	changed, err := h.registry.Register(c.ID, userID)
	if err != nil {
		return err
	}
	if !changed {
		snap := Snapshot{Users: h.registry.OnlineUsers(), Version: h.version}
		if !c.enqueue(encodeSnapshot(c.Dialect(), snap)) {
			h.log.Debug("online set dropped for busy connection", zap.String("conn", c.ID), zap.Uint64("version", snap.Version))
		}
		return nil
	}
	h.broadcastLocked()
	if hadPrev && prev != userID && !h.registry.IsOnline(prev) {
		h.publishPresence(prev, false)
	}
	if !wasOnline {
		h.publishPresence(userID, true)
	}
	return nil
}

// Join makes c addressable through each room. See Registry.Join for scope.
func (h *Hub) Join(c *Client, scope string, rooms ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.attached(c) {
		return ErrNotAttached
	}
	h.registry.Join(c.ID, scope, rooms...)
	return nil
}

// Detach forgets c, closes its queue and broadcasts the online set if its
// user went offline. Detaching twice is a no-op.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clientsMu.Lock()
	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
	}
	h.clientsMu.Unlock()
	c.Close()

	userID, offline := h.registry.Unregister(c.ID)
	if offline {
		h.broadcastLocked()
		h.publishPresence(userID, false)
	}
}

// NotifyOnlineSet pushes the current online set to every open connection,
// identified or not.
func (h *Hub) NotifyOnlineSet() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked()
}

func (h *Hub) broadcastLocked() {
	h.version++
	snap := Snapshot{Users: h.registry.OnlineUsers(), Version: h.version}
	var frames [2][]byte
	for _, c := range h.snapshotClients() {
		d := c.Dialect()
		if frames[d] == nil {
			frames[d] = encodeSnapshot(d, snap)
		}
		if !c.enqueue(frames[d]) {
			h.log.Debug("online set dropped for busy connection", zap.String("conn", c.ID), zap.Uint64("version", snap.Version))
		}
	}
}

// Deliver queues a stored message on every connection addressed by its
// recipient and echoes it once to the sender's connection. Connections that
// cannot take the frame are closed as slow consumers. It returns the number of
// connections the message was queued on.
func (h *Hub) Deliver(from *Client, m *models.Message) int {
	targets := make(map[string]struct{})
	for _, id := range h.registry.Recipients(m.Sender, m.Receiver) {
		targets[id] = struct{}{}
	}
	if from != nil {
		targets[from.ID] = struct{}{}
	}

	var frames [2][]byte
	delivered := 0
	for id := range targets {
		c := h.client(id)
		if c == nil {
			continue
		}
		d := c.Dialect()
		if frames[d] == nil {
			frames[d] = encodeMessage(d, m)
		}
		if c.enqueue(frames[d]) {
			delivered++
			continue
		}
		if !c.Closed() {
			h.log.Warn("closing slow connection", zap.String("conn", c.ID), zap.String("message", m.ID))
			c.Close()
		}
	}
	if h.pub != nil {
		h.pub.MessageSaved(m)
	}
	return delivered
}

// Reject sends an error frame to c only.
func (h *Hub) Reject(c *Client, event string, err error) {
	if !c.enqueue(encodeError(event, err)) {
		h.log.Debug("error frame dropped", zap.String("conn", c.ID), zap.Error(err))
	}
}

// CloseAll closes every connection's queue. Write pumps then send a close
// frame and the read side detaches each session.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshotClients() {
		c.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) attached(c *Client) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.clients[c.ID] == c
}

func (h *Hub) client(id string) *Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.clients[id]
}

func (h *Hub) snapshotClients() []*Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	list := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		list = append(list, c)
	}
	return list
}

func (h *Hub) publishPresence(userID string, online bool) {
	if h.pub != nil {
		h.pub.PresenceChanged(userID, online)
	}
}
