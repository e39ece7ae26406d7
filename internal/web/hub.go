package web

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mkarag/venturo/internal/event"
)

const writeWait = 10 * time.Second

// conn is the slice of *websocket.Conn the hub needs. Tests plug in fakes.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const textMessage = 1 // websocket.TextMessage

// client wraps a connection with its own write mutex so the hub can write
// outside its registry lock. A gorilla conn never sees concurrent writers.
type client struct {
	wmu sync.Mutex
	c   conn
}

func (cl *client) write(data []byte) error {
	cl.wmu.Lock()
	defer cl.wmu.Unlock()
	cl.c.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.c.WriteMessage(textMessage, data)
}

// Hub tracks connected websocket clients and the conversation rooms they
// joined, and routes events to the right room. A single mutex guards the
// maps; network writes happen outside it so one stalled peer cannot block
// registration of unrelated clients.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
	rooms   map[string]map[string]bool // conversationID -> clientID set
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]bool),
	}
}

// Register adds a client connection. A reconnect with the same client ID
// replaces the old connection; room memberships carry over.
func (h *Hub) Register(clientID string, c conn) {
	h.mu.Lock()
	if old, ok := h.clients[clientID]; ok {
		old.c.Close()
	}
	h.clients[clientID] = &client{c: c}
	h.mu.Unlock()
	slog.Info("websocket client connected", "client", clientID)
}

// Unregister drops the client and purges it from every room. Rooms left
// empty are removed. The caller passes the connection it registered: when
// the entry was already replaced by a reconnect, the stale handler's
// unregister must not tear down the replacement.
func (h *Hub) Unregister(clientID string, c conn) {
	h.mu.Lock()
	cl, ok := h.clients[clientID]
	if !ok || cl.c != c {
		h.mu.Unlock()
		return
	}
	h.dropLocked(clientID)
	h.mu.Unlock()
	slog.Info("websocket client disconnected", "client", clientID)
}

// Join adds the client to a conversation room. Joining twice is a no-op,
// as is joining with an unknown client ID.
func (h *Hub) Join(clientID, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[clientID]; !ok {
		return
	}
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[string]bool)
		h.rooms[conversationID] = room
	}
	room[clientID] = true
}

// SendTo delivers one event to a single client. Unknown clients are a
// silent no-op; a failed write drops the connection.
func (h *Hub) SendTo(clientID string, ev event.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	cl, ok := h.clients[clientID]
	h.mu.Unlock()
	if !ok {
		return
	}

	if err := cl.write(data); err != nil {
		slog.Warn("websocket write failed", "client", clientID, "error", err)
		h.drop(clientID, cl)
	}
}

// Broadcast fans the event out to every client in the event's conversation
// room. Clients whose write fails are pruned on the spot.
func (h *Hub) Broadcast(ev event.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	room := h.rooms[ev.ConversationID]
	targets := make(map[string]*client, len(room))
	for clientID := range room {
		if cl, ok := h.clients[clientID]; ok {
			targets[clientID] = cl
		}
	}
	h.mu.Unlock()

	for clientID, cl := range targets {
		if err := cl.write(data); err != nil {
			slog.Warn("websocket broadcast failed", "client", clientID, "error", err)
			h.drop(clientID, cl)
		}
	}
}

// Counts reports connected clients and occupied rooms.
func (h *Hub) Counts() (clients, rooms int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients), len(h.rooms)
}

// drop removes the client if the given entry is still the registered one.
func (h *Hub) drop(clientID string, cl *client) {
	h.mu.Lock()
	if cur, ok := h.clients[clientID]; ok && cur == cl {
		h.dropLocked(clientID)
	}
	h.mu.Unlock()
}

func (h *Hub) dropLocked(clientID string) {
	if cl, ok := h.clients[clientID]; ok {
		cl.c.Close()
		delete(h.clients, clientID)
	}
	for conversationID, room := range h.rooms {
		delete(room, clientID)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}
