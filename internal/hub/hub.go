package hub

import (
	"encoding/json"
	"sync"

	"github.com/Degefa-Gomora/evangadiForum1/internal/config"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

// Hub owns every live websocket connection and the per-connection room
// membership used for fan-out. Broadcast order to subscribers follows
// the order messages enter the broadcast channel.
type Hub struct {
	clients     map[string]*Client                 // clientID -> client
	rooms       map[string]map[string]*Client      // roomID -> clientID -> client
	memberships map[string]map[string]struct{}     // clientID -> joined roomIDs
	register    chan *Client
	unregister  chan *Client
	broadcast   chan *outboundMessage
	mu          sync.RWMutex
	config      config.WebSocketConfig
}

type outboundMessage struct {
	RoomID  string // empty means every connection
	Message []byte
	Exclude string // client ID to exclude
}

// NewHub creates a hub. Run must be started on its own goroutine.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
		memberships: make(map[string]map[string]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *outboundMessage, 256),
		config:      cfg,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldConnectionID, client.id).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				for roomID := range h.memberships[client.id] {
					h.detachLocked(client.id, roomID)
				}
				delete(h.memberships, client.id)
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldConnectionID, client.id).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := h.clients
			if msg.RoomID != "" {
				targets = h.rooms[msg.RoomID]
			}
			for clientID, client := range targets {
				if clientID == msg.Exclude {
					continue
				}
				select {
				case client.send <- msg.Message:
				default:
					go h.removeClient(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister drops a connection and all of its room memberships.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom attaches a connection to a room. Joining a room twice is a
// no-op.
func (h *Hub) JoinRoom(clientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][clientID] = client
	if _, ok := h.memberships[clientID]; !ok {
		h.memberships[clientID] = make(map[string]struct{})
	}
	h.memberships[clientID][roomID] = struct{}{}

	l := log.L()
	l.Info().Str(log.FieldConnectionID, clientID).Str(log.FieldRoomID, roomID).Msg("client joined room")
}

// LeaveRoom detaches a connection from a room. Idempotent.
func (h *Hub) LeaveRoom(clientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detachLocked(clientID, roomID)
	if members, ok := h.memberships[clientID]; ok {
		delete(members, roomID)
	}

	l := log.L()
	l.Info().Str(log.FieldConnectionID, clientID).Str(log.FieldRoomID, roomID).Msg("client left room")
}

func (h *Hub) detachLocked(clientID, roomID string) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Rooms returns the rooms a connection is currently joined to.
func (h *Hub) Rooms(clientID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.memberships[clientID]))
	for roomID := range h.memberships[clientID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// RoomClientCount returns how many connections are joined to a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastToRoom fans an event out to every connection joined to the
// room, optionally excluding one connection.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &outboundMessage{
		RoomID:  roomID,
		Message: data,
		Exclude: exclude,
	}
	return nil
}

// BroadcastToAll sends an event to every live connection, joined to a
// room or not. Used for presence snapshots.
func (h *Hub) BroadcastToAll(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &outboundMessage{Message: data}
	return nil
}

func (h *Hub) removeClient(client *Client) {
	h.unregister <- client
}
