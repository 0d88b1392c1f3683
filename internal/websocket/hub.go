// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is the wire format pushed to connected admin consoles.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

const EventForceLogout = "force_logout"

// Hub fans server-side session events out to connected clients. Its only
// job is telling a console that its session died so it can drop local state
// immediately instead of discovering it on the next request.
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// ForceLogout notifies an identity's consoles that a session was revoked.
// An empty sessionID addresses every session the identity holds.
func (h *Hub) ForceLogout(identityID int64, sessionID, reason string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	event := &Event{Type: EventForceLogout, SessionID: sessionID, Reason: reason}
	for client := range h.clients[identityID] {
		if sessionID != "" && client.sessionID != sessionID {
			continue
		}
		client.Send(event)
	}
}

// IsConnected reports whether the identity has at least one live console.
func (h *Hub) IsConnected(identityID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identityID]) > 0
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.identityID] == nil {
		h.clients[client.identityID] = make(map[*Client]bool)
	}
	h.clients[client.identityID][client] = true

	h.logger.Debug("websocket client connected",
		zap.Int64("identity_id", client.identityID),
		zap.String("session_id", client.sessionID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.clients[client.identityID]; ok {
		if _, ok := set[client]; ok {
			delete(set, client)
			close(client.send)
			if len(set) == 0 {
				delete(h.clients, client.identityID)
			}
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.clients {
		for client := range set {
			close(client.send)
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
