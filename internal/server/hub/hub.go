// Package hub is the relay's realtime side: websocket clients join chats
// they are members of and receive a newMessage frame for every message
// stored in those chats.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/dmitrijs2005/recochat/internal/server/metrics"
	"github.com/dmitrijs2005/recochat/internal/server/models"
	"github.com/gorilla/websocket"
)

// Membership answers whether a user may join a chat.
type Membership interface {
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
}

// Hub tracks connected clients and the chats each of them joined.
type Hub struct {
	members  Membership
	logger   logging.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closed  bool
}

func New(members Membership, logger logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		members: members,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with a bearer token, not cookies.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// ServeWS upgrades the request and serves the websocket of userID until
// either side closes it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn, userID)
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	h.logger.Debug(r.Context(), "websocket connected", "user_id", userID)

	go c.writePump()
	go c.readPump()
}

// Publish queues msg to every client that joined its chat. A client whose
// send buffer is full is disconnected; it reloads history on reconnect.
func (h *Hub) Publish(msg models.Message) {
	frame, err := api.NewFrame(api.EventNewMessage, api.NewMessageEvent{ChatID: msg.ChatID, Message: msg.API()})
	if err != nil {
		h.logger.Error(context.Background(), "encode frame", "error", err)
		return
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error(context.Background(), "encode frame", "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[msg.ChatID] {
		select {
		case c.send <- raw:
			h.metrics.FrameDelivered()
		default:
			h.metrics.FrameDropped()
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(context.Background(), "dropping slow websocket client", "user_id", c.userID)
		h.unregister(c)
	}
}

// RoomSize returns the number of clients joined to chatID.
func (h *Hub) RoomSize(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.ConnOpened()
	return true
}

// unregister removes c from every room and closes its send queue, which
// makes the write pump close the connection. It is idempotent.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for chatID := range c.rooms {
		h.leaveLocked(c, chatID)
	}
	close(c.send)
	h.metrics.ConnClosed()
	h.metrics.SetRooms(len(h.rooms))
}

func (h *Hub) join(ctx context.Context, c *Client, chatID string) error {
	ok, err := h.members.IsMember(ctx, chatID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotMember
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.clients[c]; !live {
		return nil
	}
	room := h.rooms[chatID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[chatID] = room
	}
	room[c] = struct{}{}
	c.rooms[chatID] = struct{}{}
	h.metrics.SetRooms(len(h.rooms))
	return nil
}

func (h *Hub) leave(c *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, chatID)
	h.metrics.SetRooms(len(h.rooms))
}

func (h *Hub) leaveLocked(c *Client, chatID string) {
	delete(c.rooms, chatID)
	room, ok := h.rooms[chatID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, chatID)
	}
}
