package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10

	// Client frames are small control messages.
	maxMessageSize = 4 * 1024

	sendBuffer = 256
)

var errNotMember = errors.New("not a member of this chat")

// Client is one websocket connection of an authenticated user. rooms is
// guarded by the hub's mutex.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	rooms  map[string]struct{}
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
		rooms:  make(map[string]struct{}),
	}
}

// readPump handles joinChat and leaveChat frames until the connection
// fails, then unregisters the client.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(ctx, "websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	var f api.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.reply(ctx, "malformed frame")
		return
	}

	var ref api.ChatRef
	if f.Event == api.EventJoinChat || f.Event == api.EventLeaveChat {
		if err := json.Unmarshal(f.Data, &ref); err != nil || ref.ChatID == "" {
			c.reply(ctx, "chatId is required")
			return
		}
	}

	switch f.Event {
	case api.EventJoinChat:
		if err := c.hub.join(ctx, c, ref.ChatID); err != nil {
			if !errors.Is(err, errNotMember) {
				c.hub.logger.Error(ctx, "join chat", "chat_id", ref.ChatID, "error", err)
			}
			c.reply(ctx, "cannot join "+ref.ChatID+": "+err.Error())
		}
	case api.EventLeaveChat:
		c.hub.leave(c, ref.ChatID)
	default:
		c.reply(ctx, "unknown event "+f.Event)
	}
}

// reply queues an error frame without blocking the read loop.
func (c *Client) reply(ctx context.Context, msg string) {
	f, err := api.NewFrame(api.EventError, api.ErrorResponse{Error: msg})
	if err != nil {
		return
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, live := c.hub.clients[c]; !live {
		return
	}
	select {
	case c.send <- raw:
	default:
		c.hub.logger.Debug(ctx, "error frame dropped", "user_id", c.userID)
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings. It closes the connection once the hub closes the queue.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
