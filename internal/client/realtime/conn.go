package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the server.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the server.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 * 1024

	sendBuffer = 64
)

var (
	ErrNotConnected     = errors.New("realtime connection is not open")
	ErrAlreadyConnected = errors.New("realtime connection is already open")
	ErrClosed           = errors.New("realtime connection closed")
)

// Conn is an owned websocket connection to the relay. It is created
// disconnected; Connect opens it and Close tears it down for good.
// Subscriptions survive reconnects: every Connect re-joins the chats that
// still have subscribers.
type Conn struct {
	url    string
	dialer *websocket.Dialer
	logger logging.Logger
	d      *Dispatcher

	mu     sync.Mutex
	token  string
	link   *link
	closed bool
}

// link is the state of a single websocket session.
type link struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu  sync.Mutex
	err error
}

func (l *link) stop(err error) {
	l.once.Do(func() {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(l.done)
	})
}

// NewConn returns a disconnected Conn for the websocket endpoint url
// (e.g. "ws://127.0.0.1:8080/ws").
func NewConn(url, token string, logger logging.Logger) *Conn {
	c := &Conn{
		url:    url,
		token:  token,
		dialer: websocket.DefaultDialer,
		logger: logger.With("component", "realtime"),
		d:      NewDispatcher(logger),
	}
	c.d.onJoin = func(chatID string) { c.sendChatRef(api.EventJoinChat, chatID) }
	c.d.onLeave = func(chatID string) { c.sendChatRef(api.EventLeaveChat, chatID) }
	return c
}

// SetAccessToken replaces the bearer token used by the next Connect.
func (c *Conn) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Subscribe returns a handle on chatID's events. It works whether or not the
// connection is currently open.
func (c *Conn) Subscribe(chatID string) *Subscription {
	return c.d.Subscribe(chatID)
}

// Connect dials the relay and starts the read and write pumps.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.link != nil && !c.link.isDone() {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	token := c.token
	c.mu.Unlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", common.BearerPrefix+token)
	}
	ws, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", c.url, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	l := &link{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		return ErrClosed
	}
	c.link = l
	c.mu.Unlock()

	l.wg.Add(2)
	go c.readPump(l)
	go c.writePump(l)

	for _, chatID := range c.d.Chats() {
		c.sendChatRef(api.EventJoinChat, chatID)
	}

	c.logger.Info(ctx, "realtime connected", "url", c.url)
	return nil
}

// Done is closed when the current connection drops. Nil when never connected.
func (c *Conn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return nil
	}
	return c.link.done
}

// Err reports why the current connection ended, if it did.
func (c *Conn) Err() error {
	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l == nil {
		return ErrNotConnected
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close shuts the connection and ends every subscription.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	l := c.link
	c.mu.Unlock()

	if l != nil {
		l.stop(ErrClosed)
		l.wg.Wait()
	}
	c.d.closeAll()
	return nil
}

func (l *link) isDone() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// sendChatRef queues a join/leave frame. Dropped when disconnected: the next
// Connect re-joins whatever is still subscribed.
func (c *Conn) sendChatRef(event, chatID string) {
	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l == nil {
		return
	}

	frame, err := api.NewFrame(event, api.ChatRef{ChatID: chatID})
	if err != nil {
		return
	}
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}

	select {
	case l.send <- b:
	case <-l.done:
	}
}

func (c *Conn) readPump(l *link) {
	defer l.wg.Done()
	defer l.stop(ErrNotConnected)

	l.ws.SetReadLimit(maxFrameSize)
	_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
	l.ws.SetPongHandler(func(string) error {
		return l.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	for {
		_, raw, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !l.isDone() {
				c.logger.Warn(ctx, "realtime read failed", "error", err)
			}
			l.stop(fmt.Errorf("%w: %v", ErrNotConnected, err))
			return
		}
		c.handleFrame(ctx, raw)
	}
}

func (c *Conn) handleFrame(ctx context.Context, raw []byte) {
	var f api.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.logger.Warn(ctx, "malformed realtime frame", "error", err)
		return
	}

	switch f.Event {
	case api.EventNewMessage:
		var ev api.NewMessageEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			c.logger.Warn(ctx, "malformed newMessage payload", "error", err)
			return
		}
		if ev.ChatID == "" {
			ev.ChatID = ev.Message.ChatID
		}
		c.d.Dispatch(Event{ChatID: ev.ChatID, Message: ev.Message})
	case api.EventError:
		var e api.ErrorResponse
		_ = json.Unmarshal(f.Data, &e)
		c.logger.Warn(ctx, "relay reported error", "error", e.Error)
	default:
		c.logger.Debug(ctx, "ignoring realtime frame", "event", f.Event)
	}
}

func (c *Conn) writePump(l *link) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = l.ws.Close()
		l.wg.Done()
	}()

	for {
		select {
		case b := <-l.send:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				l.stop(fmt.Errorf("%w: %v", ErrNotConnected, err))
				return
			}
		case <-ticker.C:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				l.stop(fmt.Errorf("%w: %v", ErrNotConnected, err))
				return
			}
		case <-l.done:
			_ = l.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
