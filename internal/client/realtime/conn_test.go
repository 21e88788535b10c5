package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relayStub accepts one websocket and exposes the frames it receives.
type relayStub struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	header chan http.Header
}

func newRelayStub(t *testing.T) *relayStub {
	t.Helper()
	r := &relayStub{conns: make(chan *websocket.Conn, 4), header: make(chan http.Header, 4)}
	upgrader := websocket.Upgrader{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.header <- req.Header.Clone()
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.conns <- ws
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *relayStub) url() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http")
}

func (r *relayStub) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-r.conns:
		t.Cleanup(func() { _ = ws.Close() })
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection")
		return nil
	}
}

func readFrame(t *testing.T, ws *websocket.Conn) api.Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f api.Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func chatRef(t *testing.T, f api.Frame) string {
	t.Helper()
	var ref api.ChatRef
	require.NoError(t, json.Unmarshal(f.Data, &ref))
	return ref.ChatID
}

func pushMessage(t *testing.T, ws *websocket.Conn, msg api.Message) {
	t.Helper()
	f, err := api.NewFrame(api.EventNewMessage, api.NewMessageEvent{ChatID: msg.ChatID, Message: msg})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(f))
}

func TestConn_JoinReceiveLeave(t *testing.T) {
	relay := newRelayStub(t)
	c := NewConn(relay.url(), "tok", logging.Discard())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	h := <-relay.header
	assert.Equal(t, "Bearer tok", h.Get("Authorization"))
	ws := relay.accept(t)

	sub := c.Subscribe("c1")
	f := readFrame(t, ws)
	assert.Equal(t, api.EventJoinChat, f.Event)
	assert.Equal(t, "c1", chatRef(t, f))

	pushMessage(t, ws, api.Message{ID: "m1", ChatID: "c1", Content: "env"})
	ev := recv(t, sub)
	assert.Equal(t, "c1", ev.ChatID)
	assert.Equal(t, "m1", ev.Message.ID)
	assert.Equal(t, "env", ev.Message.Content)

	sub.Close()
	f = readFrame(t, ws)
	assert.Equal(t, api.EventLeaveChat, f.Event)
	assert.Equal(t, "c1", chatRef(t, f))
}

func TestConn_SubscribeBeforeConnectJoinsOnConnect(t *testing.T) {
	relay := newRelayStub(t)
	c := NewConn(relay.url(), "", logging.Discard())
	defer c.Close()

	sub := c.Subscribe("c9")
	defer sub.Close()

	require.NoError(t, c.Connect(context.Background()))
	ws := relay.accept(t)

	f := readFrame(t, ws)
	assert.Equal(t, api.EventJoinChat, f.Event)
	assert.Equal(t, "c9", chatRef(t, f))
}

func TestConn_IgnoresGarbageFrames(t *testing.T) {
	relay := newRelayStub(t)
	c := NewConn(relay.url(), "", logging.Discard())
	defer c.Close()

	sub := c.Subscribe("c1")
	require.NoError(t, c.Connect(context.Background()))
	ws := relay.accept(t)
	readFrame(t, ws)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"typing","data":{}}`)))
	pushMessage(t, ws, api.Message{ID: "m2", ChatID: "c1"})

	assert.Equal(t, "m2", recv(t, sub).Message.ID)
}

func TestConn_CloseEndsSubscriptions(t *testing.T) {
	relay := newRelayStub(t)
	c := NewConn(relay.url(), "", logging.Discard())

	sub := c.Subscribe("c1")
	require.NoError(t, c.Connect(context.Background()))
	relay.accept(t)

	require.NoError(t, c.Close())
	requireClosed(t, sub)

	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
	require.NoError(t, c.Close())
}

func TestConn_DoneOnServerDrop(t *testing.T) {
	relay := newRelayStub(t)
	c := NewConn(relay.url(), "", logging.Discard())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	ws := relay.accept(t)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)

	_ = ws.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection drop not observed")
	}
	assert.ErrorIs(t, c.Err(), ErrNotConnected)

	require.NoError(t, c.Connect(context.Background()))
	relay.accept(t)
}

func TestConn_DialFailure(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1/ws", "", logging.Discard())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, c.Connect(ctx))
	assert.ErrorIs(t, c.Err(), ErrNotConnected)
}
