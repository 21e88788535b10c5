package realtime

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func requireClosed(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case _, ok := <-s.Events():
		require.False(t, ok, "unexpected event")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}

func msgEvent(chatID, id string) Event {
	return Event{ChatID: chatID, Message: api.Message{ID: id, ChatID: chatID}}
}

func TestDispatch_DeliversInOrder(t *testing.T) {
	d := NewDispatcher(logging.Discard())
	s := d.Subscribe("c1")
	defer s.Close()

	for i := 0; i < 50; i++ {
		d.Dispatch(msgEvent("c1", fmt.Sprint(i)))
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, fmt.Sprint(i), recv(t, s).Message.ID)
	}
}

func TestDispatch_OnlyMatchingChat(t *testing.T) {
	d := NewDispatcher(logging.Discard())
	a := d.Subscribe("a")
	b := d.Subscribe("b")
	defer a.Close()
	defer b.Close()

	d.Dispatch(msgEvent("b", "m1"))
	d.Dispatch(msgEvent("a", "m2"))

	assert.Equal(t, "m2", recv(t, a).Message.ID)
	assert.Equal(t, "m1", recv(t, b).Message.ID)
}

func TestDispatch_FansOutToEverySubscriber(t *testing.T) {
	d := NewDispatcher(logging.Discard())
	s1 := d.Subscribe("c1")
	s2 := d.Subscribe("c1")
	defer s1.Close()
	defer s2.Close()

	d.Dispatch(msgEvent("c1", "m1"))

	assert.Equal(t, "m1", recv(t, s1).Message.ID)
	assert.Equal(t, "m1", recv(t, s2).Message.ID)
}

func TestSubscription_CloseStopsDelivery(t *testing.T) {
	d := NewDispatcher(logging.Discard())
	s := d.Subscribe("c1")

	s.Close()
	s.Close()
	d.Dispatch(msgEvent("c1", "late"))

	requireClosed(t, s)
	assert.Empty(t, d.Chats())
}

func TestDispatch_SlowConsumerDoesNotBlock(t *testing.T) {
	d := NewDispatcher(logging.Discard())
	s := d.Subscribe("c1")
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			d.Dispatch(msgEvent("c1", fmt.Sprint(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked on an idle subscriber")
	}
	assert.Equal(t, "0", recv(t, s).Message.ID)
}

func TestJoinLeaveHooks(t *testing.T) {
	d := NewDispatcher(logging.Discard())

	var mu sync.Mutex
	var calls []string
	d.onJoin = func(id string) { mu.Lock(); calls = append(calls, "join:"+id); mu.Unlock() }
	d.onLeave = func(id string) { mu.Lock(); calls = append(calls, "leave:"+id); mu.Unlock() }

	s1 := d.Subscribe("c1")
	s2 := d.Subscribe("c1")
	s1.Close()
	s2.Close()
	s2.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"join:c1", "leave:c1"}, calls)
}

func TestCloseAll(t *testing.T) {
	d := NewDispatcher(logging.Discard())
	a := d.Subscribe("a")
	b := d.Subscribe("b")

	d.closeAll()

	requireClosed(t, a)
	requireClosed(t, b)
	assert.Empty(t, d.Chats())
}
