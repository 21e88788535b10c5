package realtime

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/logging"
)

// Event is a new message pushed for a chat.
type Event struct {
	ChatID  string
	Message api.Message
}

// Feed hands out subscriptions to a chat's realtime events.
type Feed interface {
	Subscribe(chatID string) *Subscription
}

// Dispatcher routes events to the subscriptions of their chat.
type Dispatcher struct {
	logger logging.Logger

	// onJoin/onLeave fire when a chat gains its first or loses its last
	// subscriber. Called without the lock held.
	onJoin  func(chatID string)
	onLeave func(chatID string)

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewDispatcher(logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger.With("component", "realtime_dispatcher"),
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscription for chatID. Events dispatched after
// Subscribe returns are delivered on its Events channel in dispatch order.
func (d *Dispatcher) Subscribe(chatID string) *Subscription {
	s := newSubscription(chatID, d)

	d.mu.Lock()
	set, ok := d.subs[chatID]
	if !ok {
		set = make(map[*Subscription]struct{})
		d.subs[chatID] = set
	}
	set[s] = struct{}{}
	first := len(set) == 1
	join := d.onJoin
	d.mu.Unlock()

	if first && join != nil {
		join(chatID)
	}
	return s
}

func (d *Dispatcher) unsubscribe(s *Subscription) {
	d.mu.Lock()
	set, ok := d.subs[s.chatID]
	if !ok {
		d.mu.Unlock()
		return
	}
	if _, ok := set[s]; !ok {
		d.mu.Unlock()
		return
	}
	delete(set, s)
	last := len(set) == 0
	if last {
		delete(d.subs, s.chatID)
	}
	leave := d.onLeave
	d.mu.Unlock()

	if last && leave != nil {
		leave(s.chatID)
	}
}

// Dispatch delivers ev to every subscription of ev.ChatID. It never blocks
// on slow subscribers.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.Lock()
	targets := make([]*Subscription, 0, len(d.subs[ev.ChatID]))
	for s := range d.subs[ev.ChatID] {
		targets = append(targets, s)
	}
	d.mu.Unlock()

	if len(targets) == 0 {
		d.logger.Debug(context.Background(), "event for chat without subscribers", "chat_id", ev.ChatID)
		return
	}
	for _, s := range targets {
		s.push(ev)
	}
}

// Chats returns the ids of chats that currently have subscribers.
func (d *Dispatcher) Chats() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.subs))
	for id := range d.subs {
		ids = append(ids, id)
	}
	return ids
}

// closeAll ends every subscription. Used when the feed shuts down for good.
func (d *Dispatcher) closeAll() {
	d.mu.Lock()
	var all []*Subscription
	for _, set := range d.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	d.subs = make(map[string]map[*Subscription]struct{})
	d.mu.Unlock()

	for _, s := range all {
		s.finish()
	}
}
