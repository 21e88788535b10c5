package realtime

import "sync"

// Subscription is a handle on one chat's event stream. Close it when the
// consumer goes away; the Events channel is closed afterwards.
type Subscription struct {
	chatID string
	d      *Dispatcher

	events chan Event
	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	queue []Event
}

func newSubscription(chatID string, d *Dispatcher) *Subscription {
	s := &Subscription{
		chatID: chatID,
		d:      d,
		events: make(chan Event),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Subscription) ChatID() string { return s.chatID }

// Events yields the chat's events in arrival order.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close unregisters the subscription. Pending undelivered events are dropped.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.d.unsubscribe(s)
	s.finish()
}

func (s *Subscription) finish() {
	s.once.Do(func() { close(s.done) })
}

// push queues ev without blocking the dispatcher.
func (s *Subscription) push(ev Event) {
	select {
	case <-s.done:
		return
	default:
	}

	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.events)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.notify:
		case <-s.done:
			return
		}
	}
}
