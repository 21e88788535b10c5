package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/client/client"
	"github.com/dmitrijs2005/recochat/internal/client/models"
	"github.com/dmitrijs2005/recochat/internal/client/realtime"
	"github.com/dmitrijs2005/recochat/internal/client/services"
	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// PageSize is the number of messages requested per history page. A shorter
// page means the start of the history was reached.
const PageSize = 100

// decryptWorkers bounds concurrent decrypts of one page.
const decryptWorkers = 8

// Backoff for fetching the key of a realtime message.
var (
	keyRetryBase        = 200 * time.Millisecond
	keyRetries   uint64 = 4
)

// Session is the active conversation view. Safe for concurrent use.
type Session struct {
	client      client.Client
	keys        services.KeyExchange
	feed        realtime.Feed
	userID      string
	displayName string
	logger      logging.Logger

	updates chan struct{}

	mu       sync.Mutex
	closed   bool
	epoch    uint64
	chatID   string
	state    State
	messages []models.Message
	ids      map[string]struct{}
	hasMore  bool
	page     int
	blocked  error

	// realtime events received while not Ready, in arrival order
	pending []api.Message
	flush   chan struct{}
	sub     *realtime.Subscription
	cancel  context.CancelFunc
}

// New returns an idle Session. feed may be nil when no realtime transport
// is available; history and sending still work.
func New(c client.Client, keys services.KeyExchange, feed realtime.Feed, userID, displayName string, logger logging.Logger) *Session {
	return &Session{
		client:      c,
		keys:        keys,
		feed:        feed,
		userID:      userID,
		displayName: displayName,
		logger:      logger.With("component", "session"),
		updates:     make(chan struct{}, 1),
		ids:         make(map[string]struct{}),
		hasMore:     true,
	}
}

// Open makes chatID the active conversation. The previous one is torn down:
// its subscription is closed, keys are forgotten and in-flight loads become
// stale. Opening the already active chat is a no-op unless it is blocked.
func (s *Session) Open(chatID string) error {
	if chatID == "" {
		return fmt.Errorf("%w: empty chat id", common.ErrorValidation)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.chatID == chatID && s.blocked == nil {
		s.mu.Unlock()
		return nil
	}
	old := s.switchLocked(chatID)
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.notify()
	s.logger.Debug(context.Background(), "conversation opened", "chat_id", chatID)
	return nil
}

// switchLocked resets state for chatID and returns the previous
// subscription, which the caller closes after releasing the lock.
func (s *Session) switchLocked(chatID string) *realtime.Subscription {
	old := s.teardownLocked()

	s.chatID = chatID
	if chatID == "" || s.feed == nil {
		return old
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.flush = make(chan struct{}, 1)
	s.sub = s.feed.Subscribe(chatID)
	go s.consume(ctx, s.sub, s.flush, chatID, s.epoch)
	return old
}

func (s *Session) teardownLocked() *realtime.Subscription {
	old := s.sub
	if s.cancel != nil {
		s.cancel()
	}
	s.sub = nil
	s.cancel = nil
	s.flush = nil
	s.keys.Forget()

	s.epoch++
	s.chatID = ""
	s.state = Idle
	s.messages = nil
	s.ids = make(map[string]struct{})
	s.hasMore = true
	s.page = 0
	s.blocked = nil
	s.pending = nil
	return old
}

// Close ends the session. Subsequent operations fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	old := s.teardownLocked()
	s.closed = true
	close(s.updates)
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// LoadPage fetches history page (1 = newest) of chatID, decrypts it and
// merges it: page 1 replaces the list, later pages are prepended. A chatID
// other than the active one switches to it first.
func (s *Session) LoadPage(ctx context.Context, chatID string, page int) error {
	if page < 1 {
		return ErrInvalidPage
	}
	if err := s.Open(chatID); err != nil {
		return err
	}

	s.mu.Lock()
	if s.chatID != chatID {
		s.mu.Unlock()
		return ErrStaleConversation
	}
	if s.state.loading() {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	epoch := s.epoch
	prev := s.state
	if page == 1 || prev == Idle {
		s.state = LoadingFirstPage
	} else {
		s.state = LoadingMorePages
	}
	s.mu.Unlock()
	s.notify()

	msgs, err := s.fetchPage(ctx, chatID, page)
	if err != nil {
		return s.failLoad(epoch, prev, err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug(ctx, "discarding stale page", "chat_id", chatID, "page", page)
		return ErrStaleConversation
	}
	if page == 1 {
		s.messages = nil
		s.ids = make(map[string]struct{})
		s.appendLocked(msgs)
	} else {
		s.prependLocked(msgs)
	}
	s.hasMore = len(msgs) >= PageSize
	s.page = page
	s.state = Ready
	flush := s.flush
	s.mu.Unlock()

	if flush != nil {
		select {
		case flush <- struct{}{}:
		default:
		}
	}
	s.notify()
	s.logger.Debug(ctx, "page loaded", "chat_id", chatID, "page", page, "count", len(msgs))
	return nil
}

// LoadMore fetches the next older page of the active conversation.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	chatID := s.chatID
	next := s.page + 1
	hasMore := s.hasMore
	s.mu.Unlock()

	if chatID == "" {
		return ErrNoConversation
	}
	if !hasMore {
		return nil
	}
	return s.LoadPage(ctx, chatID, next)
}

func (s *Session) fetchPage(ctx context.Context, chatID string, page int) ([]models.Message, error) {
	key, err := s.keys.ConversationKey(ctx, chatID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	raw, err := s.client.GetMessages(ctx, chatID, page, PageSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	out := make([]models.Message, len(raw))
	var g errgroup.Group
	g.SetLimit(decryptWorkers)
	for i := range raw {
		g.Go(func() error {
			out[i] = s.decrypt(ctx, raw[i], key)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// failLoad restores the pre-load state. Blocking key errors are recorded.
func (s *Session) failLoad(epoch uint64, prev State, err error) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrStaleConversation
	}
	s.state = prev
	if services.IsBlocking(err) {
		s.blocked = err
	}
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Session) decrypt(ctx context.Context, m api.Message, key []byte) models.Message {
	plain, err := cryptox.OpenMessage(m.Content, key)
	out := models.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		Content:   plain,
	}
	if err != nil {
		s.logger.Warn(ctx, services.ErrDecryptionFailed.Error(), "chat_id", m.ChatID, "message_id", m.ID, "error", err)
		out.Content = cryptox.DecryptionFailedText
		out.DecryptFailed = true
	}
	return out
}

func (s *Session) appendLocked(msgs []models.Message) {
	for _, m := range msgs {
		if _, dup := s.ids[m.ID]; dup {
			continue
		}
		s.ids[m.ID] = struct{}{}
		s.messages = append(s.messages, m)
	}
}

func (s *Session) prependLocked(msgs []models.Message) {
	older := make([]models.Message, 0, len(msgs)+len(s.messages))
	for _, m := range msgs {
		if _, dup := s.ids[m.ID]; dup {
			continue
		}
		s.ids[m.ID] = struct{}{}
		older = append(older, m)
	}
	s.messages = append(older, s.messages...)
}

// Send encrypts plaintext with chatID's key and submits it. The message is
// not added to the list here; it arrives through the realtime feed.
func (s *Session) Send(ctx context.Context, chatID, plaintext string) (*models.Message, error) {
	if strings.TrimSpace(plaintext) == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.chatID == chatID && s.blocked != nil {
		err := s.blocked
		s.mu.Unlock()
		return nil, err
	}
	epoch := s.epoch
	s.mu.Unlock()

	key, err := s.keys.ConversationKey(ctx, chatID)
	if err != nil {
		if services.IsBlocking(err) {
			s.mu.Lock()
			if s.epoch == epoch && s.chatID == chatID {
				s.blocked = err
			}
			s.mu.Unlock()
			s.notify()
		}
		return nil, err
	}
	envelope, err := cryptox.EncryptMessage(plaintext, key)
	common.WipeByteArray(key)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	rec, err := s.client.SendMessage(ctx, api.SendMessageRequest{
		ChatID:    chatID,
		SenderID:  s.userID,
		Content:   envelope,
		CreatedBy: s.displayName,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("send message: %w", err)
	}

	return &models.Message{
		ID:        rec.ID,
		ChatID:    chatID,
		SenderID:  s.userID,
		CreatedBy: s.displayName,
		CreatedAt: rec.CreatedAt,
		Content:   plaintext,
	}, nil
}

// consume ingests one subscription's events in order. Events that arrive
// while the session is not Ready are queued and flushed once it is.
func (s *Session) consume(ctx context.Context, sub *realtime.Subscription, flush <-chan struct{}, chatID string, epoch uint64) {
	for {
		var batch []api.Message
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			batch = s.enqueue(epoch, ev.Message)
		case <-flush:
			batch = s.takePending(epoch)
		}
		for _, m := range batch {
			s.ingest(ctx, chatID, epoch, m)
		}
	}
}

// enqueue returns the messages ready for ingestion, in order.
func (s *Session) enqueue(epoch uint64, m api.Message) []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	s.pending = append(s.pending, m)
	if s.state != Ready {
		return nil
	}
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *Session) takePending(epoch uint64) []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != Ready {
		return nil
	}
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *Session) ingest(ctx context.Context, chatID string, epoch uint64, m api.Message) {
	var view models.Message
	key, err := s.realtimeKey(ctx, chatID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn(ctx, "no key for realtime message", "chat_id", chatID, "message_id", m.ID, "error", err)
		view = s.decrypt(ctx, m, nil)
	} else {
		view = s.decrypt(ctx, m, key)
		common.WipeByteArray(key)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if err != nil && services.IsBlocking(err) {
		s.blocked = err
	}
	s.appendLocked([]models.Message{view})
	s.mu.Unlock()
	s.notify()
}

// realtimeKey retries transient key fetch failures with backoff so a live
// message is not rendered as undecryptable because of a network blip.
// Retrying here holds back later events, which keeps them in order.
func (s *Session) realtimeKey(ctx context.Context, chatID string) ([]byte, error) {
	var key []byte
	b := retry.WithMaxRetries(keyRetries, retry.NewExponential(keyRetryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		k, err := s.keys.ConversationKey(ctx, chatID)
		if errors.Is(err, services.ErrKeyFetchFailed) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		key = k
		return nil
	})
	return key, err
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Updates signals, coalesced, that the session state changed. Closed by
// Close.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// Messages returns a copy of the ordered message list.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) HasMoreMessages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Blocked returns the key error that makes the active conversation
// unusable, or nil.
func (s *Session) Blocked() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked
}
