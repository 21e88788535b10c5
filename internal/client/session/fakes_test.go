package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/client/services"
	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/stretchr/testify/require"
)

type pageKey struct {
	chatID string
	page   int
}

// fakeClient serves canned history pages and records sent messages.
type fakeClient struct {
	mu       sync.Mutex
	pages    map[pageKey][]api.Message
	pageErr  error
	gate     map[string]chan struct{}
	entered  chan pageKey
	sent     []api.SendMessageRequest
	keyCalls atomic.Int32
	wrapped  map[string]string
	keyGate  chan struct{}
	keyEnter chan string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pages:   map[pageKey][]api.Message{},
		gate:    map[string]chan struct{}{},
		entered: make(chan pageKey, 16),
		wrapped: map[string]string{},
	}
}

func (f *fakeClient) Close() error                   { return nil }
func (f *fakeClient) SetAccessToken(string)          {}
func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) Register(ctx context.Context) (*api.RegisterResponse, error) {
	return nil, nil
}
func (f *fakeClient) UploadPublicKey(ctx context.Context, publicKey string) error { return nil }
func (f *fakeClient) CreateChat(ctx context.Context, name string, participants []string) (string, error) {
	return "", nil
}

func (f *fakeClient) GetChatKey(ctx context.Context, chatID string) (string, error) {
	f.keyCalls.Add(1)
	f.mu.Lock()
	gate := f.keyGate
	f.mu.Unlock()
	if gate != nil {
		f.keyEnter <- chatID
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wrapped[chatID], nil
}

func (f *fakeClient) GetMessages(ctx context.Context, chatID string, page, limit int) ([]api.Message, error) {
	f.mu.Lock()
	gate := f.gate[chatID]
	f.mu.Unlock()

	f.entered <- pageKey{chatID, page}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return f.pages[pageKey{chatID, page}], nil
}

func (f *fakeClient) SendMessage(ctx context.Context, req api.SendMessageRequest) (*api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return &api.Message{ID: fmt.Sprintf("s%d", len(f.sent)), ChatID: req.ChatID, CreatedAt: time.Now()}, nil
}

func (f *fakeClient) setPage(chatID string, page int, msgs []api.Message) {
	f.mu.Lock()
	f.pages[pageKey{chatID, page}] = msgs
	f.mu.Unlock()
}

func (f *fakeClient) hold(chatID string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gate[chatID] = ch
	f.mu.Unlock()
	return ch
}

// holdKeys blocks GetChatKey until the returned channel is closed.
func (f *fakeClient) holdKeys() chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.keyGate = ch
	f.keyEnter = make(chan string, 16)
	f.mu.Unlock()
	return ch
}

func (f *fakeClient) waitEntered(t *testing.T) pageKey {
	t.Helper()
	select {
	case k := <-f.entered:
		return k
	case <-time.After(2 * time.Second):
		t.Fatal("GetMessages not called")
		return pageKey{}
	}
}

func (f *fakeClient) sentRequests() []api.SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.SendMessageRequest(nil), f.sent...)
}

// fakeKeys is a KeyExchange with fixed keys per chat.
type fakeKeys struct {
	mu      sync.Mutex
	keys    map[string][]byte
	errs    map[string]error
	flaky   map[string]int
	forgets int
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{keys: map[string][]byte{}, errs: map[string]error{}, flaky: map[string]int{}}
}

func (k *fakeKeys) ConversationKey(ctx context.Context, chatID string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.flaky[chatID] > 0 {
		k.flaky[chatID]--
		return nil, fmt.Errorf("%w: connection reset", services.ErrKeyFetchFailed)
	}
	if err := k.errs[chatID]; err != nil {
		return nil, err
	}
	key, ok := k.keys[chatID]
	if !ok {
		key = cryptox.NewConversationKey()
		k.keys[chatID] = key
	}
	return append([]byte(nil), key...), nil
}

func (k *fakeKeys) Forget() {
	k.mu.Lock()
	k.forgets++
	k.mu.Unlock()
}

func (k *fakeKeys) key(chatID string) []byte {
	key, _ := k.ConversationKey(context.Background(), chatID)
	return key
}

// failNext makes the next n key lookups for chatID fail transiently.
func (k *fakeKeys) failNext(chatID string, n int) {
	k.mu.Lock()
	k.flaky[chatID] = n
	k.mu.Unlock()
}

func (k *fakeKeys) setErr(chatID string, err error) {
	k.mu.Lock()
	k.errs[chatID] = err
	k.mu.Unlock()
}

// history builds n encrypted messages for chatID with ids prefix0..prefix{n-1}.
func history(t *testing.T, key []byte, chatID, prefix string, n int) []api.Message {
	t.Helper()
	out := make([]api.Message, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = encrypted(t, key, chatID, fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("text %s%d", prefix, i))
		out[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
	}
	return out
}

func encrypted(t *testing.T, key []byte, chatID, id, text string) api.Message {
	t.Helper()
	env, err := cryptox.EncryptMessage(text, key)
	require.NoError(t, err)
	return api.Message{ID: id, ChatID: chatID, SenderID: "bob", CreatedBy: "Bob", Content: env}
}
