package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/client/keystore"
)

// fakeClient implements client.Client for service tests.
type fakeClient struct {
	mu sync.Mutex

	chatKeys    map[string]string
	chatKeyErr  error
	chatKeyHook func()
	keyCalls    atomic.Int32

	uploaded  []string
	uploadErr error
}

func (f *fakeClient) Close() error                 { return nil }
func (f *fakeClient) SetAccessToken(token string)  {}
func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func (f *fakeClient) Register(ctx context.Context) (*api.RegisterResponse, error) {
	return &api.RegisterResponse{ID: "u1", Token: "t"}, nil
}

func (f *fakeClient) GetChatKey(ctx context.Context, chatID string) (string, error) {
	f.keyCalls.Add(1)
	if f.chatKeyHook != nil {
		f.chatKeyHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chatKeyErr != nil {
		return "", f.chatKeyErr
	}
	return f.chatKeys[chatID], nil
}

func (f *fakeClient) GetMessages(ctx context.Context, chatID string, page, limit int) ([]api.Message, error) {
	return nil, nil
}

func (f *fakeClient) SendMessage(ctx context.Context, req api.SendMessageRequest) (*api.Message, error) {
	return &api.Message{}, nil
}

func (f *fakeClient) UploadPublicKey(ctx context.Context, publicKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = append(f.uploaded, publicKey)
	return nil
}

func (f *fakeClient) CreateChat(ctx context.Context, name string, participants []string) (string, error) {
	return "c1", nil
}

func (f *fakeClient) setChatKeyErr(err error) {
	f.mu.Lock()
	f.chatKeyErr = err
	f.mu.Unlock()
}

// memStore is an in-memory keystore.Store.
type memStore struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func newMemStore() *memStore { return &memStore{keys: map[string][]byte{}} }

func (m *memStore) Store(ctx context.Context, userID string, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[userID] = append([]byte(nil), key...)
	return nil
}

func (m *memStore) Retrieve(ctx context.Context, userID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[userID]
	if !ok {
		return nil, keystore.ErrNotFound
	}
	return append([]byte(nil), k...), nil
}

func (m *memStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, userID)
	return nil
}
