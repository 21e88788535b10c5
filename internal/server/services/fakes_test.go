package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/dmitrijs2005/recochat/internal/server/config"
	"github.com/dmitrijs2005/recochat/internal/server/models"
	"github.com/dmitrijs2005/recochat/internal/server/storage"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store down")

// failingStore wraps a storage and fails the selected operations.
type failingStore struct {
	storage.Storage
	failCreateUser, failSetKey, failGetUser, failCreateChat, failGetMember, failAdd, failList bool
}

func (f *failingStore) CreateUser(ctx context.Context, u *models.User) error {
	if f.failCreateUser {
		return errStore
	}
	return f.Storage.CreateUser(ctx, u)
}

func (f *failingStore) SetPublicKey(ctx context.Context, id string, k []byte) error {
	if f.failSetKey {
		return errStore
	}
	return f.Storage.SetPublicKey(ctx, id, k)
}

func (f *failingStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if f.failGetUser {
		return nil, errStore
	}
	return f.Storage.GetUser(ctx, id)
}

func (f *failingStore) CreateChat(ctx context.Context, c *models.Chat, m []models.Member) error {
	if f.failCreateChat {
		return errStore
	}
	return f.Storage.CreateChat(ctx, c, m)
}

func (f *failingStore) GetMember(ctx context.Context, chatID, userID string) (*models.Member, error) {
	if f.failGetMember {
		return nil, errStore
	}
	return f.Storage.GetMember(ctx, chatID, userID)
}

func (f *failingStore) AddMessage(ctx context.Context, m *models.Message) error {
	if f.failAdd {
		return errStore
	}
	return f.Storage.AddMessage(ctx, m)
}

func (f *failingStore) ListMessages(ctx context.Context, chatID string, offset, limit int) ([]models.Message, error) {
	if f.failList {
		return nil, errStore
	}
	return f.Storage.ListMessages(ctx, chatID, offset, limit)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (p *recordingPublisher) Publish(m models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
}

func (p *recordingPublisher) published() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.msgs...)
}

func testConfig() *config.Config {
	return &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour}
}

// member is a registered user holding an uploaded identity.
type member struct {
	id       string
	identity *cryptox.Identity
}

type relayFixture struct {
	store *failingStore
	users *UserService
	chats *ChatService
	pub   *recordingPublisher
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	store := &failingStore{Storage: storage.NewMemory()}
	pub := &recordingPublisher{}
	return &relayFixture{
		store: store,
		users: NewUserService(store, testConfig()),
		chats: NewChatService(store, pub, logging.Discard()),
		pub:   pub,
	}
}

func (f *relayFixture) register(t *testing.T, withKey bool) member {
	t.Helper()
	reg, err := f.users.Register(context.Background())
	require.NoError(t, err)

	m := member{id: reg.UserID}
	if withKey {
		id, err := cryptox.GenerateIdentity()
		require.NoError(t, err)
		require.NoError(t, f.users.UploadPublicKey(context.Background(), reg.UserID, id.PublicKey))
		m.identity = id
	}
	return m
}
