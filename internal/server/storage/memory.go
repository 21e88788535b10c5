package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/server/models"
)

type memberKey struct{ chatID, userID string }

// Memory keeps everything in process memory. Data is lost on restart.
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]models.User
	chats    map[string]models.Chat
	members  map[memberKey]models.Member
	messages map[string][]models.Message
	seq      int64
}

func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		users:    make(map[string]models.User),
		chats:    make(map[string]models.Chat),
		members:  make(map[memberKey]models.Member),
		messages: make(map[string][]models.Message),
	}
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return common.ErrorAlreadyExists
	}
	user.CreatedAt = m.now().UTC()
	u := *user
	u.PublicKey = slices.Clone(user.PublicKey)
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.PublicKey = slices.Clone(u.PublicKey)
	return &u, nil
}

func (m *Memory) SetPublicKey(_ context.Context, userID string, publicKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.PublicKey = slices.Clone(publicKey)
	m.users[userID] = u
	return nil
}

func (m *Memory) CreateChat(_ context.Context, chat *models.Chat, members []models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[chat.ID]; ok {
		return common.ErrorAlreadyExists
	}
	seen := make(map[string]struct{}, len(members))
	for _, mb := range members {
		if _, ok := m.users[mb.UserID]; !ok {
			return common.ErrorNotFound
		}
		if _, dup := seen[mb.UserID]; dup {
			return common.ErrorAlreadyExists
		}
		seen[mb.UserID] = struct{}{}
	}

	chat.CreatedAt = m.now().UTC()
	m.chats[chat.ID] = *chat
	for _, mb := range members {
		mb.ChatID = chat.ID
		mb.EncryptedKey = slices.Clone(mb.EncryptedKey)
		m.members[memberKey{chat.ID, mb.UserID}] = mb
	}
	return nil
}

func (m *Memory) GetMember(_ context.Context, chatID, userID string) (*models.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mb, ok := m.members[memberKey{chatID, userID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	mb.EncryptedKey = slices.Clone(mb.EncryptedKey)
	return &mb, nil
}

func (m *Memory) ListChats(_ context.Context, userID string) ([]models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Chat
	for k := range m.members {
		if k.userID == userID {
			out = append(out, m.chats[k.chatID])
		}
	}
	slices.SortFunc(out, func(a, b models.Chat) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) AddMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[msg.ChatID]; !ok {
		return common.ErrorNotFound
	}
	m.seq++
	msg.Seq = m.seq
	msg.CreatedAt = m.now().UTC()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], *msg)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, chatID string, offset, limit int) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.messages[chatID]
	end := len(all) - offset
	if end <= 0 || limit <= 0 {
		return []models.Message{}, nil
	}
	start := max(end-limit, 0)
	return slices.Clone(all[start:end]), nil
}

func (m *Memory) Close() error { return nil }

