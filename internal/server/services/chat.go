package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/dmitrijs2005/recochat/internal/server/models"
	"github.com/dmitrijs2005/recochat/internal/server/storage"
	"github.com/google/uuid"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
	MaxContentSize  = 64 << 10
)

// Membership answers membership questions straight from storage. The
// realtime hub uses it to authorize joinChat.
type Membership struct {
	store storage.Storage
}

func NewMembership(store storage.Storage) *Membership {
	return &Membership{store: store}
}

// IsMember reports whether userID belongs to chatID.
func (m *Membership) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	_, err := m.store.GetMember(ctx, chatID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("error loading membership: %w", err)
	}
}

// Publisher fans stored messages out to realtime subscribers.
type Publisher interface {
	Publish(msg models.Message)
}

// ChatService creates chats with their conversation keys and relays
// encrypted messages between members. The relay only ever handles sealed
// conversation keys and ciphertext envelopes.
type ChatService struct {
	store  storage.Storage
	pub    Publisher
	logger logging.Logger
	newID  func() string
}

func NewChatService(store storage.Storage, pub Publisher, logger logging.Logger) *ChatService {
	return &ChatService{store: store, pub: pub, logger: logger, newID: uuid.NewString}
}

// CreateChat creates a chat owned by creatorID with the given participants.
// The creator is always a member. A fresh conversation key is sealed to the
// public key of every member and discarded afterwards.
func (s *ChatService) CreateChat(ctx context.Context, creatorID, name string, participants []string) (*models.Chat, error) {
	memberIDs := uniqueMembers(creatorID, participants)

	key := cryptox.NewConversationKey()
	defer common.WipeByteArray(key)

	members := make([]models.Member, 0, len(memberIDs))
	for _, id := range memberIDs {
		user, err := s.store.GetUser(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, fmt.Errorf("%w: unknown participant %s", common.ErrorValidation, id)
			}
			return nil, fmt.Errorf("error loading participant %s: %w", id, err)
		}
		if len(user.PublicKey) == 0 {
			return nil, fmt.Errorf("%w: participant %s has no public key", common.ErrorValidation, id)
		}

		wrapped, err := cryptox.WrapKey(key, user.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("error wrapping key for %s: %w", id, err)
		}
		members = append(members, models.Member{UserID: id, EncryptedKey: wrapped})
	}

	chat := &models.Chat{ID: s.newID(), Name: strings.TrimSpace(name), CreatedBy: creatorID}
	if err := s.store.CreateChat(ctx, chat, members); err != nil {
		return nil, fmt.Errorf("error creating chat: %w", err)
	}

	s.logger.Info(ctx, "chat created", "chat_id", chat.ID, "members", len(members))
	return chat, nil
}

// ListChats returns the chats userID belongs to.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing chats: %w", err)
	}
	return chats, nil
}

// GetKey returns the conversation key of chatID sealed for userID.
// Non-members get common.ErrorNotFound.
func (s *ChatService) GetKey(ctx context.Context, chatID, userID string) ([]byte, error) {
	member, err := s.member(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	return member.EncryptedKey, nil
}

// ListMessages returns page (1-based) of chatID's history: page 1 holds
// the newest messages, and each page is ordered oldest first. A limit of
// zero selects DefaultPageSize.
func (s *ChatService) ListMessages(ctx context.Context, chatID, userID string, page, limit int) ([]models.Message, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", common.ErrorValidation)
	}
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must be >= 0", common.ErrorValidation)
	case limit == 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	if _, err := s.member(ctx, chatID, userID); err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessages(ctx, chatID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return msgs, nil
}

// SendMessage stores an encrypted message from userID and publishes it to
// the chat's realtime subscribers. senderID, when set, must equal userID.
// An empty createdBy defaults to the user id.
func (s *ChatService) SendMessage(ctx context.Context, userID, chatID, senderID, content, createdBy string) (*models.Message, error) {
	if senderID != "" && senderID != userID {
		return nil, fmt.Errorf("%w: sender does not match token", common.ErrorForbidden)
	}
	if chatID == "" || content == "" {
		return nil, fmt.Errorf("%w: chatId and content are required", common.ErrorValidation)
	}
	if len(content) > MaxContentSize {
		return nil, fmt.Errorf("%w: content exceeds %d bytes", common.ErrorValidation, MaxContentSize)
	}

	if _, err := s.member(ctx, chatID, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: not a member of %s", common.ErrorForbidden, chatID)
		}
		return nil, err
	}

	if createdBy == "" {
		createdBy = userID
	}
	msg := &models.Message{
		ID:        s.newID(),
		ChatID:    chatID,
		SenderID:  userID,
		CreatedBy: createdBy,
		Content:   content,
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("error storing message: %w", err)
	}

	s.logger.Debug(ctx, "message stored", "chat_id", chatID, "message_id", msg.ID)
	if s.pub != nil {
		s.pub.Publish(*msg)
	}
	return msg, nil
}

func (s *ChatService) member(ctx context.Context, chatID, userID string) (*models.Member, error) {
	m, err := s.store.GetMember(ctx, chatID, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: chat %s", common.ErrorNotFound, chatID)
		}
		return nil, fmt.Errorf("error loading membership: %w", err)
	}
	return m, nil
}

// uniqueMembers returns creatorID followed by the distinct, non-empty
// participants in their original order.
func uniqueMembers(creatorID string, participants []string) []string {
	seen := map[string]struct{}{creatorID: {}}
	out := []string{creatorID}
	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
