package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/recochat/internal/client/client"
	"github.com/dmitrijs2005/recochat/internal/client/keystore"
	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"golang.org/x/sync/singleflight"
)

// KeyExchange yields unwrapped conversation keys.
//
// Contract:
//   - ConversationKey: return the AES key of a chat. A key is fetched and
//     unwrapped at most once per chat for the lifetime of the KeyExchange
//     (until Forget); concurrent callers share one in-flight fetch.
//   - Forget: drop and wipe every cached key, e.g. on conversation switch.
type KeyExchange interface {
	ConversationKey(ctx context.Context, chatID string) ([]byte, error)
	Forget()
}

type keyExchange struct {
	client client.Client
	keys   keystore.Store
	userID string
	logger logging.Logger

	group singleflight.Group

	mu     sync.Mutex
	epoch  uint64
	cache  map[string][]byte
	broken map[string]error
}

// NewKeyExchange returns a KeyExchange for userID. Keys live only in memory.
func NewKeyExchange(c client.Client, keys keystore.Store, userID string, logger logging.Logger) KeyExchange {
	return &keyExchange{
		client: c,
		keys:   keys,
		userID: userID,
		logger: logger.With("component", "key_exchange"),
		cache:  make(map[string][]byte),
		broken: make(map[string]error),
	}
}

func (k *keyExchange) ConversationKey(ctx context.Context, chatID string) ([]byte, error) {
	if key, err, ok := k.lookup(chatID); ok {
		return key, err
	}

	v, err, _ := k.group.Do(chatID, func() (any, error) {
		// a flight that finished between lookup and Do already cached it
		if key, err, ok := k.lookup(chatID); ok {
			return key, err
		}
		k.mu.Lock()
		epoch := k.epoch
		k.mu.Unlock()
		return k.fetch(ctx, chatID, epoch)
	})
	if err != nil {
		return nil, err
	}
	// v is shared by every waiter of the flight and never cached, so
	// Forget cannot wipe it.
	return clone(v.([]byte)), nil
}

// clone hands callers their own copy; Forget wipes the cached one.
func clone(key []byte) []byte {
	if key == nil {
		return nil
	}
	return append([]byte(nil), key...)
}

// lookup returns a copy of the cached key, taken under k.mu.
func (k *keyExchange) lookup(chatID string) ([]byte, error, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if key, ok := k.cache[chatID]; ok {
		return clone(key), nil, true
	}
	if err, ok := k.broken[chatID]; ok {
		return nil, err, true
	}
	return nil, nil, false
}

// fetch performs one network round trip and unwrap, then caches the result
// unless Forget ran in the meantime.
func (k *keyExchange) fetch(ctx context.Context, chatID string, epoch uint64) ([]byte, error) {
	wrappedB64, err := k.client.GetChatKey(ctx, chatID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		k.logger.Warn(ctx, "conversation key fetch failed", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrKeyFetchFailed, err)
	}

	private, err := k.keys.Retrieve(ctx, k.userID)
	if err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return nil, ErrKeyNotProvisioned
		}
		return nil, fmt.Errorf("read private key: %w", err)
	}
	defer common.WipeByteArray(private)

	key, err := unwrap(wrappedB64, private)
	if err != nil {
		k.logger.Error(ctx, "conversation key unwrap failed", "chat_id", chatID, "error", err)
		err = fmt.Errorf("%w: %v", ErrKeyUnwrapFailed, err)
		k.remember(chatID, epoch, nil, err)
		return nil, err
	}

	k.remember(chatID, epoch, key, nil)
	k.logger.Debug(ctx, "conversation key ready", "chat_id", chatID)
	return key, nil
}

func unwrap(wrappedB64 string, private []byte) ([]byte, error) {
	wrapped, err := cryptox.DecodeKey(wrappedB64)
	if err != nil {
		return nil, err
	}
	return cryptox.UnwrapKey(wrapped, private)
}

func (k *keyExchange) remember(chatID string, epoch uint64, key []byte, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.epoch != epoch {
		return
	}
	if err != nil {
		k.broken[chatID] = err
		return
	}
	k.cache[chatID] = clone(key)
}

func (k *keyExchange) Forget() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for id, key := range k.cache {
		common.WipeByteArray(key)
		delete(k.cache, id)
	}
	k.broken = make(map[string]error)
	k.epoch++
}
