package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/recochat/internal/client/keystore"
	"github.com/dmitrijs2005/recochat/internal/client/storage"
	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestProvision_StoresPrivateAndUploadsPublic(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{}
	p := NewProvisioner(fc, db, "alice", logging.Discard())
	ctx := context.Background()

	ok, err := p.IsProvisioned(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, p.Provision(ctx))

	private, err := keystore.NewSQLiteStore(db).Retrieve(ctx, "alice")
	require.NoError(t, err)
	pub, err := cryptox.PublicKeyFromPrivate(private)
	require.NoError(t, err)

	require.Len(t, fc.uploaded, 1)
	assert.Equal(t, cryptox.EncodeKey(pub), fc.uploaded[0])

	ok, err = p.IsProvisioned(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProvision_UploadFailureKeepsPreviousKey(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	store := keystore.NewSQLiteStore(db)
	require.NoError(t, store.Store(ctx, "alice", []byte("previous-private-key-material!!!")))

	fc := &fakeClient{uploadErr: errors.New("offline")}
	p := NewProvisioner(fc, db, "alice", logging.Discard())

	err := p.Provision(ctx)
	require.ErrorContains(t, err, "upload public key")

	got, err := store.Retrieve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("previous-private-key-material!!!"), got)
}

func TestProvision_UploadFailureLeavesDeviceUnprovisioned(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{uploadErr: errors.New("offline")}
	p := NewProvisioner(fc, db, "alice", logging.Discard())

	require.Error(t, p.Provision(context.Background()))

	ok, err := p.IsProvisioned(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureProvisioned_OnlyOnce(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{}
	p := NewProvisioner(fc, db, "alice", logging.Discard())
	ctx := context.Background()

	created, err := p.EnsureProvisioned(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = p.EnsureProvisioned(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Len(t, fc.uploaded, 1)
}

func TestProvisionedKeyOpensWrappedConversationKey(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{}
	ctx := context.Background()
	require.NoError(t, NewProvisioner(fc, db, "alice", logging.Discard()).Provision(ctx))

	pub, err := cryptox.DecodeKey(fc.uploaded[0])
	require.NoError(t, err)
	chatKey := cryptox.NewConversationKey()
	wrapped, err := cryptox.WrapKey(chatKey, pub)
	require.NoError(t, err)
	fc.chatKeys = map[string]string{"c1": cryptox.EncodeKey(wrapped)}

	kx := NewKeyExchange(fc, keystore.NewSQLiteStore(db), "alice", logging.Discard())
	got, err := kx.ConversationKey(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, chatKey, got)
}

func TestRevoke_RemovesKeyFromDevice(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{}
	p := NewProvisioner(fc, db, "alice", logging.Discard())
	ctx := context.Background()

	require.NoError(t, p.Provision(ctx))
	require.NoError(t, p.Revoke(ctx))
	require.NoError(t, p.Revoke(ctx))

	ok, err := p.IsProvisioned(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = keystore.NewSQLiteStore(db).Retrieve(ctx, "alice")
	require.ErrorIs(t, err, keystore.ErrNotFound)
}
