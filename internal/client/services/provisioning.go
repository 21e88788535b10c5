package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/recochat/internal/client/client"
	"github.com/dmitrijs2005/recochat/internal/client/keystore"
	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/dmitrijs2005/recochat/internal/dbx"
	"github.com/dmitrijs2005/recochat/internal/logging"
)

// Provisioner manages the device's identity key pair.
//
// Contract:
//   - IsProvisioned: whether a private key is stored for the user.
//   - Provision: generate a new key pair, store the private key and upload
//     the public key. Replaces any existing pair; conversation keys wrapped
//     for the old public key stop opening until the server re-wraps them.
//   - EnsureProvisioned: Provision only when no key is stored yet.
//   - Revoke: remove the stored private key from this device (logout).
type Provisioner interface {
	IsProvisioned(ctx context.Context) (bool, error)
	Provision(ctx context.Context) error
	EnsureProvisioned(ctx context.Context) (bool, error)
	Revoke(ctx context.Context) error
}

type provisioner struct {
	client client.Client
	db     *sql.DB
	userID string
	logger logging.Logger
}

// NewProvisioner returns a Provisioner storing keys in db's key custody table.
func NewProvisioner(c client.Client, db *sql.DB, userID string, logger logging.Logger) Provisioner {
	return &provisioner{client: c, db: db, userID: userID, logger: logger.With("component", "provisioner")}
}

func (p *provisioner) store(db dbx.DBTX) keystore.Store {
	return keystore.NewSQLiteStore(db)
}

func (p *provisioner) IsProvisioned(ctx context.Context) (bool, error) {
	_, err := p.store(p.db).Retrieve(ctx, p.userID)
	if errors.Is(err, keystore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Provision stores the new private key and uploads the public key in one
// local transaction: if the upload fails the previous key is kept.
func (p *provisioner) Provision(ctx context.Context) error {
	id, err := cryptox.GenerateIdentity()
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := p.store(tx).Store(ctx, p.userID, id.PrivateKey); err != nil {
			return err
		}
		if err := p.client.UploadPublicKey(ctx, cryptox.EncodeKey(id.PublicKey)); err != nil {
			return fmt.Errorf("upload public key: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Info(ctx, "identity key provisioned", "user_id", p.userID)
	return nil
}

func (p *provisioner) EnsureProvisioned(ctx context.Context) (bool, error) {
	ok, err := p.IsProvisioned(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := p.Provision(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (p *provisioner) Revoke(ctx context.Context) error {
	if err := p.store(p.db).Delete(ctx, p.userID); err != nil {
		return err
	}
	p.logger.Info(ctx, "identity key removed from device", "user_id", p.userID)
	return nil
}
