package keystore

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/recochat/internal/dbx"
)

// SQLiteStore implements Store on the key_custody table of the local
// database. It accepts either *sql.DB or *sql.Tx.
type SQLiteStore struct {
	db dbx.DBTX
}

func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Store(ctx context.Context, userID string, privateKey []byte) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if len(privateKey) == 0 {
		return fmt.Errorf("store private key for %s: empty key", userID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO key_custody (name, material, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET material = excluded.material, updated_at = excluded.updated_at
	`, KeyName(userID), base64.StdEncoding.EncodeToString(privateKey))
	if err != nil {
		return fmt.Errorf("failed to store private key[%s]: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) Retrieve(ctx context.Context, userID string) ([]byte, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	var material string
	err := s.db.QueryRowContext(ctx, `SELECT material FROM key_custody WHERE name = ?`, KeyName(userID)).Scan(&material)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve private key[%s]: %w", userID, err)
	}

	key, err := base64.StdEncoding.Strict().DecodeString(material)
	if err != nil {
		return nil, fmt.Errorf("corrupt private key[%s]: %w", userID, err)
	}
	return key, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM key_custody WHERE name = ?`, KeyName(userID)); err != nil {
		return fmt.Errorf("failed to delete private key[%s]: %w", userID, err)
	}
	return nil
}
