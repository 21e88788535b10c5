// Package chats stores chats and their members in PostgreSQL.
package chats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/dbx"
	"github.com/dmitrijs2005/recochat/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, chat *models.Chat) error {
	query :=
		`INSERT INTO chats (id, name, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, chat.ID, chat.Name, chat.CreatedBy).Scan(&chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, member *models.Member) error {
	query :=
		`INSERT INTO chat_members (chat_id, user_id, encrypted_key)
		 VALUES ($1, $2, $3)
		 `

	_, err := r.db.ExecContext(ctx, query, member.ChatID, member.UserID, member.EncryptedKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetMember(ctx context.Context, chatID, userID string) (*models.Member, error) {
	query :=
		`SELECT chat_id, user_id, encrypted_key FROM chat_members
		 WHERE chat_id = $1 AND user_id = $2
		 `

	m := &models.Member{}
	err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&m.ChatID, &m.UserID, &m.EncryptedKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

// ListForUser returns the chats userID is a member of, newest first.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	query :=
		`SELECT c.id, c.name, c.created_by, c.created_at
		 FROM chats c JOIN chat_members m ON m.chat_id = c.id
		 WHERE m.user_id = $1
		 ORDER BY c.created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Chat
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
