package chats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/recochat/internal/client/models"
	"github.com/dmitrijs2005/recochat/internal/dbx"
)

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, chat models.Chat) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chats (id, name, last_opened_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN chats.name ELSE excluded.name END,
			last_opened_at = COALESCE(excluded.last_opened_at, chats.last_opened_at)
	`, chat.ID, chat.Name, chat.LastOpenedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert chat[%s]: %w", chat.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Touch(ctx context.Context, id string) error {
	now := r.now().UTC()
	return r.Upsert(ctx, models.Chat{ID: id, LastOpenedAt: &now})
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, last_opened_at FROM chats
		ORDER BY last_opened_at IS NULL, last_opened_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var out []models.Chat
	for rows.Next() {
		var c models.Chat
		var opened sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &opened); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		if opened.Valid {
			t := opened.Time
			c.LastOpenedAt = &t
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat rows: %w", err)
	}
	return out, nil
}
