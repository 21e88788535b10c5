// Package messages stores encrypted chat messages in PostgreSQL.
package messages

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/recochat/internal/dbx"
	"github.com/dmitrijs2005/recochat/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts msg and fills Seq and CreatedAt from the database.
func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message) error {
	query :=
		`INSERT INTO messages (id, chat_id, sender_id, created_by, content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		msg.ID, msg.ChatID, msg.SenderID, msg.CreatedBy, msg.Content).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListPage(ctx context.Context, chatID string, offset, limit int) ([]models.Message, error) {
	query :=
		`SELECT seq, id, chat_id, sender_id, created_by, content, created_at FROM (
		     SELECT seq, id, chat_id, sender_id, created_by, content, created_at
		     FROM messages
		     WHERE chat_id = $1
		     ORDER BY seq DESC
		     LIMIT $2 OFFSET $3
		 ) page
		 ORDER BY seq ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.Message, 0, limit)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.ChatID, &m.SenderID, &m.CreatedBy, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
