package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/recochat/internal/dbx"
	"github.com/dmitrijs2005/recochat/internal/server/models"
	"github.com/dmitrijs2005/recochat/internal/server/repositories/repomanager"
)

// Postgres implements Storage on top of the PostgreSQL repositories.
type Postgres struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func NewPostgres(db *sql.DB, rm repomanager.RepositoryManager) *Postgres {
	return &Postgres{db: db, rm: rm}
}

// OpenPostgres connects to dsn via pgx, checks the connection and applies
// the schema migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := NewPostgres(db, repomanager.NewPostgresRepositoryManager())
	if err := p.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.rm.RunMigrations(ctx, p.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	return p.rm.Users(p.db).Create(ctx, user)
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	return p.rm.Users(p.db).Get(ctx, id)
}

func (p *Postgres) SetPublicKey(ctx context.Context, userID string, publicKey []byte) error {
	return p.rm.Users(p.db).SetPublicKey(ctx, userID, publicKey)
}

func (p *Postgres) CreateChat(ctx context.Context, chat *models.Chat, members []models.Member) error {
	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := p.rm.Chats(tx)
		if err := repo.Create(ctx, chat); err != nil {
			return err
		}
		for i := range members {
			members[i].ChatID = chat.ID
			if err := repo.AddMember(ctx, &members[i]); err != nil {
				return fmt.Errorf("add member %s: %w", members[i].UserID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) GetMember(ctx context.Context, chatID, userID string) (*models.Member, error) {
	return p.rm.Chats(p.db).GetMember(ctx, chatID, userID)
}

func (p *Postgres) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return p.rm.Chats(p.db).ListForUser(ctx, userID)
}

func (p *Postgres) AddMessage(ctx context.Context, msg *models.Message) error {
	return p.rm.Messages(p.db).Create(ctx, msg)
}

func (p *Postgres) ListMessages(ctx context.Context, chatID string, offset, limit int) ([]models.Message, error) {
	return p.rm.Messages(p.db).ListPage(ctx, chatID, offset, limit)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
