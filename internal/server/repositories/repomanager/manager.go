package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/recochat/internal/dbx"
	"github.com/dmitrijs2005/recochat/internal/server/repositories/chats"
	"github.com/dmitrijs2005/recochat/internal/server/repositories/messages"
	"github.com/dmitrijs2005/recochat/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a connection or a
// transaction, so callers can compose them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Chats(db dbx.DBTX) chats.Repository
	Messages(db dbx.DBTX) messages.Repository
}
