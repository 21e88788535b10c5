package chats

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

const (
	createQ    = `(?s)^INSERT\s+INTO\s+chats\s*\(id,\s*name,\s*created_by\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+created_at\s*$`
	addMemberQ = `(?s)^INSERT\s+INTO\s+chat_members\s*\(chat_id,\s*user_id,\s*encrypted_key\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*$`
	getMemberQ = `(?s)^SELECT\s+chat_id,\s*user_id,\s*encrypted_key\s+FROM\s+chat_members\s+WHERE\s+chat_id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s*$`
	listQ      = `(?s)^SELECT\s+c\.id,.*FROM\s+chats\s+c\s+JOIN\s+chat_members\s+m.*WHERE\s+m\.user_id\s*=\s*\$1.*ORDER\s+BY\s+c\.created_at\s+DESC\s*$`
)

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(createQ).
		WithArgs("c-1", "team", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(at))

	c := &models.Chat{ID: "c-1", Name: "team", CreatedBy: "u-1"}
	require.NoError(t, repo.Create(context.Background(), c))
	assert.True(t, c.CreatedAt.Equal(at))

	mock.ExpectQuery(createQ).WillReturnError(errors.New("down"))
	assert.ErrorContains(t, repo.Create(context.Background(), c), "db error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMember(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	m := &models.Member{ChatID: "c-1", UserID: "u-1", EncryptedKey: []byte("sealed")}

	mock.ExpectExec(addMemberQ).
		WithArgs("c-1", "u-1", []byte("sealed")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AddMember(context.Background(), m))

	mock.ExpectExec(addMemberQ).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	assert.ErrorIs(t, repo.AddMember(context.Background(), m), common.ErrorAlreadyExists)

	mock.ExpectExec(addMemberQ).WillReturnError(errors.New("fk"))
	err := repo.AddMember(context.Background(), m)
	assert.ErrorContains(t, err, "db error")
	assert.NotErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestGetMember(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(getMemberQ).
		WithArgs("c-1", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"chat_id", "user_id", "encrypted_key"}).AddRow("c-1", "u-1", []byte("sealed")))
	got, err := repo.GetMember(context.Background(), "c-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, &models.Member{ChatID: "c-1", UserID: "u-1", EncryptedKey: []byte("sealed")}, got)

	mock.ExpectQuery(getMemberQ).WithArgs("c-1", "u-2").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetMember(context.Background(), "c-1", "u-2")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(getMemberQ).WithArgs("c-1", "u-3").WillReturnError(errors.New("boom"))
	_, err = repo.GetMember(context.Background(), "c-1", "u-3")
	assert.ErrorContains(t, err, "db error")
}

func TestListForUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now().UTC()
	mock.ExpectQuery(listQ).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_by", "created_at"}).
			AddRow("c-2", "b", "u-1", now).
			AddRow("c-1", "a", "u-2", now.Add(-time.Hour)))

	got, err := repo.ListForUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c-2", got[0].ID)
	assert.Equal(t, "u-2", got[1].CreatedBy)

	mock.ExpectQuery(listQ).WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_by", "created_at"}).
			AddRow("c-1", "a", "u-1", now).
			RowError(0, errors.New("row broke")))
	_, err = repo.ListForUser(context.Background(), "u-1")
	assert.ErrorContains(t, err, "db error")
}
