package messages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/recochat/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ = `(?s)^INSERT\s+INTO\s+messages\s*\(id,\s*chat_id,\s*sender_id,\s*created_by,\s*content\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+seq,\s*created_at\s*$`
	pageQ   = `(?s)^SELECT\s+seq,.*FROM\s+\(.*WHERE\s+chat_id\s*=\s*\$1\s+ORDER\s+BY\s+seq\s+DESC\s+LIMIT\s+\$2\s+OFFSET\s+\$3\s*\)\s*page\s+ORDER\s+BY\s+seq\s+ASC\s*$`
)

var cols = []string{"seq", "id", "chat_id", "sender_id", "created_by", "content", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	at := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(insertQ).
		WithArgs("m-1", "c-1", "u-1", "Alice", "{envelope}").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(17), at))

	m := &models.Message{ID: "m-1", ChatID: "c-1", SenderID: "u-1", CreatedBy: "Alice", Content: "{envelope}"}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.Equal(t, int64(17), m.Seq)
	assert.True(t, m.CreatedAt.Equal(at))

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("down"))
	assert.ErrorContains(t, repo.Create(context.Background(), m), "db error: down")
}

func TestListPage(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now().UTC()
	mock.ExpectQuery(pageQ).
		WithArgs("c-1", 100, 200).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(5), "m-5", "c-1", "u-1", "A", "x", now).
			AddRow(int64(6), "m-6", "c-1", "u-2", "B", "y", now))

	got, err := repo.ListPage(context.Background(), "c-1", 200, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"m-5", "m-6"}, []string{got[0].ID, got[1].ID})
	assert.Equal(t, "B", got[1].CreatedBy)
}

func TestListPage_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(pageQ).WithArgs("c-1", 10, 0).WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.ListPage(context.Background(), "c-1", 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListPage_Errors(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(pageQ).WillReturnError(errors.New("down"))
	_, err := repo.ListPage(context.Background(), "c-1", 0, 10)
	assert.ErrorContains(t, err, "db error")

	mock.ExpectQuery(pageQ).WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(1)))
	_, err = repo.ListPage(context.Background(), "c-1", 0, 10)
	assert.ErrorContains(t, err, "db error")
}
