package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messageTestColumns = []string{
	"id", "conversation_key", "sender_id", "receiver_id", "content", "message_type",
	"attachment_url", "attachment_name", "attachment_size", "reply_to_id",
	"is_delivered", "delivered_at", "is_read", "read_at", "is_deleted", "deleted_at", "created_at",
}

func newSQLRepo(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMessageRepo(sqlx.NewDb(db, "sqlmock")), mock
}

func plainTextRow(rows *sqlmock.Rows, id int64, sender, receiver, content string, createdAt time.Time) *sqlmock.Rows {
	key := "alice:bob"
	return rows.AddRow(id, key, sender, receiver, content, "text",
		nil, nil, nil, nil, false, nil, false, nil, false, nil, createdAt)
}

func TestPageReturnsAscendingCreationOrder(t *testing.T) {
	repo, mock := newSQLRepo(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// The store hands back the recency walk: newest first. Senders alternate
	// between both participants; the soft-deleted middle message never leaves
	// the store because the query filters on is_deleted.
	rows := sqlmock.NewRows(messageTestColumns)
	rows = plainTextRow(rows, 4, "bob", "alice", "latest reply", base.Add(3*time.Minute))
	rows = plainTextRow(rows, 2, "bob", "alice", "second", base.Add(time.Minute))
	rows = plainTextRow(rows, 1, "alice", "bob", "first", base)

	mock.ExpectQuery(`(?s)SELECT .+ FROM messages\s+WHERE conversation_key=\$1 AND is_deleted=FALSE\s+ORDER BY created_at DESC, id DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("alice:bob", 50, 0).
		WillReturnRows(rows)

	msgs, err := repo.Page(context.Background(), "alice:bob", 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// Ascending creation order for rendering, no client re-sort needed.
	assert.Equal(t, []int64{1, 2, 4}, []int64{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	assert.Equal(t, "alice", msgs[0].SenderID)
	assert.Equal(t, "bob", msgs[1].SenderID)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[2].CreatedAt))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPageEmptyConversation(t *testing.T) {
	repo, mock := newSQLRepo(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM messages\s+WHERE conversation_key=\$1 AND is_deleted=FALSE`).
		WithArgs("alice:bob", 50, 0).
		WillReturnRows(sqlmock.NewRows(messageTestColumns))

	msgs, err := repo.Page(context.Background(), "alice:bob", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	require.NoError(t, mock.ExpectationsWereMet())
}

const markDeliveredExpr = `(?s)UPDATE messages\s+SET is_delivered=TRUE, delivered_at=NOW\(\)\s+WHERE id=\$1 AND is_delivered=FALSE`

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	repo, mock := newSQLRepo(t)

	mock.ExpectExec(markDeliveredExpr).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkDelivered(context.Background(), 7))

	// Second delivery matches no rows; the message exists, so this is a
	// no-op rather than an error and delivered_at stays untouched.
	mock.ExpectExec(markDeliveredExpr).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	require.NoError(t, repo.MarkDelivered(context.Background(), 7))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeliveredUnknownMessage(t *testing.T) {
	repo, mock := newSQLRepo(t)

	mock.ExpectExec(markDeliveredExpr).
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.MarkDelivered(context.Background(), 404)
	require.ErrorIs(t, err, ErrMessageNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteRejectsNonSender(t *testing.T) {
	repo, mock := newSQLRepo(t)

	rows := sqlmock.NewRows(messageTestColumns)
	rows = plainTextRow(rows, 4, "alice", "bob", "mine", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	mock.ExpectQuery(`(?s)SELECT .+ FROM messages WHERE id=\$1`).
		WithArgs(int64(4)).
		WillReturnRows(rows)

	// No UPDATE is expected: the ownership check fails first.
	err := repo.SoftDelete(context.Background(), 4, "bob")
	require.ErrorIs(t, err, ErrNotSender)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkConversationReadReportsAffectedCount(t *testing.T) {
	repo, mock := newSQLRepo(t)

	mock.ExpectExec(`(?s)UPDATE messages\s+SET is_read=TRUE, read_at=\$3\s+WHERE conversation_key=\$1 AND receiver_id=\$2 AND is_read=FALSE AND is_deleted=FALSE`).
		WithArgs("alice:bob", "bob", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, readAt, err := repo.MarkConversationRead(context.Background(), "alice:bob", "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.False(t, readAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
