package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("only the sender may delete a message")
)

// ValidationError rejects a write before any persistence happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

const messageColumns = `id, conversation_key, sender_id, receiver_id, content, message_type,
    attachment_url, attachment_name, attachment_size, reply_to_id,
    is_delivered, delivered_at, is_read, read_at, is_deleted, deleted_at, created_at`

// CreateMessageParams carries the validated input of a send request.
type CreateMessageParams struct {
	SenderID    string
	ReceiverID  string
	Content     string
	MessageType models.MessageType
	Attachment  *models.Attachment
	ReplyToID   *int64
}

// MessageRepository is the durable record of messages and their lifecycle.
type MessageRepository interface {
	Create(ctx context.Context, p CreateMessageParams) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	Page(ctx context.Context, conversationKey string, limit, offset int) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID int64) error
	MarkConversationRead(ctx context.Context, conversationKey, readerID string) (int, time.Time, error)
	SoftDelete(ctx context.Context, messageID int64, requesterID string) error
	Search(ctx context.Context, conversationKey, query string, limit int) ([]models.Message, error)
	UnreadCountForUser(ctx context.Context, userID string) (int, error)
}

// MessageRepo is a sqlx-backed MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create validates and stores a message. The conversation key is derived from
// the participant pair; a reply must reference a message of that same
// conversation.
func (r *MessageRepo) Create(ctx context.Context, p CreateMessageParams) (models.Message, error) {
	if p.SenderID == p.ReceiverID {
		return models.Message{}, &ValidationError{Field: "receiver_id", Reason: "cannot message yourself"}
	}
	if !p.MessageType.Valid() {
		return models.Message{}, &ValidationError{Field: "message_type", Reason: "unknown message type"}
	}
	if p.MessageType == models.MessageTypeText && strings.TrimSpace(p.Content) == "" {
		return models.Message{}, &ValidationError{Field: "content", Reason: "content must not be empty"}
	}

	key := conversation.Key(p.SenderID, p.ReceiverID)

	if p.ReplyToID != nil {
		parent, err := r.GetMessage(ctx, *p.ReplyToID)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) {
				return models.Message{}, &ValidationError{Field: "reply_to_id", Reason: "replied message does not exist"}
			}
			return models.Message{}, err
		}
		if parent.ConversationKey != key {
			return models.Message{}, &ValidationError{Field: "reply_to_id", Reason: "replied message belongs to another conversation"}
		}
	}

	var attachmentURL, attachmentName *string
	var attachmentSize *int64
	if p.Attachment != nil {
		attachmentURL = &p.Attachment.URL
		attachmentName = &p.Attachment.Name
		attachmentSize = &p.Attachment.Size
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages
        (conversation_key, sender_id, receiver_id, content, message_type,
         attachment_url, attachment_name, attachment_size, reply_to_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+messageColumns,
		key, p.SenderID, p.ReceiverID, p.Content, p.MessageType,
		attachmentURL, attachmentName, attachmentSize, p.ReplyToID).
		StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message, including soft-deleted ones.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Page returns a window of non-deleted messages in ascending creation order.
// The query walks the recency index descending and reverses before returning,
// so offset 0 is the most recent page and rendering needs no client re-sort.
func (r *MessageRepo) Page(ctx context.Context, conversationKey string, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_key=$1 AND is_deleted=FALSE
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`, conversationKey, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkDelivered sets the delivered flag. Idempotent: delivering an already
// delivered message is a no-op, and delivered_at is never overwritten.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages
        SET is_delivered=TRUE, delivered_at=NOW()
        WHERE id=$1 AND is_delivered=FALSE`, messageID)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		return nil
	}
	// Distinguish "already delivered" from "no such message".
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, messageID); err != nil {
		return err
	}
	if !exists {
		return ErrMessageNotFound
	}
	return nil
}

// MarkConversationRead marks every unread message addressed to readerID in
// the conversation as read, stamping read_at once. Returns the affected count
// and the stamp; re-reading is a no-op.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationKey, readerID string) (int, time.Time, error) {
	readAt := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE messages
        SET is_read=TRUE, read_at=$3
        WHERE conversation_key=$1 AND receiver_id=$2 AND is_read=FALSE AND is_deleted=FALSE`,
		conversationKey, readerID, readAt)
	if err != nil {
		return 0, readAt, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, readAt, err
	}
	return int(affected), readAt, nil
}

// SoftDelete hides a message without removing the row. Only the original
// sender may delete.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int64, requesterID string) error {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return ErrNotSender
	}
	_, err = r.db.ExecContext(ctx, `UPDATE messages
        SET is_deleted=TRUE, deleted_at=NOW()
        WHERE id=$1 AND is_deleted=FALSE`, messageID)
	return err
}

// Search performs a case-insensitive substring match over non-deleted message
// content within a single conversation.
func (r *MessageRepo) Search(ctx context.Context, conversationKey, query string, limit int) ([]models.Message, error) {
	pattern := "%" + escapeLike(query) + "%"
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_key=$1 AND is_deleted=FALSE AND content ILIKE $2
        ORDER BY created_at DESC, id DESC
        LIMIT $3`, conversationKey, pattern, limit)
	return msgs, err
}

// UnreadCountForUser counts non-deleted unread messages addressed to the user
// across all conversations.
func (r *MessageRepo) UnreadCountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE receiver_id=$1 AND is_read=FALSE AND is_deleted=FALSE`, userID)
	return count, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
