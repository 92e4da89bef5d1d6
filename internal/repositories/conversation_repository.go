package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// ConversationRepository supplies the aggregation queries behind a user's
// conversation list. Conversations are derived from messages; there is no
// persisted conversation row.
type ConversationRepository interface {
	LatestPerConversation(ctx context.Context, userID string) ([]models.Message, error)
	UnreadPerConversation(ctx context.Context, userID string) (map[string]int, error)
}

// ConversationRepo is a sqlx-backed ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// LatestPerConversation returns the most recent non-deleted message of every
// conversation the user participates in.
func (r *ConversationRepo) LatestPerConversation(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT DISTINCT ON (conversation_key) `+messageColumns+`
        FROM messages
        WHERE (sender_id=$1 OR receiver_id=$1) AND is_deleted=FALSE
        ORDER BY conversation_key, created_at DESC, id DESC`, userID)
	return msgs, err
}

// UnreadPerConversation returns per-conversation unread counts for messages
// addressed to the user.
func (r *ConversationRepo) UnreadPerConversation(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT conversation_key, COUNT(*) AS unread
        FROM messages
        WHERE receiver_id=$1 AND is_read=FALSE AND is_deleted=FALSE
        GROUP BY conversation_key`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var unread int
		if err := rows.Scan(&key, &unread); err != nil {
			return nil, err
		}
		counts[key] = unread
	}
	return counts, rows.Err()
}
