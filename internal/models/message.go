package models

import "time"

// MessageType enumerates the supported message kinds.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Message represents a direct message between two users. Delivered, read and
// deleted are one-way flags; a deleted message keeps its row but is excluded
// from listings and search.
type Message struct {
	ID              int64       `db:"id" json:"id"`
	ConversationKey string      `db:"conversation_key" json:"conversation_key"`
	SenderID        string      `db:"sender_id" json:"sender_id"`
	ReceiverID      string      `db:"receiver_id" json:"receiver_id"`
	Content         string      `db:"content" json:"content"`
	MessageType     MessageType `db:"message_type" json:"message_type"`
	AttachmentURL   *string     `db:"attachment_url" json:"attachment_url,omitempty"`
	AttachmentName  *string     `db:"attachment_name" json:"attachment_name,omitempty"`
	AttachmentSize  *int64      `db:"attachment_size" json:"attachment_size,omitempty"`
	ReplyToID       *int64      `db:"reply_to_id" json:"reply_to_id,omitempty"`
	IsDelivered     bool        `db:"is_delivered" json:"is_delivered"`
	DeliveredAt     *time.Time  `db:"delivered_at" json:"delivered_at,omitempty"`
	IsRead          bool        `db:"is_read" json:"is_read"`
	ReadAt          *time.Time  `db:"read_at" json:"read_at,omitempty"`
	IsDeleted       bool        `db:"is_deleted" json:"is_deleted"`
	DeletedAt       *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
}

// Attachment carries the optional file metadata of an image or file message.
type Attachment struct {
	URL  string `json:"url" binding:"required"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ConversationSummary is one entry of a user's conversation list. It is
// derived on demand from messages plus live presence, never persisted.
type ConversationSummary struct {
	ConversationKey   string    `json:"conversation_key"`
	CounterpartID     string    `json:"counterpart_id"`
	CounterpartName   string    `json:"counterpart_name,omitempty"`
	CounterpartAvatar string    `json:"counterpart_avatar,omitempty"`
	CounterpartOnline bool      `json:"counterpart_online"`
	LatestMessage     Message   `json:"latest_message"`
	UnreadCount       int       `json:"unread_count"`
	LatestMessageAt   time.Time `json:"latest_message_at"`
}
