package models

import (
	"encoding/json"
	"time"
)

// Event is one of the realtime events pushed to connected clients. Each wire
// event name has exactly one payload struct, so producers and consumers
// cannot drift apart on payload shape.
type Event interface {
	EventName() string
}

// MessageNew is pushed to the receiver when a message is persisted.
type MessageNew struct {
	Message Message `json:"message"`
}

func (MessageNew) EventName() string { return "message:new" }

// MessageSent echoes a persisted message back to the sender. TempID carries
// the client-supplied correlation id so optimistic UI can reconcile.
type MessageSent struct {
	TempID  string  `json:"temp_id,omitempty"`
	Message Message `json:"message"`
}

func (MessageSent) EventName() string { return "message:sent" }

// MessagesRead tells the counterpart that their messages were read.
type MessagesRead struct {
	ConversationKey string    `json:"conversation_key"`
	ReadBy          string    `json:"read_by"`
	ReadAt          time.Time `json:"read_at"`
	Count           int       `json:"count"`
}

func (MessagesRead) EventName() string { return "messages:read" }

// MessageDeleted tells the counterpart that a message was soft-deleted.
type MessageDeleted struct {
	MessageID int64 `json:"message_id"`
}

func (MessageDeleted) EventName() string { return "message:deleted" }

// UserOnline announces a presence transition to online.
type UserOnline struct {
	UserID string `json:"user_id"`
}

func (UserOnline) EventName() string { return "user:online" }

// UserOffline announces a presence transition to offline.
type UserOffline struct {
	UserID   string    `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
}

func (UserOffline) EventName() string { return "user:offline" }

// UserTyping relays an ephemeral keystroke signal. Never persisted.
type UserTyping struct {
	UserID          string `json:"user_id"`
	ConversationKey string `json:"conversation_key"`
	IsTyping        bool   `json:"is_typing"`
}

func (UserTyping) EventName() string { return "user:typing" }

// Envelope is the wire frame written to websocket clients and carried across
// the event bus. An empty To means broadcast; Exclude names a user skipped by
// a broadcast (the one whose state change is being announced).
type Envelope struct {
	To      string          `json:"to,omitempty"`
	Exclude string          `json:"exclude,omitempty"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// NewEnvelope wraps a typed event for delivery.
func NewEnvelope(to, exclude string, ev Event) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{To: to, Exclude: exclude, Event: ev.EventName(), Data: data}, nil
}
