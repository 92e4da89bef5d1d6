package notifications

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"messaging-service/internal/models"
	"messaging-service/internal/rabbitmq"
)

// RoutingKey is the topic under which message notification records are
// published for the downstream push collaborator.
const RoutingKey = "notifications.messages"

// Envelope is the notification record consumed by the push pipeline. The
// messaging core only creates the record; delivery to devices is entirely the
// collaborator's problem.
type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	RequestID     string `json:"request_id,omitempty"`
	RecipientID   string `json:"recipient_id"`
	SenderID      string `json:"sender_id"`
	MessageID     int64  `json:"message_id"`
	MessageType   string `json:"message_type"`
	Preview       string `json:"preview"`
}

// Notifier creates notification records. All failures are logged and
// swallowed; the originating request never fails over a notification.
type Notifier struct {
	publisher rabbitmq.Publisher
	service   string
}

// NewNotifier constructs a Notifier.
func NewNotifier(publisher rabbitmq.Publisher, service string) *Notifier {
	return &Notifier{publisher: publisher, service: service}
}

const previewLimit = 120

// MessageReceived records that a message reached its recipient's inbox.
func (n *Notifier) MessageReceived(ctx context.Context, msg models.Message, requestID string) {
	if n == nil || n.publisher == nil {
		return
	}

	preview := msg.Content
	if len(preview) > previewLimit {
		// Back off to a rune boundary so the cut never produces invalid UTF-8.
		cut := previewLimit
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}

	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     "message_received",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       n.service,
		RequestID:     requestID,
		RecipientID:   msg.ReceiverID,
		SenderID:      msg.SenderID,
		MessageID:     msg.ID,
		MessageType:   string(msg.MessageType),
		Preview:       preview,
	}

	if err := n.publisher.Publish(ctx, RoutingKey, envelope); err != nil {
		log.Printf("notification publish failed: %v", err)
	}
}
