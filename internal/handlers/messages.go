package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/notifications"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// MessageHandler manages the message lifecycle endpoints.
type MessageHandler struct {
	messages repositories.MessageRepository
	gateway  *ws.Gateway
	notifier *notifications.Notifier
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, gateway *ws.Gateway, notifier *notifications.Notifier) *MessageHandler {
	return &MessageHandler{messages: messages, gateway: gateway, notifier: notifier}
}

type sendMessageRequest struct {
	ReceiverID  string             `json:"receiver_id" binding:"required"`
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"message_type"`
	Attachment  *models.Attachment `json:"attachment,omitempty"`
	ReplyToID   *int64             `json:"reply_to_id,omitempty"`
	TempID      string             `json:"temp_id,omitempty"`
}

// Send validates and persists a message, then pushes message:new to the
// receiver and a message:sent echo to the sender. The two emissions are
// independent and best effort; the request succeeds once the row exists.
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.Contains(req.ReceiverID, conversation.Separator) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver id", "field": "receiver_id"})
		return
	}
	if req.MessageType == "" {
		req.MessageType = models.MessageTypeText
	}

	userID := userIDFromContext(c)
	msg, err := h.messages.Create(c.Request.Context(), repositories.CreateMessageParams{
		SenderID:    userID,
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		MessageType: req.MessageType,
		Attachment:  req.Attachment,
		ReplyToID:   req.ReplyToID,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	observability.IncMessageStored(string(msg.MessageType))

	h.gateway.EmitToUser(c.Request.Context(), msg.ReceiverID, models.MessageNew{Message: msg})
	h.gateway.EmitToUser(c.Request.Context(), msg.SenderID, models.MessageSent{TempID: req.TempID, Message: msg})
	h.notifier.MessageReceived(c.Request.Context(), msg, requestIDFromContext(c))

	c.JSON(http.StatusCreated, msg)
}

// MarkDelivered records a delivery acknowledgement. Idempotent: acking an
// already delivered message succeeds without change.
func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	if err := h.messages.MarkDelivered(c.Request.Context(), messageID); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete soft-deletes a message. Only the original sender may delete; the
// row is kept and the counterpart is told to drop it from view.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	userID := userIDFromContext(c)
	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	if err := h.messages.SoftDelete(c.Request.Context(), messageID, userID); err != nil {
		respondStoreError(c, err)
		return
	}

	counterpart := conversation.Counterpart(msg.ConversationKey, userID)
	h.gateway.EmitToUser(c.Request.Context(), counterpart, models.MessageDeleted{MessageID: messageID})

	c.Status(http.StatusNoContent)
}

// Search matches non-deleted message content within a single conversation,
// never across conversations.
func (h *MessageHandler) Search(c *gin.Context) {
	counterpartID := c.Query("with")
	query := c.Query("q")
	if counterpartID == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "both 'with' and 'q' are required"})
		return
	}
	limit, _ := parseLimitOffset(c, 20, 100)

	userID := userIDFromContext(c)
	key := conversation.Key(userID, counterpartID)
	msgs, err := h.messages.Search(c.Request.Context(), key, query, limit)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// UnreadCount returns the total unread count across all conversations.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messages.UnreadCountForUser(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func parseMessageID(c *gin.Context) (int64, bool) {
	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, false
	}
	return messageID, true
}
