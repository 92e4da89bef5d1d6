package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/conversation"
	"messaging-service/internal/conversations"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// ConversationHandler serves conversation-level endpoints.
type ConversationHandler struct {
	aggregator *conversations.Aggregator
	messages   repositories.MessageRepository
	presence   presence.Store
	gateway    *ws.Gateway
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(aggregator *conversations.Aggregator, messages repositories.MessageRepository, store presence.Store, gateway *ws.Gateway) *ConversationHandler {
	return &ConversationHandler{aggregator: aggregator, messages: messages, presence: store, gateway: gateway}
}

// List returns the user's conversation summaries plus the total unread count.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := userIDFromContext(c)

	summaries, err := h.aggregator.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	totalUnread, err := h.messages.UnreadCountForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries, "total_unread": totalUnread})
}

// Messages returns a page of the conversation with the named counterpart, in
// ascending creation order.
func (h *ConversationHandler) Messages(c *gin.Context) {
	counterpartID := c.Param("userId")
	limit, offset := parseLimitOffset(c, 50, 200)

	userID := userIDFromContext(c)
	key := conversation.Key(userID, counterpartID)
	msgs, err := h.messages.Page(c.Request.Context(), key, limit, offset)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkRead marks every unread message from the counterpart as read and tells
// the counterpart. Re-invoking is a no-op.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	counterpartID := c.Param("userId")

	userID := userIDFromContext(c)
	key := conversation.Key(userID, counterpartID)
	count, readAt, err := h.messages.MarkConversationRead(c.Request.Context(), key, userID)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	if count > 0 {
		h.gateway.EmitToUser(c.Request.Context(), counterpartID, models.MessagesRead{
			ConversationKey: key,
			ReadBy:          userID,
			ReadAt:          readAt,
			Count:           count,
		})
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// OnlineUsers returns a snapshot of the presence registry.
func (h *ConversationHandler) OnlineUsers(c *gin.Context) {
	entries, err := h.presence.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	if entries == nil {
		entries = []presence.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"online_users": entries})
}
