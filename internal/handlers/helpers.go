package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/middleware"
	"messaging-service/internal/repositories"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func parseLimitOffset(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// respondStoreError maps the repository error taxonomy onto HTTP statuses.
func respondStoreError(c *gin.Context, err error) {
	var validationErr *repositories.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason, "field": validationErr.Field})
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, repositories.ErrNotSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may delete a message"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	}
}
