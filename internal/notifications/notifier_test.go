package notifications

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func TestMessageReceivedPublishesRecord(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := NewNotifier(publisher, "messaging-service-test")

	var published Envelope
	publisher.On("Publish", mock.Anything, RoutingKey, mock.MatchedBy(func(event any) bool {
		env, ok := event.(Envelope)
		if ok {
			published = env
		}
		return ok
	})).Return(nil).Once()

	notifier.MessageReceived(context.Background(), models.Message{
		ID:          7,
		SenderID:    "alice",
		ReceiverID:  "bob",
		Content:     "hi there",
		MessageType: models.MessageTypeText,
	}, "req-1")

	publisher.AssertExpectations(t)
	assert.Equal(t, "message_received", published.EventType)
	assert.Equal(t, "bob", published.RecipientID)
	assert.Equal(t, "alice", published.SenderID)
	assert.Equal(t, int64(7), published.MessageID)
	assert.Equal(t, "req-1", published.RequestID)
	assert.Equal(t, "hi there", published.Preview)
}

func TestMessageReceivedTruncatesPreview(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := NewNotifier(publisher, "messaging-service-test")

	var published Envelope
	publisher.On("Publish", mock.Anything, RoutingKey, mock.MatchedBy(func(event any) bool {
		env, ok := event.(Envelope)
		if ok {
			published = env
		}
		return ok
	})).Return(nil).Once()

	notifier.MessageReceived(context.Background(), models.Message{
		ID:         8,
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    strings.Repeat("x", 500),
	}, "")

	publisher.AssertExpectations(t)
	require.Len(t, published.Preview, previewLimit)
}

func TestMessageReceivedPreviewKeepsRuneBoundary(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := NewNotifier(publisher, "messaging-service-test")

	var published Envelope
	publisher.On("Publish", mock.Anything, RoutingKey, mock.MatchedBy(func(event any) bool {
		env, ok := event.(Envelope)
		if ok {
			published = env
		}
		return ok
	})).Return(nil).Once()

	// One ASCII byte followed by 3-byte runes puts the byte limit mid-rune.
	content := "x" + strings.Repeat("界", 60)
	notifier.MessageReceived(context.Background(), models.Message{
		ID:         10,
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    content,
	}, "")

	publisher.AssertExpectations(t)
	assert.True(t, utf8.ValidString(published.Preview))
	assert.True(t, strings.HasPrefix(content, published.Preview))
	assert.LessOrEqual(t, len(published.Preview), previewLimit)
}

func TestMessageReceivedSwallowsPublishError(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := NewNotifier(publisher, "messaging-service-test")

	publisher.On("Publish", mock.Anything, RoutingKey, mock.Anything).
		Return(assert.AnError).Once()

	// Must not panic or surface the error.
	notifier.MessageReceived(context.Background(), models.Message{ID: 9, SenderID: "a", ReceiverID: "b", Content: "x"}, "")
	publisher.AssertExpectations(t)
}
