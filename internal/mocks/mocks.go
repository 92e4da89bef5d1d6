package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/users"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, p repositories.CreateMessageParams) (models.Message, error) {
	args := m.Called(ctx, p)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Page(ctx context.Context, conversationKey string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationKey, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, conversationKey, readerID string) (int, time.Time, error) {
	args := m.Called(ctx, conversationKey, readerID)
	var readAt time.Time
	if val := args.Get(1); val != nil {
		readAt = val.(time.Time)
	}
	return args.Int(0), readAt, args.Error(2)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int64, requesterID string) error {
	args := m.Called(ctx, messageID, requesterID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Search(ctx context.Context, conversationKey, query string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationKey, query, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCountForUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) LatestPerConversation(ctx context.Context, userID string) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ConversationRepositoryMock) UnreadPerConversation(ctx context.Context, userID string) (map[string]int, error) {
	args := m.Called(ctx, userID)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) BulkUsers(ctx context.Context, ids []string) (map[string]users.Profile, error) {
	args := m.Called(ctx, ids)
	var profiles map[string]users.Profile
	if val := args.Get(0); val != nil {
		profiles = val.(map[string]users.Profile)
	}
	return profiles, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ users.Directory = (*DirectoryMock)(nil)
var _ rabbitmq.Publisher = (*PublisherMock)(nil)
