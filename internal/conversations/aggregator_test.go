package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/users"
)

func TestListForUserOrdersByLatestMessage(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	directory := new(mocks.DirectoryMock)
	store := presence.NewMemoryStore()
	aggregator := NewAggregator(convRepo, store, directory)

	older := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	convRepo.On("LatestPerConversation", mock.Anything, "alice").Return([]models.Message{
		{ID: 1, ConversationKey: "alice:bob", SenderID: "bob", ReceiverID: "alice", CreatedAt: older},
		{ID: 2, ConversationKey: "alice:carol", SenderID: "alice", ReceiverID: "carol", CreatedAt: newer},
	}, nil).Once()
	convRepo.On("UnreadPerConversation", mock.Anything, "alice").
		Return(map[string]int{"alice:bob": 3}, nil).Once()
	directory.On("BulkUsers", mock.Anything, []string{"bob", "carol"}).
		Return(map[string]users.Profile{
			"bob":   {ID: "bob", Name: "Bob"},
			"carol": {ID: "carol", Name: "Carol"},
		}, nil).Once()

	require.NoError(t, store.Connect(context.Background(), "carol", "c1"))

	summaries, err := aggregator.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "carol", summaries[0].CounterpartID)
	assert.True(t, summaries[0].CounterpartOnline)
	assert.Equal(t, 0, summaries[0].UnreadCount)

	assert.Equal(t, "bob", summaries[1].CounterpartID)
	assert.False(t, summaries[1].CounterpartOnline)
	assert.Equal(t, 3, summaries[1].UnreadCount)

	convRepo.AssertExpectations(t)
	directory.AssertExpectations(t)
}

func TestListForUserEmptyWithoutMessages(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	aggregator := NewAggregator(convRepo, presence.NewMemoryStore(), new(mocks.DirectoryMock))

	convRepo.On("LatestPerConversation", mock.Anything, "alice").
		Return([]models.Message{}, nil).Once()

	summaries, err := aggregator.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, summaries)
	convRepo.AssertExpectations(t)
}

func TestListForUserDegradesWithoutDirectory(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	directory := new(mocks.DirectoryMock)
	aggregator := NewAggregator(convRepo, presence.NewMemoryStore(), directory)

	convRepo.On("LatestPerConversation", mock.Anything, "alice").Return([]models.Message{
		{ID: 1, ConversationKey: "alice:bob", SenderID: "bob", ReceiverID: "alice", CreatedAt: time.Now()},
	}, nil).Once()
	convRepo.On("UnreadPerConversation", mock.Anything, "alice").
		Return(map[string]int{}, nil).Once()
	directory.On("BulkUsers", mock.Anything, []string{"bob"}).
		Return(nil, assert.AnError).Once()

	summaries, err := aggregator.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "bob", summaries[0].CounterpartID)
	assert.Empty(t, summaries[0].CounterpartName)
}
