package conversations

import (
	"context"
	"log"
	"sort"

	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
	"messaging-service/internal/users"
)

// Aggregator builds a user's conversation list from the message store, the
// presence store and the profile directory. Conversations exist only as
// derived views; one without messages never appears.
type Aggregator struct {
	conversations repositories.ConversationRepository
	presence      presence.Store
	directory     users.Directory
}

// NewAggregator constructs an Aggregator.
func NewAggregator(repo repositories.ConversationRepository, store presence.Store, directory users.Directory) *Aggregator {
	return &Aggregator{conversations: repo, presence: store, directory: directory}
}

// ListForUser returns the user's conversations sorted by latest-message time
// descending. Profile and presence lookups degrade to empty metadata and
// offline when their collaborators fail; the list itself still renders.
func (a *Aggregator) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	latest, err := a.conversations.LatestPerConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return []models.ConversationSummary{}, nil
	}

	unread, err := a.conversations.UnreadPerConversation(ctx, userID)
	if err != nil {
		return nil, err
	}

	counterpartIDs := make([]string, 0, len(latest))
	for _, msg := range latest {
		counterpartIDs = append(counterpartIDs, conversation.Counterpart(msg.ConversationKey, userID))
	}

	profiles, err := a.directory.BulkUsers(ctx, counterpartIDs)
	if err != nil {
		log.Printf("profile lookup failed for %s: %v", userID, err)
		profiles = map[string]users.Profile{}
	}

	online := map[string]bool{}
	entries, err := a.presence.List(ctx)
	if err != nil {
		log.Printf("presence lookup failed: %v", err)
	} else {
		for _, entry := range entries {
			online[entry.UserID] = true
		}
	}

	summaries := make([]models.ConversationSummary, 0, len(latest))
	for _, msg := range latest {
		counterpartID := conversation.Counterpart(msg.ConversationKey, userID)
		profile := profiles[counterpartID]
		summaries = append(summaries, models.ConversationSummary{
			ConversationKey:   msg.ConversationKey,
			CounterpartID:     counterpartID,
			CounterpartName:   profile.Name,
			CounterpartAvatar: profile.AvatarURL,
			CounterpartOnline: online[counterpartID],
			LatestMessage:     msg,
			UnreadCount:       unread[msg.ConversationKey],
			LatestMessageAt:   msg.CreatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LatestMessageAt.After(summaries[j].LatestMessageAt)
	})
	return summaries, nil
}
