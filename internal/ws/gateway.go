package ws

import (
	"context"
	"log"
	"time"

	"messaging-service/internal/bus"
	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Gateway pushes realtime events onto the bus. Delivery is at-most-once and
// best-effort: failures are logged and swallowed, never surfaced to the
// originating request, since persistence is the source of truth.
type Gateway struct {
	bus bus.EventBus
}

// NewGateway constructs a Gateway.
func NewGateway(eventBus bus.EventBus) *Gateway {
	return &Gateway{bus: eventBus}
}

// EmitToUser sends an event to the user's live connection, if any.
func (g *Gateway) EmitToUser(ctx context.Context, userID string, ev models.Event) {
	env, err := models.NewEnvelope(userID, "", ev)
	if err != nil {
		log.Printf("realtime marshal failed event=%s: %v", ev.EventName(), err)
		return
	}
	g.publish(ctx, env)
}

// BroadcastPresence announces a presence transition to every other connected
// user. Intentionally global, not scoped to the user's conversations.
func (g *Gateway) BroadcastPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) {
	var ev models.Event
	if online {
		ev = models.UserOnline{UserID: userID}
	} else {
		ev = models.UserOffline{UserID: userID, LastSeen: lastSeen}
	}
	env, err := models.NewEnvelope("", userID, ev)
	if err != nil {
		log.Printf("realtime marshal failed event=%s: %v", ev.EventName(), err)
		return
	}
	g.publish(ctx, env)
}

// RelayTyping forwards an ephemeral typing signal point-to-point to the
// receiver. Nothing is stored.
func (g *Gateway) RelayTyping(ctx context.Context, fromUser, toUser string, isTyping bool) {
	g.EmitToUser(ctx, toUser, models.UserTyping{
		UserID:          fromUser,
		ConversationKey: conversation.Key(fromUser, toUser),
		IsTyping:        isTyping,
	})
}

func (g *Gateway) publish(ctx context.Context, env models.Envelope) {
	observability.IncWSEvent(env.Event)
	if err := g.bus.Publish(ctx, env); err != nil {
		log.Printf("realtime publish failed event=%s: %v", env.Event, err)
	}
}
