package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
)

// presenceRefreshInterval keeps TTL-based presence stores alive while the
// connection is open.
const presenceRefreshInterval = 30 * time.Second

// Handler upgrades realtime connections and owns their lifecycle: presence
// registration, the inbound read loop, and cleanup.
type Handler struct {
	hub       *Hub
	gateway   *Gateway
	presence  presence.Store
	jwtSecret []byte
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, gateway *Gateway, store presence.Store, jwtSecret []byte) *Handler {
	return &Handler{hub: hub, gateway: gateway, presence: store, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is what clients send over the socket. Only typing signals are
// accepted; everything else goes through the REST surface.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type typingPayload struct {
	To       string `json:"to"`
	IsTyping bool   `json:"is_typing"`
}

// Handle authenticates, upgrades and registers the connection.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	if err := h.presence.Connect(ctx, userID, info.ConnID); err != nil {
		log.Printf("presence connect failed user=%s: %v", userID, err)
	}
	h.hub.Add(userID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.gateway.BroadcastPresence(ctx, userID, true, time.Time{})

	go h.readLoop(conn, info)
}

// readLoop consumes inbound frames until the connection drops, then tears
// everything down. The offline broadcast only happens when this connection
// still owned the presence entry; a connection evicted by a newer tab goes
// away silently.
func (h *Handler) readLoop(conn *websocket.Conn, info ConnInfo) {
	ctx := context.Background()

	stopRefresh := make(chan struct{})
	go h.refreshPresence(ctx, info, stopRefresh)

	defer func() {
		close(stopRefresh)
		h.hub.Remove(info.UserID, conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")

		entry, removed, err := h.presence.Disconnect(ctx, info.ConnID)
		if err != nil {
			log.Printf("presence disconnect failed user=%s: %v", info.UserID, err)
		}
		if removed {
			h.gateway.BroadcastPresence(ctx, info.UserID, false, entry.LastSeen)
		}
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		switch frame.Event {
		case "user:typing":
			var typing typingPayload
			if err := json.Unmarshal(frame.Data, &typing); err != nil || typing.To == "" || typing.To == info.UserID {
				continue
			}
			h.gateway.RelayTyping(ctx, info.UserID, typing.To, typing.IsTyping)
		}
	}
}

func (h *Handler) refreshPresence(ctx context.Context, info ConnInfo, stop <-chan struct{}) {
	ticker := time.NewTicker(presenceRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			owned, err := h.presence.Refresh(ctx, info.UserID, info.ConnID)
			if err != nil {
				log.Printf("presence refresh failed user=%s: %v", info.UserID, err)
				continue
			}
			if !owned {
				// A newer connection evicted this one; stop keeping the
				// entry alive on its behalf.
				return
			}
		}
	}
}

func (h *Handler) validateToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return middleware.ValidateToken(parts[1], h.jwtSecret)
	}
	return "", fmt.Errorf("invalid token")
}
