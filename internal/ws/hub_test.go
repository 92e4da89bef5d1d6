package ws

import (
	"testing"

	"github.com/gorilla/websocket"

	"messaging-service/internal/bus"
	"messaging-service/internal/models"
)

func TestHubAddAndRemove(t *testing.T) {
	hub := NewHub(bus.NewMemoryBus())

	hub.Add("alice", nil, ConnInfo{ConnID: "c1", UserID: "alice"})
	if !hub.IsConnected("alice") {
		t.Fatalf("expected alice to be connected")
	}

	hub.Remove("alice", nil)
	if hub.IsConnected("alice") {
		t.Fatalf("expected alice to be removed")
	}
}

func TestHubStaleRemoveIsNoop(t *testing.T) {
	hub := NewHub(bus.NewMemoryBus())

	hub.Add("alice", nil, ConnInfo{ConnID: "c1", UserID: "alice"})

	// A remove keyed to a connection that does not own the entry must not
	// drop the current one.
	hub.Remove("alice", &websocket.Conn{})
	if !hub.IsConnected("alice") {
		t.Fatalf("expected alice to stay connected through a stale remove")
	}
}

func TestHubDeliverToOfflineUserDrops(t *testing.T) {
	hub := NewHub(bus.NewMemoryBus())

	env, err := models.NewEnvelope("nobody", "", models.MessageDeleted{MessageID: 1})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}

	// Nothing registered: the envelope is dropped, never queued.
	hub.Deliver(env)
	if hub.IsConnected("nobody") {
		t.Fatalf("delivery must not create connections")
	}
}
