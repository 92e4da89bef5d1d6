package ws

import (
	"crypto/rand"
	"encoding/hex"
)

// newConnID returns a random 128-bit hex identifier for one socket lifetime.
// Presence ownership checks compare these, so they must not collide.
func newConnID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
