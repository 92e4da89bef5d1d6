package presence

import (
	"context"
	"sync"
	"time"
)

// Entry records one user's live connection. At most one authoritative entry
// exists per user; a reconnect overwrites the previous one.
type Entry struct {
	UserID      string    `json:"user_id"`
	ConnID      string    `json:"conn_id"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// Store tracks which users currently hold an open realtime connection.
// Callers must not assume the in-memory implementation: a multi-instance
// deployment swaps in the Redis-backed one without touching call sites.
type Store interface {
	// Connect registers the user as online, evicting any prior entry for the
	// same user (last writer wins).
	Connect(ctx context.Context, userID, connID string) error
	// Refresh re-stamps the entry's liveness, but only while connID still
	// owns it. A connection evicted by a newer one must not resurrect its
	// entry; the return reports whether the refresh took.
	Refresh(ctx context.Context, userID, connID string) (bool, error)
	// Disconnect removes the entry owned by connID and stamps LastSeen.
	// A stale connID that no longer owns the user's entry is a no-op; the
	// second return reports whether an entry was actually removed.
	Disconnect(ctx context.Context, connID string) (Entry, bool, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
	List(ctx context.Context) ([]Entry, error)
}

// MemoryStore is the process-local Store used by a single instance and in
// tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string]Entry
	byConn map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser: make(map[string]Entry),
		byConn: make(map[string]string),
	}
}

func (s *MemoryStore) Connect(ctx context.Context, userID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byUser[userID]; ok {
		delete(s.byConn, prev.ConnID)
	}
	now := time.Now().UTC()
	s.byUser[userID] = Entry{UserID: userID, ConnID: connID, ConnectedAt: now, LastSeen: now}
	s.byConn[connID] = userID
	return nil
}

func (s *MemoryStore) Refresh(ctx context.Context, userID, connID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byUser[userID]
	if !ok || entry.ConnID != connID {
		return false, nil
	}
	entry.LastSeen = time.Now().UTC()
	s.byUser[userID] = entry
	return true, nil
}

func (s *MemoryStore) Disconnect(ctx context.Context, connID string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byConn[connID]
	if !ok {
		return Entry{}, false, nil
	}
	entry := s.byUser[userID]
	if entry.ConnID != connID {
		// A newer connection took over this user; the old one loses.
		delete(s.byConn, connID)
		return Entry{}, false, nil
	}
	delete(s.byUser, userID)
	delete(s.byConn, connID)
	entry.LastSeen = time.Now().UTC()
	return entry, true, nil
}

func (s *MemoryStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUser[userID]
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.byUser))
	for _, entry := range s.byUser {
		entries = append(entries, entry)
	}
	return entries, nil
}
