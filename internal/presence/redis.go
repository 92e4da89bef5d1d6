package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// entryTTL bounds how long a crashed instance's entries survive. Live
// connections re-stamp their entry via Refresh from the websocket
// keepalive loop.
const entryTTL = 90 * time.Second

const (
	userKeyPrefix = "presence:user:"
	connKeyPrefix = "presence:conn:"
)

// RedisStore is the shared Store for multi-instance deployments. Entries are
// keyed per user with a TTL, so presence converges even when an instance
// dies without running its disconnects.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Connect(ctx context.Context, userID, connID string) error {
	now := time.Now().UTC()
	entry := Entry{UserID: userID, ConnID: connID, ConnectedAt: now, LastSeen: now}

	if prev, err := s.client.Get(ctx, userKeyPrefix+userID).Bytes(); err == nil {
		var old Entry
		if json.Unmarshal(prev, &old) == nil && old.ConnID != connID {
			s.client.Del(ctx, connKeyPrefix+old.ConnID)
		} else if old.ConnID == connID {
			entry.ConnectedAt = old.ConnectedAt
		}
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKeyPrefix+userID, body, entryTTL)
	pipe.Set(ctx, connKeyPrefix+connID, userID, entryTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Refresh(ctx context.Context, userID, connID string) (bool, error) {
	body, err := s.client.Get(ctx, userKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return false, err
	}
	if entry.ConnID != connID {
		// A newer connection owns the entry; do not extend it.
		return false, nil
	}
	entry.LastSeen = time.Now().UTC()
	updated, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKeyPrefix+userID, updated, entryTTL)
	pipe.Set(ctx, connKeyPrefix+connID, userID, entryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Disconnect(ctx context.Context, connID string) (Entry, bool, error) {
	userID, err := s.client.Get(ctx, connKeyPrefix+connID).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	s.client.Del(ctx, connKeyPrefix+connID)

	body, err := s.client.Get(ctx, userKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return Entry{}, false, err
	}
	if entry.ConnID != connID {
		// Evicted by a newer connection; the stale disconnect loses.
		return Entry{}, false, nil
	}
	if err := s.client.Del(ctx, userKeyPrefix+userID).Err(); err != nil {
		return Entry{}, false, err
	}
	entry.LastSeen = time.Now().UTC()
	return entry, true, nil
}

func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, userKeyPrefix+userID).Result()
	return n > 0, err
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	iter := s.client.Scan(ctx, 0, userKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		body, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var entry Entry
		if err := json.Unmarshal(body, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*RedisStore)(nil)
