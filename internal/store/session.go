package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bloglist/apiserver/types"
)

// MemorySessionStore keeps login sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]types.Session
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]types.Session),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Save(_ context.Context, session types.Session) error {
	session.Token = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (types.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return types.Session{}, ErrNotFound
	}
	if !session.ExpiresAt.IsZero() && !s.now().Before(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return types.Session{}, ErrNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemorySessionStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]types.Session)
	return nil
}

// RedisSessionStore keeps login sessions as Redis hashes that expire
// together with the session.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisSessionStore) Save(ctx context.Context, session types.Session) error {
	key := s.key(session.ID)
	fields := map[string]any{
		"user_id":    session.UserID,
		"username":   session.Username,
		"name":       session.Name,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if ttl := time.Until(session.ExpiresAt); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (types.Session, error) {
	data, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return types.Session{}, err
	}
	if len(data) == 0 {
		return types.Session{}, ErrNotFound
	}

	userID, err := strconv.ParseInt(data["user_id"], 10, 64)
	if err != nil {
		return types.Session{}, ErrNotFound
	}
	expiresAt, _ := time.Parse(time.RFC3339Nano, data["expires_at"])

	return types.Session{
		ID:        id,
		UserID:    userID,
		Username:  data["username"],
		Name:      data["name"],
		ExpiresAt: expiresAt,
	}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// Reset removes every session under the configured prefix.
func (s *RedisSessionStore) Reset(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
