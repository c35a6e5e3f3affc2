package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/promptdeck/promptdeck/internal/domain"
)

const sessionKeyPrefix = "pd:session:"

// SessionStoreRedis keeps session metadata in Redis so it survives process
// restarts and can be shared once a second instance exists. Rooms stay
// in-memory; only the session seam has a remote backend.
type SessionStoreRedis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStoreRedis(client *redis.Client, ttl time.Duration) *SessionStoreRedis {
	if client == nil {
		panic("redis client cannot be nil for SessionStoreRedis")
	}
	return &SessionStoreRedis{client: client, ttl: ttl}
}

func sessionKey(uid domain.UserID) string {
	return sessionKeyPrefix + string(uid)
}

func (s *SessionStoreRedis) Get(ctx context.Context, uid domain.UserID) (*domain.Session, bool, error) {
	raw, err := s.client.Get(ctx, sessionKey(uid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get session %s: %w", uid, err)
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, false, fmt.Errorf("redis: decode session %s: %w", uid, err)
	}
	return &sess, true, nil
}

func (s *SessionStoreRedis) Put(ctx context.Context, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis: encode session %s: %w", sess.UserID, err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: put session %s: %w", sess.UserID, err)
	}
	return nil
}

func (s *SessionStoreRedis) Delete(ctx context.Context, uid domain.UserID) error {
	if err := s.client.Del(ctx, sessionKey(uid)).Err(); err != nil {
		return fmt.Errorf("redis: delete session %s: %w", uid, err)
	}
	return nil
}

func (s *SessionStoreRedis) Iterate(ctx context.Context, fn func(*domain.Session) bool) error {
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("redis: iterate sessions: %w", err)
		}
		var sess domain.Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			continue
		}
		if !fn(&sess) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: iterate sessions: %w", err)
	}
	return nil
}
