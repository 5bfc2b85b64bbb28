package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// RedisRepository stores each session as a JSON value that expires after ttl without writes.
type RedisRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, prefix string, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

func (r *RedisRepository) Get(ctx context.Context, id string) (Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return s, nil
}

func (r *RedisRepository) Save(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.Id, err)
	}
	if err := r.client.Set(ctx, r.key(session.Id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", session.Id, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// List scans the key space for sessions. Sessions expiring during the scan are skipped.
func (r *RedisRepository) List(ctx context.Context) ([]Session, error) {
	var sessions []Session
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}
		for _, key := range keys {
			// SCAN may return a key more than once
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			s, err := r.Get(ctx, key[len(r.prefix):])
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, s)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	log.Tracef("scanned %d sessions", len(sessions))
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Id < sessions[j].Id })
	return sessions, nil
}
