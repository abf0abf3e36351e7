package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/clinic-dashboard/internal/session"
)

const sessionKeyPrefix = "clinic:session:"

// RedisSessionRepository persists session snapshots as JSON in Redis.
type RedisSessionRepository struct {
	client *redis.Client
}

// NewRedisSessionRepository constructs a Redis-backed session repository.
func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

// Load returns the snapshot stored under id.
func (r *RedisSessionRepository) Load(ctx context.Context, id string) (session.Snapshot, error) {
	if id == "" {
		return session.Snapshot{}, session.ErrNotFound
	}
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Snapshot{}, session.ErrNotFound
		}
		return session.Snapshot{}, fmt.Errorf("load session: %w", err)
	}

	var snapshot session.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return session.Snapshot{}, fmt.Errorf("decode session: %w", err)
	}
	snapshot.ID = id
	return snapshot, nil
}

// Save stores the snapshot; Redis expires it after ttl.
func (r *RedisSessionRepository) Save(ctx context.Context, snapshot session.Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, sessionKey(snapshot.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the session.
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
