// Package session holds the server-side association between an opaque session
// identifier and the token it carries. A session handle is an alternate
// transport for a bearer token used by browser-rendered flows; it never
// replaces the token itself.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smartclinic/api/internal/ids"
	"smartclinic/api/internal/models"
)

var ErrNotFound = errors.New("session not found")

// Handle is what the server remembers about a logged-in browser.
type Handle struct {
	Token       string      `json:"token"`
	Role        models.Role `json:"role"`
	PrincipalID int64       `json:"principal_id"`
	DisplayName string      `json:"display_name"`
}

type Store interface {
	Create(ctx context.Context, h Handle) (string, error)
	Get(ctx context.Context, id string) (Handle, error)
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps handles under session:<id> with a TTL matching the token
// validity window, so stale handles expire without a sweeper.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(id string) string { return "session:" + id }

func (s *RedisStore) Create(ctx context.Context, h Handle) (string, error) {
	id := ids.New()
	payload, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, key(id), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Handle, error) {
	payload, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Handle{}, ErrNotFound
		}
		return Handle{}, fmt.Errorf("load session: %w", err)
	}

	var h Handle
	if err := json.Unmarshal(payload, &h); err != nil {
		return Handle{}, fmt.Errorf("decode session: %w", err)
	}
	return h, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
