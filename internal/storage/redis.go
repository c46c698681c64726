// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records under "<prefix>:<user>:<key>". Several machines
// pointed at one redis share the tenant selection of the same OS user.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace(prefix)}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", addr, err)
	}
	return client, nil
}

func namespace(prefix string) string {
	if prefix == "" {
		prefix = "compras"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = fmt.Sprintf("uid%d", os.Getuid())
	}
	return prefix + ":" + strings.ToLower(user)
}

func (s *RedisStore) redisKey(key string) string {
	return s.namespace + ":" + key
}

// Get reads the record for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	value, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Put writes the record for key without expiry.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the client is closed by whoever dialed it.
func (s *RedisStore) Close() error { return nil }

// =============================================================================
// REDIS MARKER
// =============================================================================

// RedisMarker is a key with a TTL; it disappears on its own once the TTL
// elapses without a fresh Set.
type RedisMarker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisMarker creates a marker under the store's namespace.
func NewRedisMarker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisMarker {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisMarker{client: client, key: namespace(prefix) + ":session_active", ttl: ttl}
}

// Set raises the marker and restarts its TTL.
func (m *RedisMarker) Set(ctx context.Context) error {
	if err := m.client.Set(ctx, m.key, time.Now().UTC().Format(time.RFC3339), m.ttl).Err(); err != nil {
		return fmt.Errorf("redis marker set: %w", err)
	}
	return nil
}

// Clear lowers the marker.
func (m *RedisMarker) Clear(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("redis marker clear: %w", err)
	}
	return nil
}

// Present reports whether the marker key exists.
func (m *RedisMarker) Present(ctx context.Context) (bool, error) {
	n, err := m.client.Exists(ctx, m.key).Result()
	if err != nil {
		return false, fmt.Errorf("redis marker exists: %w", err)
	}
	return n > 0, nil
}
