// Package ratelimit provides the per-user cooldown for slash commands.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWindow is the /todo cooldown.
const DefaultWindow = 60 * time.Second

// Limiter admits one call per key per window.
type Limiter interface {
	// Allow reports whether the call may proceed and, if not, how long
	// until it may.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Memory is an in-process Limiter.
type Memory struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	until map[string]time.Time
}

// NewMemory creates an in-process limiter.
func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{
		window: window,
		now:    time.Now,
		until:  make(map[string]time.Time),
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.until[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}

	// Drop stale entries while we hold the lock.
	for k, until := range m.until {
		if !now.Before(until) {
			delete(m.until, k)
		}
	}
	m.until[key] = now.Add(m.window)
	return true, 0, nil
}

// Redis is a Limiter shared by every process using the same Redis.
type Redis struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// NewRedis creates a limiter on an existing client.
func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, window: window, prefix: "novabot:cooldown:"}
}

// NewRedisFromURL parses a redis:// URL and creates a limiter.
func NewRedisFromURL(rawURL string, window time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), window), nil
}

// Allow implements Limiter with SET NX PX; a refused call reports the key's
// remaining TTL.
func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := r.prefix + key
	ok, err := r.client.SetNX(ctx, k, 1, r.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown set: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return false, ttl, nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
