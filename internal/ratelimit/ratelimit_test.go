package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryAllow(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _, _ := m.Allow(ctx, "42")
	if !ok {
		t.Fatal("first call should be allowed")
	}

	now = now.Add(20 * time.Second)
	ok, retry, _ := m.Allow(ctx, "42")
	if ok {
		t.Fatal("second call inside the window should be refused")
	}
	if retry != 40*time.Second {
		t.Errorf("retryAfter = %v, want 40s", retry)
	}

	if ok, _, _ := m.Allow(ctx, "43"); !ok {
		t.Error("keys must be independent")
	}

	now = now.Add(41 * time.Second)
	if ok, _, _ := m.Allow(ctx, "42"); !ok {
		t.Error("call after the window should be allowed")
	}
}

func TestMemoryDefaultWindow(t *testing.T) {
	if m := NewMemory(0); m.window != DefaultWindow {
		t.Errorf("window = %v, want %v", m.window, DefaultWindow)
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return m, NewRedis(client, time.Minute)
}

func TestRedisAllow(t *testing.T) {
	m, r := newRedis(t)
	ctx := context.Background()

	ok, _, err := r.Allow(ctx, "42")
	if err != nil || !ok {
		t.Fatalf("first Allow = %v, %v", ok, err)
	}
	if !m.Exists("novabot:cooldown:42") {
		t.Error("cooldown key not namespaced as expected")
	}

	ok, retry, err := r.Allow(ctx, "42")
	if err != nil {
		t.Fatalf("second Allow error: %v", err)
	}
	if ok {
		t.Fatal("second call should be refused")
	}
	if retry <= 0 || retry > time.Minute {
		t.Errorf("retryAfter = %v, want within (0, 1m]", retry)
	}

	if ok, _, _ := r.Allow(ctx, "43"); !ok {
		t.Error("keys must be independent")
	}

	m.FastForward(61 * time.Second)
	if ok, _, _ := r.Allow(ctx, "42"); !ok {
		t.Error("call after the window should be allowed")
	}
}

func TestRedisUnavailable(t *testing.T) {
	m, r := newRedis(t)
	m.Close()

	if _, _, err := r.Allow(context.Background(), "42"); err == nil {
		t.Error("expected error when redis is down")
	}
}

func TestNewRedisFromURL(t *testing.T) {
	if _, err := NewRedisFromURL("not a url", time.Minute); err == nil {
		t.Error("expected parse error")
	}

	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	r, err := NewRedisFromURL("redis://"+m.Addr()+"/0", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisFromURL failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	if ok, _, err := r.Allow(context.Background(), "1"); err != nil || !ok {
		t.Errorf("Allow = %v, %v", ok, err)
	}
}
