package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", payload{Name: "A,B", Score: 2.47}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "A,B" || got.Score != 2.47 {
		t.Fatalf("unexpected %+v", got)
	}

	var s string
	mc.Set(ctx, "s", "plain", 0)
	if err := mc.Get(ctx, "s", &s); err != nil || s != "plain" {
		t.Fatalf("string get %q err=%v", s, err)
	}

	mc.Delete(ctx, "k")
	if err := mc.Get(ctx, "k", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	mc.Set(ctx, "k", 1, time.Second)
	if ok, _ := mc.Exists(ctx, "k"); !ok {
		t.Fatalf("expected key")
	}
	now = now.Add(2 * time.Second)
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Fatalf("expected expiry")
	}
	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	token, ok, err := mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("first lock ok=%v err=%v", ok, err)
	}
	if _, ok, _ := mc.TryLock(ctx, "lock", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	if err := mc.Unlock(ctx, "lock", "someone-else"); !errors.Is(err, ErrLockNotHeld) {
		t.Fatalf("foreign unlock should fail, got %v", err)
	}
	if err := mc.Unlock(ctx, "lock", token); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := mc.TryLock(ctx, "lock", time.Minute); !ok {
		t.Fatalf("lock should be free")
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	mc.Set(ctx, "a", 1, time.Second)
	mc.Set(ctx, "b", 2, time.Hour)
	mc.Set(ctx, "c", 3, time.Hour)
	if ok, _ := mc.Exists(ctx, "a"); ok {
		t.Fatalf("entry closest to expiry should be evicted")
	}
	if ok, _ := mc.Exists(ctx, "b", "c"); !ok {
		t.Fatalf("expected remaining entries")
	}
}

func TestMemoryCacheEvictionKeepsLocks(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	token, ok, err := mc.TryLock(ctx, "lock:refresh", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	mc.Set(ctx, "snapshot:1", 1, time.Hour)
	mc.Set(ctx, "snapshot:2", 2, 2*time.Hour)

	if ok, _ := mc.Exists(ctx, "lock:refresh"); !ok {
		t.Fatalf("held lock was evicted")
	}
	if ok, _ := mc.Exists(ctx, "snapshot:1"); ok {
		t.Fatalf("expected the soonest expiring snapshot to go")
	}
	if ok, _ := mc.Exists(ctx, "snapshot:2"); !ok {
		t.Fatalf("newest snapshot missing")
	}
	if _, ok, _ := mc.TryLock(ctx, "lock:refresh", time.Second); ok {
		t.Fatalf("lock should still be held")
	}
	if err := mc.Unlock(ctx, "lock:refresh", token); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("snapshot", 42); got != "snapshot:42" {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryCacheCleanupSweepsExpired(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(5 * time.Millisecond))
	defer mc.Close()
	mc.Set(context.Background(), "short", 1, time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mc.mu.Lock()
		n := len(mc.data)
		mc.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expired entry was not swept")
}
