package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
	lock     bool
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service in process. Values are stored JSON-encoded so Get
// behaves like the redis implementation.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*memoryItem
	maxSize int
	ticker  *time.Ticker
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:    make(map[string]*memoryItem),
		maxSize: cfg.MaxSize,
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = append([]byte(nil), v...)
	default:
		var err error
		if data, err = json.Marshal(value); err != nil {
			return err
		}
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.data[key]; !ok && len(mc.data) >= mc.maxSize {
		mc.evictLocked()
	}
	item := &memoryItem{data: data}
	if expiration > 0 {
		item.expireAt = mc.now().Add(expiration)
	}
	mc.data[key] = item
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item, ok := mc.data[key]
	if ok && item.expired(mc.now()) {
		delete(mc.data, key)
		ok = false
	}
	mc.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}

	if s, isStr := dest.(*string); isStr {
		*s = string(item.data)
		return nil
	}
	return json.Unmarshal(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for _, key := range keys {
		if item, ok := mc.data[key]; ok && !item.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if item, ok := mc.data[key]; ok && !item.expired(mc.now()) {
		return "", false, nil
	}
	token := uuid.NewString()
	item := &memoryItem{data: []byte(token), lock: true}
	if ttl > 0 {
		item.expireAt = mc.now().Add(ttl)
	}
	mc.data[key] = item
	return token, true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key, token string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	item, ok := mc.data[key]
	if !ok || item.expired(mc.now()) || string(item.data) != token {
		return ErrLockNotHeld
	}
	delete(mc.data, key)
	return nil
}

// evictLocked drops the entry closest to expiry; entries without expiry go last.
// Held locks are never evicted, so the cache may briefly exceed maxSize.
func (mc *MemoryCache) evictLocked() {
	var victim string
	var soonest time.Time
	for k, item := range mc.data {
		if item.lock {
			continue
		}
		switch {
		case victim == "":
			victim, soonest = k, item.expireAt
		case item.expireAt.IsZero():
		case soonest.IsZero() || item.expireAt.Before(soonest):
			victim, soonest = k, item.expireAt
		}
	}
	if victim != "" {
		delete(mc.data, victim)
	}
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.ticker.C:
			mc.mu.Lock()
			now := mc.now()
			for key, item := range mc.data {
				if item.expired(now) {
					delete(mc.data, key)
				}
			}
			mc.mu.Unlock()
		case <-mc.done:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}

var _ Service = (*MemoryCache)(nil)
