package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCacheMiss   = errors.New("cache: key not found")
	ErrLockNotHeld = errors.New("cache: lock not held")
)

// Service defines cache operations used by the snapshot store.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	// TryLock sets key if absent and returns a token that Unlock must present.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
	Close() error
}

// Key joins parts with ':'.
func Key(parts ...interface{}) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ":")
}
