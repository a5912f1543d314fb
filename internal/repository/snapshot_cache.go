package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
	"PairWatch/pkg/cache"
)

const (
	snapshotLatestKey = "snapshot:latest"
	refreshLockKey    = "lock:refresh"
)

// SnapshotCache keeps the latest snapshot in the cache and holds the refresh lock,
// so several instances sharing a redis do not poll the backend at once.
type SnapshotCache struct {
	cache cache.Service
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewSnapshotCache(c cache.Service, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{cache: c, ttl: ttl}
}

func (s *SnapshotCache) Save(ctx context.Context, snap *models.Snapshot) error {
	if err := s.cache.Set(ctx, snapshotLatestKey, snap, s.ttl); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, cache.Key("snapshot", snap.ID), snap, s.ttl); err != nil {
		return fmt.Errorf("cache snapshot %s: %w", snap.ID, err)
	}
	return nil
}

func (s *SnapshotCache) Latest(ctx context.Context) (*models.Snapshot, error) {
	return s.get(ctx, snapshotLatestKey)
}

// ByID returns a snapshot saved within the cache ttl.
func (s *SnapshotCache) ByID(ctx context.Context, id string) (*models.Snapshot, error) {
	return s.get(ctx, cache.Key("snapshot", id))
}

func (s *SnapshotCache) get(ctx context.Context, key string) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := s.cache.Get(ctx, key, &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domrepo.ErrSnapshotNotFound
		}
		return nil, err
	}
	return &snap, nil
}

func (s *SnapshotCache) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	token, ok, err := s.cache.TryLock(ctx, refreshLockKey, ttl)
	if err != nil || !ok {
		return false, err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return true, nil
}

func (s *SnapshotCache) Unlock(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.mu.Unlock()
	if token == "" {
		return cache.ErrLockNotHeld
	}
	return s.cache.Unlock(ctx, refreshLockKey, token)
}

var _ domrepo.SnapshotStore = (*SnapshotCache)(nil)
