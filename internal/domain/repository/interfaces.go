package repository

import (
	"context"
	"errors"
	"time"

	"PairWatch/internal/domain/models"
)

var (
	ErrWindowSizeOutOfRange = errors.New("window size out of range")
	ErrSnapshotNotFound     = errors.New("snapshot not found")
)

// PairSource fetches the latest backtest result for one pair.
type PairSource interface {
	FetchPairResult(ctx context.Context, pair models.PairKey) (models.ResultRecord, error)
}

// SeriesSource fetches a chart series for the currently configured window.
type SeriesSource interface {
	FetchSeries(ctx context.Context, kind models.SeriesKind) (models.SeriesWindow, error)
}

type WindowConfig interface {
	FetchWindowSize(ctx context.Context) (int, error)
	SetWindowSize(ctx context.Context, size int) error
}

type SnapshotStore interface {
	Save(ctx context.Context, s *models.Snapshot) error
	Latest(ctx context.Context) (*models.Snapshot, error)
	ByID(ctx context.Context, id string) (*models.Snapshot, error)
	// TryLock acquires the refresh lock for ttl; false means another refresh holds it.
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context) error
}

type SnapshotPublisher interface {
	Publish(ctx context.Context, s *models.Snapshot) error
	Close() error
}

type Metrics interface {
	RecordFetch(source string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordStale(kind string)
	RecordStatistics(stats models.Statistics)
}
