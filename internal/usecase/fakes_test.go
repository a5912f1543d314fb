package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
)

var errBackend = errors.New("backend down")

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	stale  map[string]int
	fetch  map[string]int
	stats  []models.Statistics
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, stale: map[string]int{}, fetch: map[string]int{}}
}

func (m *fakeMetrics) RecordFetch(source string) {
	m.mu.Lock()
	m.fetch[source]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) RecordStale(kind string) {
	m.mu.Lock()
	m.stale[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordStatistics(s models.Statistics) {
	m.mu.Lock()
	m.stats = append(m.stats, s)
	m.mu.Unlock()
}

func (m *fakeMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakePairSource struct {
	mu      sync.Mutex
	results map[string]models.ResultRecord
	fail    map[string]bool
	calls   int
}

func newFakePairSource() *fakePairSource {
	return &fakePairSource{results: map[string]models.ResultRecord{}, fail: map[string]bool{}}
}

func (s *fakePairSource) set(r models.ResultRecord) {
	s.mu.Lock()
	s.results[r.Pair.Key()] = r
	s.fail[r.Pair.Key()] = false
	s.mu.Unlock()
}

func (s *fakePairSource) failPair(p models.PairKey) {
	s.mu.Lock()
	s.fail[p.Key()] = true
	s.mu.Unlock()
}

func (s *fakePairSource) FetchPairResult(ctx context.Context, p models.PairKey) (models.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail[p.Key()] {
		return models.ResultRecord{}, errBackend
	}
	r, ok := s.results[p.Key()]
	if !ok {
		return models.ResultRecord{}, errBackend
	}
	return r, nil
}

type fakeStore struct {
	mu     sync.Mutex
	locked bool
	saved  []*models.Snapshot
}

func (s *fakeStore) Save(_ context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	s.saved = append(s.saved, snap)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Latest(context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil, domrepo.ErrSnapshotNotFound
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *fakeStore) ByID(_ context.Context, id string) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.saved {
		if snap.ID == id {
			return snap, nil
		}
	}
	return nil, domrepo.ErrSnapshotNotFound
}

func (s *fakeStore) TryLock(context.Context, time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return false, nil
	}
	s.locked = true
	return true, nil
}

func (s *fakeStore) Unlock(context.Context) error {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
	return nil
}

type fakeSeries struct {
	mu      sync.Mutex
	windows map[models.SeriesKind]models.SeriesWindow
	err     error
}

func (s *fakeSeries) FetchSeries(_ context.Context, kind models.SeriesKind) (models.SeriesWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.SeriesWindow{}, s.err
	}
	return s.windows[kind], nil
}

type fakeWindow struct {
	mu     sync.Mutex
	size   int
	setErr error
	sets   []int
}

func (w *fakeWindow) FetchWindowSize(context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size, nil
}

func (w *fakeWindow) SetWindowSize(_ context.Context, n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sets = append(w.sets, n)
	if w.setErr != nil {
		return w.setErr
	}
	w.size = n
	return nil
}
