package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
	"PairWatch/internal/services/ranking"
	"PairWatch/pkg/logger"
)

var (
	ErrRefreshInProgress = errors.New("refresh already in progress")
	ErrPairNotTracked    = errors.New("pair not tracked")
)

// PairMonitor owns the tracked pair list and the merged result map. Every mutation
// goes through mu and recomputes the statistics before the lock is released.
type PairMonitor struct {
	source    domrepo.PairSource
	store     domrepo.SnapshotStore
	publisher domrepo.SnapshotPublisher
	metrics   domrepo.Metrics
	log       *logger.Logger

	timeout time.Duration
	lockTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	order    []models.PairKey
	tracked  map[string]models.PairKey
	results  *models.ResultSet
	snapshot models.Snapshot

	subs *broadcaster[models.Snapshot]
}

type PairMonitorOption func(*PairMonitor)

func WithSnapshotStore(s domrepo.SnapshotStore) PairMonitorOption {
	return func(m *PairMonitor) { m.store = s }
}

func WithSnapshotPublisher(p domrepo.SnapshotPublisher) PairMonitorOption {
	return func(m *PairMonitor) { m.publisher = p }
}

// WithFetchTimeout bounds a whole refresh pass.
func WithFetchTimeout(d time.Duration) PairMonitorOption {
	return func(m *PairMonitor) {
		if d > 0 {
			m.timeout = d
			m.lockTTL = 2 * d
		}
	}
}

func WithMonitorClock(now func() time.Time) PairMonitorOption {
	return func(m *PairMonitor) { m.now = now }
}

func NewPairMonitor(source domrepo.PairSource, metrics domrepo.Metrics, log *logger.Logger, pairs []models.PairKey, opts ...PairMonitorOption) *PairMonitor {
	m := &PairMonitor{
		source:  source,
		metrics: metrics,
		log:     log,
		timeout: 15 * time.Second,
		lockTTL: 30 * time.Second,
		now:     time.Now,
		tracked: make(map[string]models.PairKey),
		results: models.NewResultSet(),
		subs:    newBroadcaster[models.Snapshot](),
	}
	for _, o := range opts {
		o(m)
	}
	for _, p := range pairs {
		m.trackLocked(p)
	}
	m.snapshot = m.buildSnapshotLocked()
	return m
}

func (m *PairMonitor) trackLocked(p models.PairKey) bool {
	k := p.Key()
	if _, ok := m.tracked[k]; ok {
		return false
	}
	m.tracked[k] = p
	m.order = append(m.order, p)
	return true
}

// Track adds a pair. It reports false when the pair (in either order) is already tracked.
func (m *PairMonitor) Track(p models.PairKey) bool {
	m.mu.Lock()
	added := m.trackLocked(p)
	if added {
		m.snapshot = m.buildSnapshotLocked()
	}
	snap := m.snapshot
	m.mu.Unlock()

	if added {
		m.log.Info("pair tracked", logger.String("pair", p.ID()))
		m.subs.publish(snap)
	}
	return added
}

// Untrack removes a pair and its result.
func (m *PairMonitor) Untrack(p models.PairKey) error {
	m.mu.Lock()
	k := p.Key()
	if _, ok := m.tracked[k]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPairNotTracked, p.ID())
	}
	delete(m.tracked, k)
	for i, o := range m.order {
		if o.Key() == k {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	m.results.Delete(p)
	m.snapshot = m.buildSnapshotLocked()
	snap := m.snapshot
	m.mu.Unlock()

	m.log.Info("pair untracked", logger.String("pair", p.ID()))
	m.subs.publish(snap)
	return nil
}

func (m *PairMonitor) Pairs() []models.PairKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.PairKey(nil), m.order...)
}

// Merge stores r if its pair is tracked. The last write per pair wins.
func (m *PairMonitor) Merge(r models.ResultRecord) error {
	m.mu.Lock()
	if _, ok := m.tracked[r.Pair.Key()]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPairNotTracked, r.Pair.ID())
	}
	m.mergeLocked(r)
	snap := m.snapshot
	m.mu.Unlock()

	m.subs.publish(snap)
	return nil
}

func (m *PairMonitor) mergeLocked(r models.ResultRecord) {
	// display keeps the tracked asset order even if the record came back as B,A
	if p, ok := m.tracked[r.Pair.Key()]; ok {
		r = r.Oriented(p)
	}
	m.results.Put(r)
	m.snapshot = m.buildSnapshotLocked()
}

func (m *PairMonitor) buildSnapshotLocked() models.Snapshot {
	stats := ranking.Aggregate(m.results)
	pending := 0
	for _, p := range m.order {
		if _, ok := m.results.Get(p); !ok {
			pending++
		}
	}
	return models.Snapshot{
		ID:          uuid.NewString(),
		GeneratedAt: m.now(),
		Statistics:  stats,
		Tracked:     len(m.order),
		Pending:     pending,
		Complete:    pending == 0,
	}
}

type fetchResult struct {
	pair models.PairKey
	rec  models.ResultRecord
	err  error
	took time.Duration
}

// Refresh polls every tracked pair concurrently and merges each result as it arrives.
// A failed pair keeps whatever it had before. The returned snapshot reflects the pass.
func (m *PairMonitor) Refresh(ctx context.Context) (models.Snapshot, error) {
	if m.store != nil {
		ok, err := m.store.TryLock(ctx, m.lockTTL)
		if err != nil {
			m.log.Warn("refresh lock unavailable, continuing without it", logger.Error(err))
		} else if !ok {
			return m.Snapshot(), ErrRefreshInProgress
		} else {
			defer func() {
				if err := m.store.Unlock(context.WithoutCancel(ctx)); err != nil {
					m.log.Warn("release refresh lock", logger.Error(err))
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	pairs := m.Pairs()
	start := time.Now()
	ch := make(chan fetchResult, len(pairs))
	var wg sync.WaitGroup
	for _, p := range pairs {
		wg.Add(1)
		go func(p models.PairKey) {
			defer wg.Done()
			t0 := time.Now()
			rec, err := m.source.FetchPairResult(ctx, p)
			ch <- fetchResult{pair: p, rec: rec, err: err, took: time.Since(t0)}
		}(p)
	}
	go func() { wg.Wait(); close(ch) }()

	failed := 0
	for res := range ch {
		m.metrics.RecordLatency("pair_fetch_seconds", res.took.Seconds())
		if res.err != nil {
			failed++
			m.metrics.RecordError("pair_fetch")
			m.log.Error("fetch pair result",
				logger.String("pair", res.pair.ID()),
				logger.Error(res.err))
			continue
		}
		m.metrics.RecordFetch("pair")
		m.mu.Lock()
		// the pair may have been untracked while the request was in flight
		if _, ok := m.tracked[res.pair.Key()]; ok {
			m.mergeLocked(res.rec)
		}
		m.mu.Unlock()
	}

	snap := m.Snapshot()
	m.metrics.RecordLatency("refresh_seconds", time.Since(start).Seconds())
	m.metrics.RecordStatistics(snap.Statistics)
	m.log.Info("refresh complete",
		logger.Int("pairs", len(pairs)),
		logger.Int("failed", failed),
		logger.Int("loaded", snap.Statistics.Total),
		logger.Duration("took", time.Since(start)))

	m.persist(ctx, &snap)
	m.subs.publish(snap)
	return snap, nil
}

func (m *PairMonitor) persist(ctx context.Context, snap *models.Snapshot) {
	ctx = context.WithoutCancel(ctx)
	if m.store != nil {
		if err := m.store.Save(ctx, snap); err != nil {
			m.metrics.RecordError("snapshot_save")
			m.log.Warn("save snapshot", logger.Error(err))
		}
	}
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, snap); err != nil {
			m.metrics.RecordError("snapshot_publish")
			m.log.Warn("publish snapshot", logger.Error(err))
		}
	}
}

// StoredSnapshot reads a persisted snapshot. The id "latest" returns the most recent one,
// which may come from another instance sharing the store.
func (m *PairMonitor) StoredSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	if m.store == nil {
		return nil, domrepo.ErrSnapshotNotFound
	}
	if id == "latest" {
		return m.store.Latest(ctx)
	}
	return m.store.ByID(ctx, id)
}

func (m *PairMonitor) Snapshot() models.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *PairMonitor) Statistics() models.Statistics {
	return m.Snapshot().Statistics
}

func (m *PairMonitor) Candidates() []models.CandidateEntry {
	return m.Snapshot().Statistics.RankedCandidates
}

func (m *PairMonitor) Recommendations(n int) []models.CandidateEntry {
	return ranking.TopN(m.Candidates(), n)
}

func (m *PairMonitor) Get(p models.PairKey) (models.ResultRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tracked[p.Key()]; !ok {
		return models.ResultRecord{}, false
	}
	return m.results.Get(p)
}

type RowQuery struct {
	Filter string
	Sort   string
	Search string
}

// Rows returns every tracked pair in tracking order, filtered, searched and sorted.
func (m *PairMonitor) Rows(q RowQuery) []models.Row {
	m.mu.RLock()
	rows := make([]models.Row, 0, len(m.order))
	for _, p := range m.order {
		row := models.Row{Pair: p}
		if r, ok := m.results.Get(p); ok {
			r := r
			row.Record = &r
		}
		rows = append(rows, row)
	}
	m.mu.RUnlock()

	rows = ranking.Filter(rows, q.Filter)
	rows = ranking.Search(rows, q.Search, ranking.RowText)
	if q.Sort != "" {
		rows = ranking.SortBy(rows, q.Sort)
	}
	return rows
}

// Subscribe delivers a snapshot after every change. Call the returned func to stop.
func (m *PairMonitor) Subscribe() (<-chan models.Snapshot, func()) {
	return m.subs.subscribe(4)
}
