package usecase

import (
	"context"
	"errors"
	"testing"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
	"PairWatch/pkg/logger"
)

func record(a, b string, corr, z float64, sig models.SignalType) models.ResultRecord {
	return models.ResultRecord{
		Pair: models.NewPairKey(a, b), Correlation: corr, ZScore: z,
		SignalType: sig, SignalRating: models.RatingForZScore(z), StationaryTest: true,
	}
}

func newMonitor(src *fakePairSource, pairs ...models.PairKey) (*PairMonitor, *fakeMetrics) {
	m := newFakeMetrics()
	return NewPairMonitor(src, m, logger.Nop(), pairs), m
}

func TestPairMonitorRefresh(t *testing.T) {
	src := newFakePairSource()
	src.set(record("A", "B", 0.95, 2.6, models.SignalLongAShortB))
	src.set(record("C", "D", 0.5, 1.0, models.SignalNone))
	mon, metrics := newMonitor(src, models.NewPairKey("A", "B"), models.NewPairKey("C", "D"))

	if snap := mon.Snapshot(); snap.Pending != 2 || snap.Complete {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}

	snap, err := mon.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.Statistics.Total != 2 || !snap.Complete || snap.ID == "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if got := snap.Statistics.RankedCandidates[0].PairID; got != "A,B" {
		t.Fatalf("top candidate %s", got)
	}
	if len(metrics.stats) != 1 {
		t.Fatalf("statistics not recorded")
	}
	if recs := mon.Recommendations(5); len(recs) != 2 {
		t.Fatalf("recommendations=%d", len(recs))
	}
}

func TestPairMonitorFailedFetchKeepsPrevious(t *testing.T) {
	src := newFakePairSource()
	ab := models.NewPairKey("A", "B")
	cd := models.NewPairKey("C", "D")
	src.set(record("A", "B", 0.9, 2.2, models.SignalShortALongB))
	src.failPair(cd)
	mon, metrics := newMonitor(src, ab, cd)

	snap, _ := mon.Refresh(context.Background())
	if snap.Statistics.Total != 1 || snap.Pending != 1 {
		t.Fatalf("failed pair must stay absent: %+v", snap)
	}
	if metrics.count("pair_fetch") != 1 {
		t.Fatalf("fetch error not counted")
	}

	src.failPair(ab)
	snap, _ = mon.Refresh(context.Background())
	rec, ok := mon.Get(ab)
	if !ok || rec.ZScore != 2.2 || snap.Statistics.Total != 1 {
		t.Fatalf("previous record should survive a failed poll: %+v ok=%v", rec, ok)
	}
}

func TestPairMonitorTrackUntrack(t *testing.T) {
	src := newFakePairSource()
	mon, _ := newMonitor(src)

	if !mon.Track(models.NewPairKey("ETH", "BTC")) {
		t.Fatalf("expected track")
	}
	if mon.Track(models.NewPairKey("BTC", "ETH")) {
		t.Fatalf("reversed pair should count as tracked")
	}

	src.set(record("BTC", "ETH", 0.8, -2.1, models.SignalLongAShortB))
	mon.Refresh(context.Background())
	rows := mon.Rows(RowQuery{})
	if len(rows) != 1 || !rows[0].Loaded() || rows[0].Pair.ID() != "ETH,BTC" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if err := mon.Untrack(models.NewPairKey("BTC", "ETH")); err != nil {
		t.Fatalf("untrack: %v", err)
	}
	if mon.Statistics().Total != 0 || len(mon.Pairs()) != 0 {
		t.Fatalf("untracked pair still counted")
	}
	if err := mon.Untrack(models.NewPairKey("X", "Y")); !errors.Is(err, ErrPairNotTracked) {
		t.Fatalf("expected ErrPairNotTracked, got %v", err)
	}
}

func TestPairMonitorMergeLastWriteWins(t *testing.T) {
	mon, _ := newMonitor(newFakePairSource(), models.NewPairKey("A", "B"), models.NewPairKey("C", "D"))
	sub, cancel := mon.Subscribe()
	defer cancel()

	if err := mon.Merge(record("C", "D", 0.7, 1, models.SignalNone)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := mon.Merge(record("A", "B", 0.7, 1, models.SignalNone)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := mon.Merge(record("D", "C", 0.9, 3, models.SignalShortALongB)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := mon.Merge(record("X", "Y", 0.9, 3, models.SignalNone)); !errors.Is(err, ErrPairNotTracked) {
		t.Fatalf("untracked merge should fail, got %v", err)
	}

	stats := mon.Statistics()
	if stats.Total != 2 || stats.RankedCandidates[0].PairID != "C,D" || stats.RankedCandidates[0].AbsZScore != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	select {
	case s := <-sub:
		if s.Tracked != 2 {
			t.Fatalf("unexpected pushed snapshot %+v", s)
		}
	default:
		t.Fatalf("expected a pushed snapshot")
	}
}

func TestPairMonitorRowsQuery(t *testing.T) {
	mon, _ := newMonitor(newFakePairSource(), models.NewPairKey("A", "B"), models.NewPairKey("C", "D"), models.NewPairKey("E", "F"))
	mon.Merge(record("A", "B", 0.5, 0.5, models.SignalNone))
	mon.Merge(record("C", "D", 0.95, 2.5, models.SignalLongAShortB))

	rows := mon.Rows(RowQuery{Filter: "highCorrelation", Sort: "corr-desc"})
	if len(rows) != 2 || rows[0].Pair.ID() != "C,D" || rows[1].Loaded() {
		t.Fatalf("unexpected rows %+v", rows)
	}
	rows = mon.Rows(RowQuery{Search: "c,d"})
	if len(rows) != 1 {
		t.Fatalf("search rows=%d", len(rows))
	}
}

func TestPairMonitorRefreshLock(t *testing.T) {
	store := &fakeStore{locked: true}
	src := newFakePairSource()
	mon := NewPairMonitor(src, newFakeMetrics(), logger.Nop(), []models.PairKey{models.NewPairKey("A", "B")}, WithSnapshotStore(store))

	if _, err := mon.Refresh(context.Background()); !errors.Is(err, ErrRefreshInProgress) {
		t.Fatalf("expected ErrRefreshInProgress, got %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("backend polled while locked")
	}

	store.Unlock(context.Background())
	src.set(record("A", "B", 0.9, 2.1, models.SignalNone))
	if _, err := mon.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(store.saved) != 1 || store.locked {
		t.Fatalf("snapshot not saved or lock not released: saved=%d locked=%v", len(store.saved), store.locked)
	}
}

func TestPairMonitorStoredSnapshot(t *testing.T) {
	src := newFakePairSource()
	src.set(record("A", "B", 0.9, 2.1, models.SignalNone))

	bare, _ := newMonitor(src, models.NewPairKey("A", "B"))
	if _, err := bare.StoredSnapshot(context.Background(), "latest"); !errors.Is(err, domrepo.ErrSnapshotNotFound) {
		t.Fatalf("expected not found without a store, got %v", err)
	}

	store := &fakeStore{}
	mon := NewPairMonitor(src, newFakeMetrics(), logger.Nop(), []models.PairKey{models.NewPairKey("A", "B")}, WithSnapshotStore(store))
	snap, err := mon.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	latest, err := mon.StoredSnapshot(context.Background(), "latest")
	if err != nil || latest.ID != snap.ID {
		t.Fatalf("latest = %+v, %v", latest, err)
	}
	byID, err := mon.StoredSnapshot(context.Background(), snap.ID)
	if err != nil || byID.Statistics.Total != 1 {
		t.Fatalf("by id = %+v, %v", byID, err)
	}
	if _, err := mon.StoredSnapshot(context.Background(), "missing"); !errors.Is(err, domrepo.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
