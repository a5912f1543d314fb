package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
	"PairWatch/internal/services/bands"
	"PairWatch/pkg/logger"
)

func window(kind models.SeriesKind, n, size int) models.SeriesWindow {
	w := models.SeriesWindow{Kind: kind, WindowSize: size, EntryThreshold: 2, ExitThreshold: 0.5}
	for i := 1; i <= n; i++ {
		w.Labels = append(w.Labels, fmt.Sprintf("t%d", i))
		w.Values = append(w.Values, float64(i%5)-2)
	}
	return w
}

func newChartSync(series *fakeSeries, win *fakeWindow) (*ChartSync, *fakeMetrics) {
	m := newFakeMetrics()
	zs := bands.NewSynchronizer(models.SeriesZScore, bands.NewChart(models.SeriesZScore))
	sp := bands.NewSynchronizer(models.SeriesSpread, bands.NewChart(models.SeriesSpread))
	return NewChartSync(series, win, zs, sp, m, logger.Nop(), 25, 0), m
}

func TestChartSyncRefresh(t *testing.T) {
	series := &fakeSeries{windows: map[models.SeriesKind]models.SeriesWindow{
		models.SeriesZScore: window(models.SeriesZScore, 25, 0),
		models.SeriesSpread: window(models.SeriesSpread, 25, 0),
	}}
	cs, _ := newChartSync(series, &fakeWindow{size: 25})
	cs.Init(context.Background())

	if err := cs.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	v := cs.Views()
	if v.ZScore.State != bands.Ready || v.Spread.State != bands.Ready {
		t.Fatalf("charts not ready %+v", v)
	}
	if v.ZScore.WindowSize != 25 || len(v.Spread.Labels) != 25 || v.ZScore.MaxTicks != 10 {
		t.Fatalf("unexpected views %+v", v)
	}
}

// Scenario C: a response for the old size must not update the charts after a change.
func TestChartSyncDiscardsStaleWindow(t *testing.T) {
	series := &fakeSeries{windows: map[models.SeriesKind]models.SeriesWindow{
		models.SeriesZScore: window(models.SeriesZScore, 30, 30),
		models.SeriesSpread: window(models.SeriesSpread, 30, 30),
	}}
	win := &fakeWindow{size: 25}
	cs, metrics := newChartSync(series, win)
	cs.Init(context.Background())

	stale := window(models.SeriesZScore, 25, 25)
	if err := cs.SetWindowSize(context.Background(), 30); err != nil {
		t.Fatalf("set window size: %v", err)
	}
	if err := cs.Accept(stale); !errors.Is(err, ErrStaleSeries) {
		t.Fatalf("expected stale rejection, got %v", err)
	}
	if metrics.stale[string(models.SeriesZScore)] != 1 {
		t.Fatalf("stale response not counted")
	}

	v := cs.Views()
	if v.WindowSize != 30 || len(v.ZScore.Labels) != 30 || v.ZScore.WindowSize != 30 {
		t.Fatalf("only the 30-point response may update the chart: %+v", v.ZScore)
	}
}

// heldSeries blocks the first hold requests until release is closed and answers them
// with 25 points. Later requests get 30 points. Neither carries a window size.
type heldSeries struct {
	mu      sync.Mutex
	hold    int
	started chan struct{}
	release chan struct{}
}

func (s *heldSeries) FetchSeries(ctx context.Context, kind models.SeriesKind) (models.SeriesWindow, error) {
	s.mu.Lock()
	held := s.hold > 0
	if held {
		s.hold--
	}
	s.mu.Unlock()
	if !held {
		return window(kind, 30, 0), nil
	}
	s.started <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
		return models.SeriesWindow{}, ctx.Err()
	}
	return window(kind, 25, 0), nil
}

func TestChartSyncRefreshTagsIssuedWindowSize(t *testing.T) {
	series := &heldSeries{hold: 2, started: make(chan struct{}, 2), release: make(chan struct{})}
	m := newFakeMetrics()
	zs := bands.NewSynchronizer(models.SeriesZScore, bands.NewChart(models.SeriesZScore))
	sp := bands.NewSynchronizer(models.SeriesSpread, bands.NewChart(models.SeriesSpread))
	cs := NewChartSync(series, &fakeWindow{size: 25}, zs, sp, m, logger.Nop(), 25, 0)
	cs.Init(context.Background())

	done := make(chan error, 1)
	go func() { done <- cs.Refresh(context.Background()) }()
	for i := 0; i < 2; i++ {
		select {
		case <-series.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("requests for size 25 never issued")
		}
	}

	if err := cs.SetWindowSize(context.Background(), 30); err != nil {
		t.Fatalf("set window size: %v", err)
	}
	before := cs.Views()
	if before.WindowSize != 30 || len(before.ZScore.Labels) != 30 || len(before.Spread.Labels) != 30 {
		t.Fatalf("reload for size 30 not applied: %+v", before)
	}

	close(series.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stale refresh should not fail: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("in-flight refresh never finished")
	}

	after := cs.Views()
	if len(after.ZScore.Labels) != 30 || len(after.Spread.Labels) != 30 || after.ZScore.WindowSize != 30 {
		t.Fatalf("late 25-point response touched the charts: %+v", after)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stale[string(models.SeriesZScore)] != 1 || m.stale[string(models.SeriesSpread)] != 1 {
		t.Fatalf("stale responses not counted: %+v", m.stale)
	}
}

func TestChartSyncWindowSizeValidatedLocally(t *testing.T) {
	win := &fakeWindow{size: 25}
	cs, _ := newChartSync(&fakeSeries{}, win)
	for _, n := range []int{9, 1001, 0, -5} {
		if err := cs.SetWindowSize(context.Background(), n); !errors.Is(err, domrepo.ErrWindowSizeOutOfRange) {
			t.Fatalf("n=%d expected ErrWindowSizeOutOfRange, got %v", n, err)
		}
	}
	if len(win.sets) != 0 {
		t.Fatalf("out of range values reached the backend: %v", win.sets)
	}
}

func TestChartSyncSetFailureRefetches(t *testing.T) {
	win := &fakeWindow{size: 40, setErr: errBackend}
	cs, metrics := newChartSync(&fakeSeries{}, win)

	if err := cs.SetWindowSize(context.Background(), 60); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if cs.WindowSize() != 40 || cs.Pending() {
		t.Fatalf("size=%d pending=%v", cs.WindowSize(), cs.Pending())
	}
	if metrics.count("window_size_set") != 1 {
		t.Fatalf("set failure not counted")
	}
}

func TestChartSyncMalformedKeepsChart(t *testing.T) {
	series := &fakeSeries{windows: map[models.SeriesKind]models.SeriesWindow{
		models.SeriesZScore: window(models.SeriesZScore, 25, 25),
		models.SeriesSpread: window(models.SeriesSpread, 25, 25),
	}}
	cs, _ := newChartSync(series, &fakeWindow{size: 25})
	if err := cs.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	bad := window(models.SeriesSpread, 25, 25)
	bad.Values = bad.Values[:10]
	if err := cs.Accept(bad); !errors.Is(err, bands.ErrMalformedSeries) {
		t.Fatalf("expected malformed, got %v", err)
	}
	if v, _ := cs.View(models.SeriesSpread); v.State != bands.Ready || len(v.Values) != 25 {
		t.Fatalf("malformed payload changed chart %+v", v)
	}
}

func TestChartSyncFetchError(t *testing.T) {
	cs, metrics := newChartSync(&fakeSeries{err: errBackend}, &fakeWindow{size: 25})
	if err := cs.Refresh(context.Background()); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if metrics.count("series_fetch") != 2 {
		t.Fatalf("series errors=%d", metrics.count("series_fetch"))
	}
	if cs.Views().ZScore.State != bands.Uninitialized {
		t.Fatalf("chart should stay uninitialized")
	}
}
