package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
	"PairWatch/internal/services/bands"
	"PairWatch/pkg/logger"
)

var ErrStaleSeries = errors.New("series produced for a different window size")

// ChartViews is the pair of charts the dashboard renders side by side.
type ChartViews struct {
	ZScore     bands.ChartView `json:"zScore"`
	Spread     bands.ChartView `json:"spread"`
	WindowSize int             `json:"windowSize"`
	Pending    bool            `json:"pending"`
}

// ChartSync keeps the z-score and spread charts in step with the configured window size.
// Only series produced for the currently accepted size may update the charts.
type ChartSync struct {
	series  domrepo.SeriesSource
	window  domrepo.WindowConfig
	metrics domrepo.Metrics
	log     *logger.Logger
	timeout time.Duration

	syncs map[models.SeriesKind]*bands.Synchronizer

	mu         sync.Mutex
	windowSize int
	pending    bool

	subs *broadcaster[ChartViews]
}

func NewChartSync(series domrepo.SeriesSource, window domrepo.WindowConfig, zscore, spread *bands.Synchronizer, metrics domrepo.Metrics, log *logger.Logger, defaultWindow int, timeout time.Duration) *ChartSync {
	if !models.ValidWindowSize(defaultWindow) {
		defaultWindow = 100
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChartSync{
		series:     series,
		window:     window,
		metrics:    metrics,
		log:        log,
		timeout:    timeout,
		syncs:      map[models.SeriesKind]*bands.Synchronizer{models.SeriesZScore: zscore, models.SeriesSpread: spread},
		windowSize: defaultWindow,
		subs:       newBroadcaster[ChartViews](),
	}
}

// Init reads the window size from the backend. On failure the default is kept.
func (c *ChartSync) Init(ctx context.Context) {
	if _, err := c.reloadWindowSize(ctx); err != nil {
		c.log.Warn("fetch window size, keeping default",
			logger.Int("window_size", c.WindowSize()),
			logger.Error(err))
	}
}

func (c *ChartSync) reloadWindowSize(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	n, err := c.window.FetchWindowSize(ctx)
	if err != nil {
		c.metrics.RecordError("window_size_fetch")
		return 0, err
	}
	if !models.ValidWindowSize(n) {
		return 0, fmt.Errorf("%w: backend reported %d", domrepo.ErrWindowSizeOutOfRange, n)
	}
	c.mu.Lock()
	changed := c.windowSize != n
	c.windowSize = n
	if changed {
		c.resetLocked()
	}
	c.mu.Unlock()
	return n, nil
}

func (c *ChartSync) WindowSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowSize
}

// Pending reports whether a window size change is waiting for the backend.
func (c *ChartSync) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *ChartSync) resetLocked() {
	for _, s := range c.syncs {
		s.Reset()
	}
}

// SetWindowSize validates n locally, asks the backend to change it and, once accepted,
// resets both charts and reloads them. Out of range values never reach the backend.
func (c *ChartSync) SetWindowSize(ctx context.Context, n int) error {
	if !models.ValidWindowSize(n) {
		return fmt.Errorf("%w: %d not in [%d, %d]", domrepo.ErrWindowSizeOutOfRange, n, models.MinWindowSize, models.MaxWindowSize)
	}

	c.mu.Lock()
	c.pending = true
	c.mu.Unlock()
	c.subs.publish(c.Views())

	setCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.window.SetWindowSize(setCtx, n)
	cancel()
	if err != nil {
		c.metrics.RecordError("window_size_set")
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
		if cur, rerr := c.reloadWindowSize(ctx); rerr == nil {
			c.log.Warn("window size update rejected", logger.Int("requested", n), logger.Int("current", cur), logger.Error(err))
		} else {
			c.log.Error("window size update failed", logger.Int("requested", n), logger.Error(err))
		}
		c.subs.publish(c.Views())
		return fmt.Errorf("set window size: %w", err)
	}

	c.mu.Lock()
	c.windowSize = n
	c.pending = false
	c.resetLocked()
	c.mu.Unlock()
	c.log.Info("window size updated", logger.Int("window_size", n))

	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("reload charts after window change", logger.Error(err))
	}
	return nil
}

// Refresh fetches both series concurrently, tagging each request with the window size
// current at issue time.
func (c *ChartSync) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	issued := c.WindowSize()
	kinds := []models.SeriesKind{models.SeriesZScore, models.SeriesSpread}
	errs := make([]error, len(kinds))
	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind models.SeriesKind) {
			defer wg.Done()
			start := time.Now()
			w, err := c.series.FetchSeries(ctx, kind)
			c.metrics.RecordLatency("series_fetch_seconds", time.Since(start).Seconds())
			if err != nil {
				c.metrics.RecordError("series_fetch")
				c.log.Error("fetch series", logger.String("kind", string(kind)), logger.Error(err))
				errs[i] = err
				return
			}
			c.metrics.RecordFetch(string(kind))
			if w.WindowSize == 0 {
				w.WindowSize = issued
			}
			if w.Kind == "" {
				w.Kind = kind
			}
			if err := c.Accept(w); err != nil && !errors.Is(err, ErrStaleSeries) {
				errs[i] = err
			}
		}(i, kind)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Accept applies w to its chart unless it was produced for a window size other than the
// accepted one. Stale and malformed windows leave the chart untouched.
func (c *ChartSync) Accept(w models.SeriesWindow) error {
	s, ok := c.syncs[w.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", bands.ErrMalformedSeries, w.Kind)
	}

	c.mu.Lock()
	if w.WindowSize != c.windowSize {
		current := c.windowSize
		c.mu.Unlock()
		c.metrics.RecordStale(string(w.Kind))
		c.log.Warn("discarding stale series",
			logger.String("kind", string(w.Kind)),
			logger.Int("window_size", w.WindowSize),
			logger.Int("current", current))
		return ErrStaleSeries
	}
	err := s.Apply(w)
	c.mu.Unlock()

	if err != nil {
		c.metrics.RecordError("series_malformed")
		c.log.Warn("malformed series", logger.String("kind", string(w.Kind)), logger.Error(err))
		return err
	}
	c.subs.publish(c.Views())
	return nil
}

func (c *ChartSync) View(kind models.SeriesKind) (bands.ChartView, error) {
	s, ok := c.syncs[kind]
	if !ok {
		return bands.ChartView{}, fmt.Errorf("unknown series kind %q", kind)
	}
	return s.View(), nil
}

func (c *ChartSync) Views() ChartViews {
	c.mu.Lock()
	size, pending := c.windowSize, c.pending
	c.mu.Unlock()
	return ChartViews{
		ZScore:     c.syncs[models.SeriesZScore].View(),
		Spread:     c.syncs[models.SeriesSpread].View(),
		WindowSize: size,
		Pending:    pending,
	}
}

func (c *ChartSync) Subscribe() (<-chan ChartViews, func()) {
	return c.subs.subscribe(4)
}
