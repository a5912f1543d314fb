package bands

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"PairWatch/internal/domain/models"
	"PairWatch/internal/services/features"
)

var ErrMalformedSeries = errors.New("malformed series")

type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ready":
		*s = Ready
	case "uninitialized":
		*s = Uninitialized
	default:
		return fmt.Errorf("unknown chart state %q", b)
	}
	return nil
}

// Summary describes the latest point of a series.
type Summary struct {
	Latest float64 `json:"latest"`
	// z-score only
	EntryThreshold float64           `json:"entryThreshold,omitempty"`
	ExitThreshold  float64           `json:"exitThreshold,omitempty"`
	Suggestion     models.SignalType `json:"suggestion,omitempty"`
	// spread only
	Mean            float64 `json:"mean,omitempty"`
	Std             float64 `json:"std,omitempty"`
	Deviation       float64 `json:"deviation,omitempty"`
	DeviationSigmas float64 `json:"deviationSigmas,omitempty"`

	AssetA string `json:"asset1,omitempty"`
	AssetB string `json:"asset2,omitempty"`
}

// Chart is the render target a Synchronizer draws into.
type Chart struct {
	Kind       models.SeriesKind
	Labels     []string
	Values     []float64
	Bands      BandSet
	Axis       AxisRange
	MaxTicks   int
	WindowSize int
	Summary    Summary
	Degraded   bool
	UpdatedAt  time.Time
}

func NewChart(kind models.SeriesKind) *Chart {
	return &Chart{Kind: kind}
}

func (c *Chart) clear() {
	*c = Chart{Kind: c.Kind}
}

// ChartView is a read-only copy of a chart and its state.
type ChartView struct {
	Kind       models.SeriesKind `json:"kind"`
	State      State             `json:"state"`
	Title      string            `json:"title"`
	Labels     []string          `json:"labels"`
	Values     []float64         `json:"values"`
	Bands      BandSet           `json:"bands"`
	Axis       AxisRange         `json:"axis"`
	MaxTicks   int               `json:"maxTicks"`
	WindowSize int               `json:"windowSize"`
	Summary    Summary           `json:"summary"`
	Degraded   bool              `json:"degraded"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type Option func(*Synchronizer)

// WithThresholdDefaults sets the thresholds used when a z-score payload omits them.
func WithThresholdDefaults(entry, exit float64) Option {
	return func(s *Synchronizer) {
		s.entryDefault = thresholdOr(entry, DefaultEntryThreshold)
		s.exitDefault = thresholdOr(exit, DefaultExitThreshold)
	}
}

func WithZScoreAxisLimit(limit float64) Option {
	return func(s *Synchronizer) { s.zAxis = FixedAxis(limit) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// Synchronizer keeps one chart in step with incoming series windows.
// It moves Uninitialized -> Ready on the first good Apply and back on Reset.
type Synchronizer struct {
	mu    sync.RWMutex
	kind  models.SeriesKind
	chart *Chart
	state State

	entryDefault float64
	exitDefault  float64
	zAxis        AxisRange
	now          func() time.Time
}

func NewSynchronizer(kind models.SeriesKind, chart *Chart, opts ...Option) *Synchronizer {
	if chart == nil {
		chart = NewChart(kind)
	}
	chart.Kind = kind
	s := &Synchronizer{
		kind:         kind,
		chart:        chart,
		entryDefault: DefaultEntryThreshold,
		exitDefault:  DefaultExitThreshold,
		zAxis:        ZScoreAxis(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Synchronizer) Kind() models.SeriesKind { return s.kind }

func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Apply draws w into the chart. A malformed window returns ErrMalformedSeries and
// leaves the chart as it was.
func (s *Synchronizer) Apply(w models.SeriesWindow) error {
	if err := s.validate(w); err != nil {
		return err
	}

	var next Chart
	switch s.kind {
	case models.SeriesZScore:
		next = s.buildZScore(w)
	default:
		next = s.buildSpread(w)
	}
	next.Kind = s.kind
	next.Labels = append([]string(nil), w.Labels...)
	next.Values = append([]float64(nil), w.Values...)
	next.MaxTicks = MaxTicks(len(w.Labels))
	next.WindowSize = w.WindowSize
	next.Degraded = w.Stationary != nil && !*w.Stationary
	next.Summary.AssetA = w.AssetA
	next.Summary.AssetB = w.AssetB
	next.UpdatedAt = s.now()

	s.mu.Lock()
	*s.chart = next
	s.state = Ready
	s.mu.Unlock()
	return nil
}

func (s *Synchronizer) validate(w models.SeriesWindow) error {
	if w.Kind != "" && w.Kind != s.kind {
		return fmt.Errorf("%w: got %s series for %s chart", ErrMalformedSeries, w.Kind, s.kind)
	}
	if len(w.Values) != len(w.Labels) {
		return fmt.Errorf("%w: %d values for %d labels", ErrMalformedSeries, len(w.Values), len(w.Labels))
	}
	for i, v := range w.Values {
		if badFloat(v) {
			return fmt.Errorf("%w: non-finite value at %d", ErrMalformedSeries, i)
		}
	}
	if s.kind == models.SeriesZScore && (badFloat(w.EntryThreshold) || badFloat(w.ExitThreshold)) {
		return fmt.Errorf("%w: non-finite threshold", ErrMalformedSeries)
	}
	if s.kind == models.SeriesSpread && (badPtr(w.Mean) || badPtr(w.Std)) {
		return fmt.Errorf("%w: non-finite spread statistics", ErrMalformedSeries)
	}
	return nil
}

func badFloat(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

func badPtr(v *float64) bool { return v != nil && badFloat(*v) }

func latestOf(w models.SeriesWindow) float64 {
	if w.Latest != nil && !badFloat(*w.Latest) {
		return *w.Latest
	}
	v, _ := features.Last(w.Values)
	return v
}

func (s *Synchronizer) buildZScore(w models.SeriesWindow) Chart {
	entry := thresholdOr(w.EntryThreshold, s.entryDefault)
	exit := thresholdOr(w.ExitThreshold, s.exitDefault)
	latest := latestOf(w)
	return Chart{
		Bands: ZScoreBands(len(w.Labels), entry, exit),
		Axis:  s.zAxis,
		Summary: Summary{
			Latest:         latest,
			EntryThreshold: entry,
			ExitThreshold:  exit,
			Suggestion:     Suggest(latest, entry, exit),
		},
	}
}

func (s *Synchronizer) buildSpread(w models.SeriesWindow) Chart {
	mean, std := SpreadStats(w)
	latest := latestOf(w)
	dev, sig := features.Deviation(latest, mean, std)
	return Chart{
		Bands: SpreadBands(len(w.Labels), mean, std),
		Axis:  SpreadAxis(mean, std),
		Summary: Summary{
			Latest:          latest,
			Mean:            mean,
			Std:             std,
			Deviation:       dev,
			DeviationSigmas: sig,
		},
	}
}

// SpreadStats returns the mean and σ for a spread window, deriving missing values from
// the series itself. A non-positive σ becomes DefaultSpreadStd.
func SpreadStats(w models.SeriesWindow) (mean, std float64) {
	dMean, dStd, _ := features.MeanStd(w.Values)
	mean = dMean
	if w.Mean != nil {
		mean = *w.Mean
	}
	std = dStd
	if w.Std != nil {
		std = *w.Std
	}
	if std <= 0 {
		std = DefaultSpreadStd
	}
	return mean, std
}

// Suggest maps the latest z-score onto a trade suggestion. Entry is checked before exit.
func Suggest(z, entry, exit float64) models.SignalType {
	switch {
	case z > entry:
		return models.SignalShortALongB
	case z < -entry:
		return models.SignalLongAShortB
	case math.Abs(z) < exit:
		return models.SignalClosePositions
	default:
		return models.SignalNone
	}
}

// Reset discards the chart contents and returns to Uninitialized.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.chart.clear()
	s.state = Uninitialized
	s.mu.Unlock()
}

// View returns a copy of the chart that callers may keep.
func (s *Synchronizer) View() ChartView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.chart
	v := ChartView{
		Kind:       s.kind,
		State:      s.state,
		Title:      title(s.kind, len(c.Labels)),
		Labels:     append([]string(nil), c.Labels...),
		Values:     append([]float64(nil), c.Values...),
		Axis:       c.Axis,
		MaxTicks:   c.MaxTicks,
		WindowSize: c.WindowSize,
		Summary:    c.Summary,
		Degraded:   c.Degraded,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.Bands != nil {
		v.Bands = make(BandSet, len(c.Bands))
		for i, b := range c.Bands {
			b.Points = append([]float64(nil), b.Points...)
			v.Bands[i] = b
		}
	}
	return v
}

func title(kind models.SeriesKind, n int) string {
	if kind == models.SeriesZScore {
		return fmt.Sprintf("Z-Score (window %d)", n)
	}
	return fmt.Sprintf("Spread (window %d)", n)
}
