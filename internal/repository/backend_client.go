package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
	xhttp "PairWatch/pkg/http"
)

var ErrBackendStatus = errors.New("backend reported an error")

// BackendPaths are the backtest service endpoints, relative to the base URL.
type BackendPaths struct {
	BacktestPair      string
	SavedCombinations string
	ZScoreChart       string
	SpreadChart       string
	WindowSize        string
	SetWindowSize     string
}

func DefaultBackendPaths() BackendPaths {
	return BackendPaths{
		BacktestPair:      "/backtest/api/backtest-pair",
		SavedCombinations: "/backtest/api/saved-combinations",
		ZScoreChart:       "/api/charts/z-score",
		SpreadChart:       "/api/charts/spread",
		WindowSize:        "/api/trading-config/window-size",
		SetWindowSize:     "/api/trading-config/set-window-size",
	}
}

// BackendClient talks to the backtest service. Every response carries a
// {status, message} envelope; status "error" is turned into ErrBackendStatus.
type BackendClient struct {
	baseURL string
	paths   BackendPaths
	client  *xhttp.Client
	now     func() time.Time
}

func NewBackendClient(baseURL string, paths BackendPaths, timeout time.Duration, opts ...xhttp.ClientOption) *BackendClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		paths:   paths,
		client:  xhttp.NewClient(opts...),
		now:     time.Now,
	}
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (e envelope) err() error {
	if strings.EqualFold(e.Status, "error") {
		if e.Message == "" {
			return ErrBackendStatus
		}
		return fmt.Errorf("%w: %s", ErrBackendStatus, e.Message)
	}
	return nil
}

func (b *BackendClient) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("backend client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		QueryParams: query,
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

func (b *BackendClient) FetchPairResult(ctx context.Context, pair models.PairKey) (models.ResultRecord, error) {
	var resp struct {
		envelope
		Result *models.RawResult `json:"result"`
	}
	q := map[string][]string{"symbol1": {pair.AssetA}, "symbol2": {pair.AssetB}}
	if err := b.get(ctx, b.paths.BacktestPair, q, &resp); err != nil {
		return models.ResultRecord{}, err
	}
	if err := resp.err(); err != nil {
		return models.ResultRecord{}, fmt.Errorf("backtest %s: %w", pair.ID(), err)
	}
	if resp.Result == nil {
		return models.ResultRecord{}, fmt.Errorf("backtest %s: empty result", pair.ID())
	}
	return resp.Result.Normalize(pair, b.now())
}

// FetchSavedCombinations returns the pair list stored on the backend.
func (b *BackendClient) FetchSavedCombinations(ctx context.Context) ([]models.PairKey, error) {
	var resp struct {
		envelope
		Combinations []string `json:"combinations"`
	}
	if err := b.get(ctx, b.paths.SavedCombinations, nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	out := make([]models.PairKey, 0, len(resp.Combinations))
	for _, c := range resp.Combinations {
		if k, ok := models.ParsePairKey(c); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// chartPayload is the chartData object of both chart endpoints. The backend sends it
// either as an object or as a JSON-encoded string.
type chartPayload struct {
	ZScores        []float64 `json:"zScores"`
	Spreads        []float64 `json:"spreads"`
	Labels         []string  `json:"labels"`
	EntryThreshold *float64  `json:"entryThreshold"`
	ExitThreshold  *float64  `json:"exitThreshold"`
	LatestZScore   *float64  `json:"latestZScore"`
	LatestSpread   *float64  `json:"latestSpread"`
	SpreadMean     *float64  `json:"spreadMean"`
	SpreadStd      *float64  `json:"spreadStd"`
	StationaryTest *bool     `json:"stationaryTest"`
	Suggestion     string    `json:"suggestion"`
	WindowSize     int       `json:"windowSize"`
	Asset1         string    `json:"asset1"`
	Asset2         string    `json:"asset2"`
}

func decodeChartData(raw json.RawMessage) (chartPayload, error) {
	var p chartPayload
	if len(raw) == 0 || string(raw) == "null" {
		return p, fmt.Errorf("missing chartData")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return p, fmt.Errorf("decode chartData string: %w", err)
		}
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode chartData: %w", err)
	}
	return p, nil
}

func (b *BackendClient) FetchSeries(ctx context.Context, kind models.SeriesKind) (models.SeriesWindow, error) {
	path := b.paths.ZScoreChart
	if kind == models.SeriesSpread {
		path = b.paths.SpreadChart
	}

	var resp struct {
		envelope
		ChartData json.RawMessage `json:"chartData"`
		Asset1    string          `json:"asset1"`
		Asset2    string          `json:"asset2"`
	}
	if err := b.get(ctx, path, nil, &resp); err != nil {
		return models.SeriesWindow{}, err
	}
	if err := resp.err(); err != nil {
		return models.SeriesWindow{}, fmt.Errorf("%s chart: %w", kind, err)
	}
	p, err := decodeChartData(resp.ChartData)
	if err != nil {
		return models.SeriesWindow{}, fmt.Errorf("%s chart: %w", kind, err)
	}

	w := models.SeriesWindow{
		Kind:       kind,
		Labels:     p.Labels,
		WindowSize: p.WindowSize,
		Stationary: p.StationaryTest,
		AssetA:     firstNonEmpty(p.Asset1, resp.Asset1),
		AssetB:     firstNonEmpty(p.Asset2, resp.Asset2),
	}
	switch kind {
	case models.SeriesZScore:
		w.Values = p.ZScores
		w.Latest = p.LatestZScore
		if p.EntryThreshold != nil {
			w.EntryThreshold = *p.EntryThreshold
		}
		if p.ExitThreshold != nil {
			w.ExitThreshold = *p.ExitThreshold
		}
	default:
		w.Values = p.Spreads
		w.Latest = p.LatestSpread
		w.Mean = p.SpreadMean
		w.Std = p.SpreadStd
	}
	return w, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func (b *BackendClient) FetchWindowSize(ctx context.Context) (int, error) {
	var resp struct {
		envelope
		WindowSize int `json:"windowSize"`
	}
	if err := b.get(ctx, b.paths.WindowSize, nil, &resp); err != nil {
		return 0, err
	}
	if err := resp.err(); err != nil {
		return 0, err
	}
	return resp.WindowSize, nil
}

func (b *BackendClient) SetWindowSize(ctx context.Context, size int) error {
	if !models.ValidWindowSize(size) {
		return fmt.Errorf("%w: %d", domrepo.ErrWindowSizeOutOfRange, size)
	}
	var resp envelope
	q := map[string][]string{"windowSize": {strconv.Itoa(size)}}
	if err := b.get(ctx, b.paths.SetWindowSize, q, &resp); err != nil {
		return err
	}
	return resp.err()
}

var (
	_ domrepo.PairSource   = (*BackendClient)(nil)
	_ domrepo.SeriesSource = (*BackendClient)(nil)
	_ domrepo.WindowConfig = (*BackendClient)(nil)
)
