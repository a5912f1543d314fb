package models

import "fmt"

// SeriesKind selects one of the two chart series.
type SeriesKind string

const (
	SeriesZScore SeriesKind = "zscore"
	SeriesSpread SeriesKind = "spread"
)

// Window size bounds accepted by the backend.
const (
	MinWindowSize = 10
	MaxWindowSize = 1000
)

// ValidWindowSize reports whether n lies within [MinWindowSize, MaxWindowSize].
func ValidWindowSize(n int) bool {
	return n >= MinWindowSize && n <= MaxWindowSize
}

func ParseSeriesKind(s string) (SeriesKind, error) {
	switch SeriesKind(s) {
	case SeriesZScore, SeriesSpread:
		return SeriesKind(s), nil
	case "z-score":
		return SeriesZScore, nil
	default:
		return "", fmt.Errorf("unknown series kind %q", s)
	}
}

// SeriesWindow is one time-series payload plus the context needed to draw its bands.
// Optional scalars are pointers; nil means the backend did not send them.
type SeriesWindow struct {
	Kind   SeriesKind `json:"kind"`
	Values []float64  `json:"values"`
	Labels []string   `json:"labels"`
	// WindowSize is the configured size the series was produced for.
	WindowSize int `json:"windowSize"`

	EntryThreshold float64 `json:"entryThreshold,omitempty"`
	ExitThreshold  float64 `json:"exitThreshold,omitempty"`

	Mean *float64 `json:"mean,omitempty"`
	Std  *float64 `json:"std,omitempty"`

	Latest     *float64 `json:"latest,omitempty"`
	Stationary *bool    `json:"stationary,omitempty"`
	AssetA     string   `json:"asset1,omitempty"`
	AssetB     string   `json:"asset2,omitempty"`
}
