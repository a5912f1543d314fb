package models

import (
	"errors"
	"math"
	"time"
)

var ErrMissingPair = errors.New("result without pair symbols")

// RawResult is the loosely typed backtest payload as the backend sends it.
// Numbers are pointers so a missing field can be told apart from a zero.
type RawResult struct {
	Asset1           string   `json:"asset1"`
	Asset2           string   `json:"asset2"`
	Correlation      *float64 `json:"correlation"`
	Beta             *float64 `json:"beta"`
	ZScore           *float64 `json:"zScore"`
	ZScoreAlt        *float64 `json:"zscore"`
	SignalType       string   `json:"signalType"`
	SignalRating     string   `json:"signalRating"`
	Spread           *float64 `json:"spread"`
	SpreadMean       *float64 `json:"spreadMean"`
	SpreadStd        *float64 `json:"spreadStd"`
	ArbitrageCount   *int     `json:"arbitrageCount"`
	LiquidationCount *int     `json:"liquidationCount"`
	StationaryTest   *bool    `json:"stationaryTest"`
}

// Normalize converts the payload into a strict ResultRecord. fallback supplies the pair
// when the payload omits the asset symbols.
func (r RawResult) Normalize(fallback PairKey, now time.Time) (ResultRecord, error) {
	pair := fallback
	if r.Asset1 != "" && r.Asset2 != "" {
		pair = NewPairKey(r.Asset1, r.Asset2)
	}
	if pair.AssetA == "" || pair.AssetB == "" {
		return ResultRecord{}, ErrMissingPair
	}

	z := firstFloat(r.ZScore, r.ZScoreAlt)
	rating := r.SignalRating
	if rating == "" {
		rating = RatingForZScore(z)
	}

	rec := ResultRecord{
		Pair:             pair,
		Correlation:      firstFloat(r.Correlation),
		Beta:             firstFloat(r.Beta),
		ZScore:           z,
		SignalType:       ParseSignalType(r.SignalType),
		SignalRating:     rating,
		Spread:           firstFloat(r.Spread),
		SpreadMean:       firstFloat(r.SpreadMean),
		SpreadStd:        firstFloat(r.SpreadStd),
		ArbitrageCount:   nonNegative(r.ArbitrageCount),
		LiquidationCount: nonNegative(r.LiquidationCount),
		StationaryTest:   r.StationaryTest == nil || *r.StationaryTest,
		ReceivedAt:       now,
	}
	return rec, nil
}

// firstFloat returns the first present, finite value, or 0.
func firstFloat(vs ...*float64) float64 {
	for _, v := range vs {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		return *v
	}
	return 0
}

func nonNegative(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}
