package models

import "time"

// CandidateEntry is one row of the recommendation ranking, derived from a ResultRecord.
type CandidateEntry struct {
	PairID         string     `json:"pairId"`
	AssetA         string     `json:"asset1"`
	AssetB         string     `json:"asset2"`
	AbsCorrelation float64    `json:"correlation"`
	AbsZScore      float64    `json:"zScore"`
	SignalType     SignalType `json:"signalType"`
	SignalRating   string     `json:"signalRating"`
	StationaryTest bool       `json:"stationaryTest"`
	// Degraded flags a failed stationarity test; the score is unaffected.
	Degraded bool    `json:"degraded"`
	Score    float64 `json:"score"`
}

// Statistics summarises every loaded record of a pass.
type Statistics struct {
	Total                int              `json:"total"`
	HighCorrelationCount int              `json:"highCorrelation"`
	StrongSignalCount    int              `json:"strongSignal"`
	HasSignalCount       int              `json:"hasSignal"`
	AvgCorrelation       float64          `json:"avgCorrelation"`
	AvgAbsZScore         float64          `json:"avgZScore"`
	RankedCandidates     []CandidateEntry `json:"rankedCandidates"`
}

// Snapshot is what the view layer receives after each aggregation pass.
type Snapshot struct {
	ID          string     `json:"id"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Statistics  Statistics `json:"statistics"`
	Tracked     int        `json:"tracked"`
	Pending     int        `json:"pending"`
	Complete    bool       `json:"complete"`
}

// Row is a tracked pair together with its record, if one has loaded.
type Row struct {
	Pair   PairKey       `json:"pair"`
	Record *ResultRecord `json:"record,omitempty"`
}

// Loaded reports whether the row has a record.
func (r Row) Loaded() bool { return r.Record != nil }
