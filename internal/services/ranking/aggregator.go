// Package ranking folds per-pair results into dashboard statistics and orders them.
package ranking

import (
	"sort"

	"PairWatch/internal/domain/models"
)

const (
	HighCorrelationThreshold = 0.7
	StrongSignalThreshold    = 2.0
)

func isHighCorrelation(r models.ResultRecord) bool {
	return models.SafeAbs(r.Correlation) > HighCorrelationThreshold
}

func isStrongSignal(r models.ResultRecord) bool {
	return models.SafeAbs(r.ZScore) > StrongSignalThreshold
}

func hasSignal(r models.ResultRecord) bool {
	return r.SignalType != models.SignalNone && r.SignalType != ""
}

// Candidate builds the ranking entry for one record.
func Candidate(r models.ResultRecord) models.CandidateEntry {
	absCorr := models.SafeAbs(r.Correlation)
	absZ := models.SafeAbs(r.ZScore)
	return models.CandidateEntry{
		PairID:         r.Pair.ID(),
		AssetA:         r.Pair.AssetA,
		AssetB:         r.Pair.AssetB,
		AbsCorrelation: absCorr,
		AbsZScore:      absZ,
		SignalType:     r.SignalType,
		SignalRating:   r.SignalRating,
		StationaryTest: r.StationaryTest,
		Degraded:       !r.StationaryTest,
		Score:          absCorr * absZ,
	}
}

// Aggregate computes statistics over every loaded record in rs. Candidates are ranked by
// score descending; equal scores keep insertion order.
func Aggregate(rs *models.ResultSet) models.Statistics {
	stats := models.Statistics{RankedCandidates: []models.CandidateEntry{}}
	if rs == nil {
		return stats
	}
	records := rs.Records()
	stats.Total = len(records)
	if stats.Total == 0 {
		return stats
	}

	sumCorr := 0.0
	sumZ := 0.0
	candidates := make([]models.CandidateEntry, 0, len(records))
	for _, r := range records {
		if isHighCorrelation(r) {
			stats.HighCorrelationCount++
		}
		if isStrongSignal(r) {
			stats.StrongSignalCount++
		}
		if hasSignal(r) {
			stats.HasSignalCount++
		}
		c := Candidate(r)
		sumCorr += c.AbsCorrelation
		sumZ += c.AbsZScore
		candidates = append(candidates, c)
	}
	n := float64(stats.Total)
	stats.AvgCorrelation = sumCorr / n
	stats.AvgAbsZScore = sumZ / n

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	stats.RankedCandidates = candidates
	return stats
}
