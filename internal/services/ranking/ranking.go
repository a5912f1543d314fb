package ranking

import (
	"fmt"
	"sort"
	"strings"

	"PairWatch/internal/domain/models"
	"PairWatch/internal/services/classify"
)

// Filter names.
const (
	FilterAll             = "all"
	FilterHighCorrelation = "highCorrelation"
	FilterStrongSignal    = "strongSignal"
	FilterHasSignal       = "hasSignal"
)

// Sort keys.
const (
	SortCorrelationDesc = "correlationDesc"
	SortZScoreAbsDesc   = "zScoreAbsDesc"
	SortPairAsc         = "pairAsc"
)

var aliases = map[string]string{
	"high-corr":       FilterHighCorrelation,
	"strong-signal":   FilterStrongSignal,
	"has-signal":      FilterHasSignal,
	"corr-desc":       SortCorrelationDesc,
	"zscore-abs-desc": SortZScoreAbsDesc,
	"pair-asc":        SortPairAsc,
}

func canonical(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

// TopN returns the first n candidates. It never returns nil.
func TopN(candidates []models.CandidateEntry, n int) []models.CandidateEntry {
	if n <= 0 || len(candidates) == 0 {
		return []models.CandidateEntry{}
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]models.CandidateEntry, n)
	copy(out, candidates[:n])
	return out
}

// Filter keeps the rows matching the named predicate. Unknown names keep everything,
// and rows that have not loaded yet always pass.
func Filter(rows []models.Row, name string) []models.Row {
	var pred func(models.ResultRecord) bool
	switch canonical(name) {
	case FilterHighCorrelation:
		pred = isHighCorrelation
	case FilterStrongSignal:
		pred = isStrongSignal
	case FilterHasSignal:
		pred = hasSignal
	}
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if pred == nil || !r.Loaded() || pred(*r.Record) {
			out = append(out, r)
		}
	}
	return out
}

// SortBy returns a stably sorted copy of rows. Rows without a record go last for every key.
func SortBy(rows []models.Row, key string) []models.Row {
	out := make([]models.Row, len(rows))
	copy(out, rows)

	var less func(a, b models.Row) bool
	switch canonical(key) {
	case SortCorrelationDesc:
		less = func(a, b models.Row) bool {
			return models.SafeAbs(a.Record.Correlation) > models.SafeAbs(b.Record.Correlation)
		}
	case SortZScoreAbsDesc:
		less = func(a, b models.Row) bool {
			return models.SafeAbs(a.Record.ZScore) > models.SafeAbs(b.Record.ZScore)
		}
	case SortPairAsc:
		less = func(a, b models.Row) bool { return a.Pair.ID() < b.Pair.ID() }
	default:
		less = func(a, b models.Row) bool { return false }
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Loaded() != b.Loaded() {
			return a.Loaded()
		}
		if !a.Loaded() {
			return false
		}
		return less(a, b)
	})
	return out
}

// Search keeps rows whose rendered text contains q, ignoring case. A blank q keeps all.
func Search(rows []models.Row, q string, render func(models.Row) string) []models.Row {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rows
	}
	if render == nil {
		render = RowText
	}
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(render(r)), q) {
			out = append(out, r)
		}
	}
	return out
}

// RowText renders a row the way the dashboard table shows it.
func RowText(r models.Row) string {
	if !r.Loaded() {
		return fmt.Sprintf("%s loading", r.Pair.ID())
	}
	rec := r.Record
	return fmt.Sprintf("%s %.4f %.4f %s %s %s",
		r.Pair.ID(), rec.Correlation, rec.ZScore, rec.SignalType, rec.SignalRating,
		classify.SignalText(rec.SignalType, r.Pair.AssetA, r.Pair.AssetB))
}
