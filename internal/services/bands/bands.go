// Package bands builds the overlay lines, axis ranges and label density for the
// z-score and spread charts.
package bands

const (
	DefaultEntryThreshold = 2.0
	DefaultExitThreshold  = 0.5
	DefaultSpreadStd      = 1.0

	ZScoreAxisLimit  = 5.0
	SpreadAxisSigmas = 3.5

	denseLabelCount = 20
	denseTickLimit  = 10
)

// Overlay line names.
const (
	EntryUpper = "entryUpper"
	EntryLower = "entryLower"
	ExitUpper  = "exitUpper"
	ExitLower  = "exitLower"
	ZeroLine   = "zero"

	MeanLine    = "mean"
	PlusOneStd  = "mean+1std"
	MinusOneStd = "mean-1std"
	PlusTwoStd  = "mean+2std"
	MinusTwoStd = "mean-2std"
)

// Band is a constant overlay line, one point per label.
type Band struct {
	Name   string    `json:"name"`
	Value  float64   `json:"value"`
	Points []float64 `json:"points"`
}

type BandSet []Band

// Get returns the band with the given name.
func (s BandSet) Get(name string) (Band, bool) {
	for _, b := range s {
		if b.Name == name {
			return b, true
		}
	}
	return Band{}, false
}

type AxisRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func constant(name string, v float64, n int) Band {
	if n < 0 {
		n = 0
	}
	pts := make([]float64, n)
	for i := range pts {
		pts[i] = v
	}
	return Band{Name: name, Value: v, Points: pts}
}

// thresholdOr returns v when it is a usable positive threshold, def otherwise.
func thresholdOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

// ZScoreBands returns the entry, exit and zero lines for n labels. Non-positive
// thresholds fall back to the defaults.
func ZScoreBands(n int, entry, exit float64) BandSet {
	entry = thresholdOr(entry, DefaultEntryThreshold)
	exit = thresholdOr(exit, DefaultExitThreshold)
	return BandSet{
		constant(EntryUpper, entry, n),
		constant(EntryLower, -entry, n),
		constant(ExitUpper, exit, n),
		constant(ExitLower, -exit, n),
		constant(ZeroLine, 0, n),
	}
}

// SpreadBands returns the mean and the ±1σ, ±2σ envelope for n labels.
func SpreadBands(n int, mean, std float64) BandSet {
	return BandSet{
		constant(MeanLine, mean, n),
		constant(PlusOneStd, mean+std, n),
		constant(MinusOneStd, mean-std, n),
		constant(PlusTwoStd, mean+2*std, n),
		constant(MinusTwoStd, mean-2*std, n),
	}
}

// ZScoreAxis is the fixed z-score range. It does not depend on the data.
func ZScoreAxis() AxisRange { return FixedAxis(ZScoreAxisLimit) }

// FixedAxis returns [-limit, limit]; a non-positive limit uses ZScoreAxisLimit.
func FixedAxis(limit float64) AxisRange {
	if limit <= 0 {
		limit = ZScoreAxisLimit
	}
	return AxisRange{Min: -limit, Max: limit}
}

// SpreadAxis follows the spread statistics: mean ± 3.5σ.
func SpreadAxis(mean, std float64) AxisRange {
	buf := std * SpreadAxisSigmas
	return AxisRange{Min: mean - buf, Max: mean + buf}
}

// MaxTicks caps visible labels at 10 once there are more than 20.
func MaxTicks(n int) int {
	if n > denseLabelCount {
		return denseTickLimit
	}
	if n < 0 {
		return 0
	}
	return n
}
