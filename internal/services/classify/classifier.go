// Package classify maps raw pair metrics onto display classes. All functions are pure
// and total; NaN and infinite magnitudes are treated as 0.
package classify

import (
	"fmt"

	"PairWatch/internal/domain/models"
)

type Class string

const (
	VeryStrong Class = "very-strong"
	Strong     Class = "strong"
	Moderate   Class = "moderate"
	Weak       Class = "weak"

	Extreme  Class = "extreme"
	VeryHigh Class = "very-high"
	High     Class = "high"
	Elevated Class = "elevated"
	Mild     Class = "mild"
	Neutral  Class = "neutral"

	Attention Class = "attention"
	Favorable Class = "favorable"

	Excellent Class = "excellent"
	Good      Class = "good"
	Fair      Class = "fair"
	None      Class = "none"

	Critical Class = "critical"
	Warning  Class = "warning"
	Safe     Class = "safe"
)

// Correlation classifies |c|. The 0.8 and 0.7 bands share a class.
func Correlation(c float64) Class {
	abs := models.SafeAbs(c)
	switch {
	case abs > 0.9:
		return VeryStrong
	case abs > 0.8:
		return Strong
	case abs > 0.7:
		return Strong
	case abs > 0.5:
		return Moderate
	default:
		return Weak
	}
}

func ZScore(z float64) Class {
	abs := models.SafeAbs(z)
	switch {
	case abs > 3.0:
		return Extreme
	case abs > 2.5:
		return VeryHigh
	case abs > 2.0:
		return High
	case abs > 1.5:
		return Elevated
	case abs > 1.0:
		return Mild
	default:
		return Neutral
	}
}

func Signal(t models.SignalType) Class {
	switch {
	case t.Directional():
		return Attention
	case t == models.SignalClosePositions:
		return Favorable
	default:
		return Neutral
	}
}

func Rating(label string) Class {
	switch label {
	case models.RatingExtreme:
		return Extreme
	case models.RatingVeryStrong:
		return VeryHigh
	case models.RatingStrong:
		return High
	case models.RatingModerate:
		return Elevated
	case models.RatingWeak:
		return Mild
	default:
		return Neutral
	}
}

func Arbitrage(n int) Class {
	switch {
	case n > 10:
		return Excellent
	case n > 5:
		return Good
	case n > 0:
		return Fair
	default:
		return None
	}
}

func Liquidation(n int) Class {
	switch {
	case n > 5:
		return Critical
	case n > 2:
		return High
	case n > 0:
		return Warning
	default:
		return Safe
	}
}

// SignalText describes the suggested action in terms of the two assets.
func SignalText(t models.SignalType, a, b string) string {
	switch t {
	case models.SignalLongAShortB:
		return fmt.Sprintf("long %s, short %s", a, b)
	case models.SignalShortALongB:
		return fmt.Sprintf("short %s, long %s", a, b)
	case models.SignalClosePositions:
		return "close positions"
	default:
		return "no signal"
	}
}

// Classes bundles every class of a record, as rendered by the view layer.
type Classes struct {
	Correlation Class `json:"correlation"`
	ZScore      Class `json:"zScore"`
	Signal      Class `json:"signal"`
	Rating      Class `json:"rating"`
	Arbitrage   Class `json:"arbitrage"`
	Liquidation Class `json:"liquidation"`
}

func Record(r models.ResultRecord) Classes {
	return Classes{
		Correlation: Correlation(r.Correlation),
		ZScore:      ZScore(r.ZScore),
		Signal:      Signal(r.SignalType),
		Rating:      Rating(r.SignalRating),
		Arbitrage:   Arbitrage(r.ArbitrageCount),
		Liquidation: Liquidation(r.LiquidationCount),
	}
}
