package features

import "math"

// MeanStd computes the mean and sample standard deviation of the finite values in xs.
// Non-finite entries are skipped. It returns ok=false when fewer than two values remain.
func MeanStd(xs []float64) (mean, std float64, ok bool) {
	sum := 0.0
	sum2 := 0.0
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		sum += x
		sum2 += x * x
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	fn := float64(n)
	mean = sum / fn
	if n < 2 {
		return mean, 0, false
	}
	variance := (sum2 - fn*mean*mean) / (fn - 1)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance), true
}

// Last returns the final finite value of xs.
func Last(xs []float64) (float64, bool) {
	for i := len(xs) - 1; i >= 0; i-- {
		if !math.IsNaN(xs[i]) && !math.IsInf(xs[i], 0) {
			return xs[i], true
		}
	}
	return 0, false
}

// Deviation returns x-mean and, when std is positive, the distance in standard deviations.
func Deviation(x, mean, std float64) (abs, sigmas float64) {
	abs = x - mean
	if std > 0 {
		sigmas = abs / std
	}
	return abs, sigmas
}
