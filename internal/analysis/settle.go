package analysis

import "math"

// Settle returns the final value of a step response and the first time
// after which it stays within band (relative to the final value).
// The settling time is NaN when the last sample is not finite.
func Settle(times, values []float64, band float64) (final, settling float64) {
	if len(values) == 0 || len(values) != len(times) {
		return math.NaN(), math.NaN()
	}
	final = values[len(values)-1]
	if math.IsNaN(final) || math.IsInf(final, 0) {
		return final, math.NaN()
	}
	tol := band * math.Max(math.Abs(final), 1e-12)
	settling = times[0]
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) || math.Abs(values[i]-final) > tol {
			if i == len(values)-1 {
				return final, times[i]
			}
			return final, times[i+1]
		}
	}
	return final, settling
}
