package ranking

import "math"

// EstimatedTotal returns the expected comparison count for a merge sort
// of n items: ceil(n * log2(n)) for n >= 2, 0 below. It is an estimate,
// not a bound; small or adversarial inputs may exceed it.
func EstimatedTotal(n int) int {
	if n < 2 {
		return 0
	}
	return int(math.Ceil(float64(n) * math.Log2(float64(n))))
}

// ProgressPercent converts a comparison count into a display
// percentage. While the run is incomplete the value clamps to 99 so the
// estimate can never show a finished bar early; a completed run reports
// exactly 100 regardless of how the count compares to the estimate.
func ProgressPercent(made, estimated int, done bool) int {
	if done {
		return 100
	}
	if estimated <= 0 || made <= 0 {
		return 0
	}
	pct := int(math.Round(float64(made) / float64(estimated) * 100))
	if pct > 99 {
		return 99
	}
	return pct
}
