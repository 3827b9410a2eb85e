package rules

import "math"

// expectedCTRByPosition is the calibration curve for organic positions 1-10.
var expectedCTRByPosition = [10]float64{
	0.316, 0.158, 0.106, 0.077, 0.062,
	0.051, 0.043, 0.037, 0.032, 0.028,
}

const (
	secondPageCTR = 0.015
	deepPageCTR   = 0.005
)

// ExpectedCTR returns the click-through rate a result is expected to get at
// the given average position. The position is floored before lookup;
// positions below 1 are treated as position 1.
func ExpectedCTR(position float64) float64 {
	rank := int(math.Floor(position))
	switch {
	case rank < 1:
		return expectedCTRByPosition[0]
	case rank <= 10:
		return expectedCTRByPosition[rank-1]
	case rank <= 20:
		return secondPageCTR
	default:
		return deepPageCTR
	}
}
