package option

// ComputePayout prices a settled option against a measured rainfall total.
// The payout is linear in the distance past the strike, clipped to the
// spread, and scaled by the notional:
//
//	above: min(max(measured − strike, 0), spread) × notional
//	below: min(max(strike − measured, 0), spread) × notional
//
// It is a pure function of the terms and the measurement.
func ComputePayout(t Terms, measuredMM int64) int64 {
	var diff int64
	switch t.Direction {
	case BelowStrike:
		diff = t.StrikeMM - measuredMM
	default:
		diff = measuredMM - t.StrikeMM
	}
	if diff <= 0 {
		return 0
	}
	if diff > t.SpreadMM {
		diff = t.SpreadMM
	}
	return diff * t.NotionalPerMM
}
