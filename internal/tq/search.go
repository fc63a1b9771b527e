package tq

import "math"

// BinarySearch returns the midpoint between min and max, snapped to the
// nearest 0.25 CRF step.
func BinarySearch(min, max float64) float64 {
	mid := (min + max) / 2
	return RoundCRF(mid)
}

// NextCRF determines the next CRF value to try based on the current state.
// Rounds 1-2, rounds after 6, and any round where interpolation has
// insufficient data use binary search; rounds 3-6 use the interpolation
// ladder.
func NextCRF(state *State) float64 {
	state.Round++

	var crf float64

	if state.Round <= 2 {
		crf = BinarySearch(state.SearchMin, state.SearchMax)
	} else {
		interpolated := InterpolateCRF(state.Probes, state.Target, state.Round)
		if interpolated != nil {
			crf = *interpolated
		} else {
			crf = BinarySearch(state.SearchMin, state.SearchMax)
		}
	}

	crf = clamp(crf, state.SearchMin, state.SearchMax)
	state.LastCRF = crf

	return crf
}

// Converged checks if the score is within tolerance of the target.
func Converged(score, target, tolerance float64) bool {
	return math.Abs(score-target) <= tolerance
}

// UpdateBounds shrinks the search window around the last probe based on
// where its score landed relative to the tolerance window: a score below
// the window caps search_max at lastCRF-0.25, a score above it raises
// search_min to lastCRF+0.25. The update is purely numeric and applies the
// same way under both metric directions; the step size is a fixed 0.25 CRF
// unit. Returns true if the bounds have crossed (no valid CRF remains).
func UpdateBounds(state *State, score, target, tolerance float64) bool {
	if score < target-tolerance {
		state.SearchMax = state.LastCRF - 0.25
	} else if score > target+tolerance {
		state.SearchMin = state.LastCRF + 0.25
	}

	return state.SearchMin > state.SearchMax
}

// ShouldComplete determines if the TQ search should complete for this
// round. Returns true if the score has converged, the round budget is
// exhausted, or updating the bounds for the next round would leave no
// valid CRF to try.
func ShouldComplete(state *State, score float64, cfg *Config) bool {
	if Converged(score, cfg.Target, cfg.Tolerance) {
		return true
	}

	if state.Round >= cfg.MaxRounds {
		return true
	}

	if UpdateBounds(state, score, cfg.Target, cfg.Tolerance) {
		state.BoundsExhausted = true
		return true
	}

	return false
}

// clamp restricts a value to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
