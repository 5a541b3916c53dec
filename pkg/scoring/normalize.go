package scoring

// normalizeEpsilon is the smallest range Normalize will divide by.
const normalizeEpsilon = 1e-8

// TotalScore combines the three scores: max(0, (momentum + novelty) * quality).
func TotalScore(momentum, novelty, quality float64) float64 {
	return max(0.0, (momentum+novelty)*quality)
}

// Normalize min-max scales scores into [0, 1]. When the range is below 1e-8
// every output is 0.5. Empty input gives empty output.
func Normalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}

	out := make([]float64, len(scores))
	rng := hi - lo
	if rng < normalizeEpsilon {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / rng
	}
	return out
}
