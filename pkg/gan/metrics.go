package gan

import "math"

// MCC returns the Matthews correlation coefficient of a binary confusion
// matrix, or 0 when the denominator degenerates.
func MCC(tp, tn, fp, fn int) float64 {
	denom := math.Sqrt(float64(tp+fp) * float64(tp+fn) * float64(tn+fp) * float64(tn+fn))
	if denom == 0 {
		return 0
	}
	return (float64(tp)*float64(tn) - float64(fp)*float64(fn)) / denom
}

// OptimalThreshold sweeps evenly spaced candidates across the observed
// score range and returns the threshold maximizing the MCC against the
// ground-truth labels (1 = anomaly), together with the achieved MCC.
func OptimalThreshold(scores, labels []float64) (threshold, mcc float64) {
	lo, hi := scores[0], scores[0]
	for _, s := range scores {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	best := math.Inf(-1)
	threshold = lo
	for k := 0; k < thresholdCandidates; k++ {
		cand := lo + (hi-lo)*float64(k)/float64(thresholdCandidates-1)

		var tp, tn, fp, fn int
		for i, s := range scores {
			predicted := s > cand
			actual := labels[i] > 0.5
			switch {
			case predicted && actual:
				tp++
			case !predicted && !actual:
				tn++
			case predicted && !actual:
				fp++
			default:
				fn++
			}
		}

		if m := MCC(tp, tn, fp, fn); m > best {
			best = m
			threshold = cand
		}
	}
	return threshold, best
}
