package gan

import "gonum.org/v1/gonum/mat"

// Result is one per-sample prediction of the thresholded predictor.
type Result struct {
	Score     float64   `json:"score"`
	IsAnomaly bool      `json:"is_anomaly"`
	Features  []float64 `json:"features,omitempty"`
}

// ThresholdWrapper binarizes AnoWGan anomaly scores against a calibrated
// threshold. The threshold is set once by calibration (or restored from a
// persisted model) and accessed only through the accessors.
type ThresholdWrapper struct {
	model     *AnoWGan
	threshold float64
}

// NewThresholdWrapper wraps a scoring model; the threshold starts at zero
// until calibration sets it.
func NewThresholdWrapper(model *AnoWGan) *ThresholdWrapper {
	return &ThresholdWrapper{model: model}
}

// Threshold returns the calibrated anomaly threshold.
func (t *ThresholdWrapper) Threshold() float64 {
	return t.threshold
}

// SetThreshold overrides the anomaly threshold.
func (t *ThresholdWrapper) SetThreshold(threshold float64) {
	t.threshold = threshold
}

// Predict scores every row of X and binarizes against the threshold.
func (t *ThresholdWrapper) Predict(X *mat.Dense) ([]Result, error) {
	scores, err := t.model.Scores(X)
	if err != nil {
		return nil, err
	}

	_, cols := X.Dims()
	results := make([]Result, len(scores))
	for i, score := range scores {
		features := make([]float64, cols)
		for j := 0; j < cols; j++ {
			features[j] = X.At(i, j)
		}
		results[i] = Result{
			Score:     score,
			IsAnomaly: score > t.threshold,
			Features:  features,
		}
	}
	return results, nil
}
