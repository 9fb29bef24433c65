package dataio

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// NoLabelSampler draws uniform random batches from an unlabeled data set.
type NoLabelSampler struct {
	data *mat.Dense
	rng  *rand.Rand
}

// Sample returns a batch of feature vectors drawn with replacement.
func (s *NoLabelSampler) Sample(batch int) *mat.Dense {
	rows, cols := s.data.Dims()
	out := mat.NewDense(batch, cols, nil)
	for i := 0; i < batch; i++ {
		src := s.rng.Intn(rows)
		for j := 0; j < cols; j++ {
			out.Set(i, j, s.data.At(src, j))
		}
	}
	return out
}

// LabelSampler draws uniform random batches together with their
// ground-truth anomaly labels (1 = anomaly).
type LabelSampler struct {
	data   *mat.Dense
	labels []float64
	rng    *rand.Rand
}

// Sample returns a labeled batch drawn with replacement.
func (s *LabelSampler) Sample(batch int) (*mat.Dense, []float64) {
	rows, cols := s.data.Dims()
	out := mat.NewDense(batch, cols, nil)
	labels := make([]float64, batch)
	for i := 0; i < batch; i++ {
		src := s.rng.Intn(rows)
		for j := 0; j < cols; j++ {
			out.Set(i, j, s.data.At(src, j))
		}
		labels[i] = s.labels[src]
	}
	return out, labels
}
