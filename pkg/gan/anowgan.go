package gan

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/numgrad"
)

// Latent-search schedule for the per-sample reconstruction.
const (
	searchSteps = 50
	searchRate  = 0.01
	searchSeed  = 97
)

// AnoWGan scores query samples with a trained GAN: for each sample the
// latent-adjustment layer of the combined model is re-optimized to find the
// closest reconstruction, and the residual reconstruction plus
// discriminator mismatch is the anomaly score.
type AnoWGan struct {
	ansatz *Ansatz
	seed   int64
}

// NewAnoWGan wraps a trained ansatz. The search uses a fixed seed so that
// scoring is deterministic for a given model.
func NewAnoWGan(a *Ansatz) *AnoWGan {
	return &AnoWGan{ansatz: a, seed: searchSeed}
}

// Scores runs the reconstruction search for every row of X.
func (w *AnoWGan) Scores(X *mat.Dense) ([]float64, error) {
	rows, cols := X.Dims()
	scores := make([]float64, rows)
	rng := rand.New(rand.NewSource(w.seed))

	w.ansatz.Generator.SetTraining(false)
	w.ansatz.Discriminator.SetTraining(false)

	for i := 0; i < rows; i++ {
		row := mat.NewDense(1, cols, nil)
		for j := 0; j < cols; j++ {
			row.Set(0, j, X.At(i, j))
		}
		scores[i] = w.score(row, rng)
	}
	return scores, nil
}

// score optimizes the latent-adjustment layer against one sample and
// returns the residual loss.
func (w *AnoWGan) score(x *mat.Dense, rng *rand.Rand) float64 {
	model := w.ansatz.AnoGan
	disc := w.ansatz.Discriminator
	model.ResetAdjustment(rng)

	// target critic score of the query sample, scaled like the combined
	// model's second output
	target := disc.Forward(x).At(0, 0) * model.DiscWeight()

	opt := numgrad.NewAdam(searchRate, 0.9)
	_, features := x.Dims()
	var loss float64

	for step := 0; step < searchSteps; step++ {
		recon, scoreOut := model.Forward()
		score := scoreOut.At(0, 0)

		loss = 0
		reconGrad := mat.NewDense(1, features, nil)
		for j := 0; j < features; j++ {
			diff := recon.At(0, j) - x.At(0, j)
			loss += math.Abs(diff)
			reconGrad.Set(0, j, sign(diff))
		}
		loss += math.Abs(score - target)
		scoreGrad := mat.NewDense(1, 1, []float64{sign(score - target)})

		model.ZeroAdjustGrads()
		model.Backward(reconGrad, scoreGrad)
		opt.Step(model.AdjustParams())
	}

	return loss
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
