// Package gan implements the backend-independent training core of the
// AnoGAN classifiers: the Ansatz bundle, the Wasserstein training loop with
// gradient penalty, the cost object with anomaly-threshold calibration, and
// the thresholded predictor used at inference.
package gan

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/numgrad"
)

// ErrAnsatz indicates the ansatz bundle is incomplete or shape-inconsistent.
var ErrAnsatz = errors.New("invalid ansatz")

// Generator is the call contract every backend generator satisfies. The
// training loop never inspects which backend it holds: it passes through
// whatever input tuple the latent sampler produced.
type Generator interface {
	// Generate maps a tuple of generator inputs to a batch of feature
	// vectors in [0, 1].
	Generate(inputs []*mat.Dense) *mat.Dense
	// Backward propagates an output gradient, accumulating parameter
	// gradients, and returns the gradient for each input of the tuple.
	Backward(grad *mat.Dense) []*mat.Dense
	Params() []*numgrad.Param
	SetTraining(training bool)
	ExportWeights() numgrad.Weights
	ImportWeights(w numgrad.Weights) error
}

// LatentSampler produces one tuple of generator inputs per batch. Backends
// with multi-input generators return auxiliary constant tensors alongside
// the latent batch; these are opaque to the training loop.
type LatentSampler func(batchSize int) []*mat.Dense

// DataSampler produces a batch of feature vectors.
type DataSampler func(batchSize int) *mat.Dense

// LabeledSampler produces a batch of feature vectors with ground-truth
// anomaly labels (1 = anomaly, 0 = normal).
type LabeledSampler func(batchSize int) (*mat.Dense, []float64)

// Ansatz bundles everything a generic optimization/cost pair needs: the
// models, the four data-sampling strategies, and the fixed auxiliary inputs
// of the combined AnoGAN network.
type Ansatz struct {
	Name string

	Generator     Generator
	Discriminator *numgrad.Network
	AnoGan        *AnoGanModel

	LatentSampler       LatentSampler
	TrueInputSampler    DataSampler
	TrainingDataSampler LabeledSampler
	GetTestSample       LabeledSampler

	// AnoGanInputs are the fixed non-latent inputs of the combined
	// model, one entry per auxiliary input slot.
	AnoGanInputs []*mat.Dense

	NumFeatures int
	LatentDim   int
}

// Validate checks that the bundle is complete and that generator output and
// discriminator input agree on the feature length.
func (a *Ansatz) Validate() error {
	if a.Generator == nil || a.Discriminator == nil || a.AnoGan == nil {
		return fmt.Errorf("%w: missing model", ErrAnsatz)
	}
	if a.LatentSampler == nil || a.TrueInputSampler == nil ||
		a.TrainingDataSampler == nil || a.GetTestSample == nil {
		return fmt.Errorf("%w: missing sampler", ErrAnsatz)
	}
	if a.NumFeatures < 1 {
		return fmt.Errorf("%w: feature length %d", ErrAnsatz, a.NumFeatures)
	}

	out := a.Generator.Generate(a.LatentSampler(1))
	_, cols := out.Dims()
	if cols != a.NumFeatures {
		return fmt.Errorf("%w: generator emits %d features, discriminator expects %d",
			ErrAnsatz, cols, a.NumFeatures)
	}
	return nil
}
