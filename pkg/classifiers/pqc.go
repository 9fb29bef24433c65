package classifiers

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/dataio"
	"github.com/hed1ad/qanogan/pkg/gan"
	"github.com/hed1ad/qanogan/pkg/numgrad"
	"github.com/hed1ad/qanogan/pkg/qcircuit"
)

const pqcName = "PQCSimulator"

// pqcBackend builds a generator around a statically compiled identity
// circuit on the local simulator.
type pqcBackend struct {
	numFeatures int
	latentDim   int
	cycles      int
	rng         *rand.Rand
}

// NewPQCSimulator constructs the compiled-circuit simulator classifier.
// bases selects the rotation axis per gate slot; nil picks random ones.
func NewPQCSimulator(cfg config.TrainingConfig, store *dataio.FeatureStore,
	bases []string) (*Classifier, error) {

	backend := &pqcBackend{
		numFeatures: store.FeatureLength(),
		latentDim:   LatentDim(store.FeatureLength()),
		cycles:      cfg.TotalDepth,
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
	return newClassifier(backend, cfg, store, bases)
}

func (b *pqcBackend) Name() string { return pqcName }

func (b *pqcBackend) BuildGenerator(bases []string) (gan.Generator, []string, error) {
	circuit, err := qcircuit.NewIdentityCircuit(b.latentDim, b.cycles, bases, b.rng)
	if err != nil {
		return nil, nil, err
	}
	compiled := qcircuit.Compile(circuit)

	// control angles come from a one-input dense layer whose kernel is
	// seeded so the circuit starts as the identity
	initial := compiled.GenerateInitialParameters(b.rng)
	weights := numgrad.NewNetwork(
		numgrad.NewDense(1, compiled.ControlParams(), b.rng,
			numgrad.WithKernel(initial)),
		numgrad.NewSigmoid(),
	)
	post := numgrad.NewNetwork(
		numgrad.NewDense(len(compiled.ReadOut()), b.numFeatures, b.rng),
		numgrad.NewSigmoid(),
	)

	gen := &pqcGenerator{circuit: compiled, weights: weights, post: post}
	return gen, compiled.Bases(), nil
}

func (b *pqcBackend) BuildAnoGan(gen gan.Generator, disc *numgrad.Network,
	rng *rand.Rand) *gan.AnoGanModel {

	placeholder := mat.NewDense(1, 1, nil)
	ones := mat.NewDense(1, 1, []float64{1})
	assemble := func(latent *mat.Dense) []*mat.Dense {
		return []*mat.Dense{placeholder, latent, ones}
	}
	return gan.NewAnoGanModel(gen, disc, b.latentDim, 1, rng, assemble, 1)
}

// LatentSampler yields the three-part input tuple of the compiled-circuit
// generator: an empty placeholder, the latent batch, and the constant ones
// feeding the control-angle layer.
func (b *pqcBackend) LatentSampler(rng *rand.Rand) gan.LatentSampler {
	dim := b.latentDim
	return func(batch int) []*mat.Dense {
		latent := mat.NewDense(batch, dim, nil)
		ones := mat.NewDense(batch, 1, nil)
		for i := 0; i < batch; i++ {
			for j := 0; j < dim; j++ {
				latent.Set(i, j, rng.Float64())
			}
			ones.Set(i, 0, 1)
		}
		return []*mat.Dense{mat.NewDense(batch, 1, nil), latent, ones}
	}
}

func (b *pqcBackend) AnoGanInputs() []*mat.Dense {
	return []*mat.Dense{
		mat.NewDense(1, 1, nil),
		mat.NewDense(1, 1, []float64{1}),
	}
}
