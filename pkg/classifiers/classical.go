package classifiers

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/dataio"
	"github.com/hed1ad/qanogan/pkg/gan"
	"github.com/hed1ad/qanogan/pkg/numgrad"
)

// classicalHiddenWidth is the width of every hidden generator block.
const classicalHiddenWidth = 9

// batchNormMomentum matches the generator's batch-normalization decay.
const batchNormMomentum = 0.8

const classicalName = "Classical"

// classicalBackend builds a dense generator: TotalDepth blocks of
// Dense(9) + LeakyReLU(0.2) + BatchNorm, closed by a sigmoid head.
type classicalBackend struct {
	numFeatures int
	latentDim   int
	depth       int
	rng         *rand.Rand
}

// NewClassical constructs the purely classical classifier.
func NewClassical(cfg config.TrainingConfig, store *dataio.FeatureStore) (*Classifier, error) {
	backend := &classicalBackend{
		numFeatures: store.FeatureLength(),
		latentDim:   LatentDim(store.FeatureLength()),
		depth:       cfg.TotalDepth,
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
	return newClassifier(backend, cfg, store, nil)
}

func (b *classicalBackend) Name() string { return classicalName }

func (b *classicalBackend) BuildGenerator(_ []string) (gan.Generator, []string, error) {
	var layers []numgrad.Layer
	in := b.latentDim
	for cycle := 0; cycle < b.depth; cycle++ {
		layers = append(layers,
			numgrad.NewDense(in, classicalHiddenWidth, b.rng),
			numgrad.NewLeakyReLU(0.2),
			numgrad.NewBatchNorm(classicalHiddenWidth, batchNormMomentum),
		)
		in = classicalHiddenWidth
	}
	layers = append(layers,
		numgrad.NewDense(in, b.numFeatures, b.rng),
		numgrad.NewSigmoid(),
	)
	return &networkGenerator{net: numgrad.NewNetwork(layers...)}, nil, nil
}

func (b *classicalBackend) BuildAnoGan(gen gan.Generator, disc *numgrad.Network,
	rng *rand.Rand) *gan.AnoGanModel {
	return gan.NewAnoGanModel(gen, disc, b.latentDim, 1, rng, nil, 0)
}

func (b *classicalBackend) LatentSampler(rng *rand.Rand) gan.LatentSampler {
	dim := b.latentDim
	return func(batch int) []*mat.Dense {
		latent := mat.NewDense(batch, dim, nil)
		for i := 0; i < batch; i++ {
			for j := 0; j < dim; j++ {
				latent.Set(i, j, rng.Float64())
			}
		}
		return []*mat.Dense{latent}
	}
}

func (b *classicalBackend) AnoGanInputs() []*mat.Dense {
	return []*mat.Dense{mat.NewDense(1, 1, []float64{1})}
}
