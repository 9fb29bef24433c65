// Package classifiers assembles the trainable anomaly classifiers: one
// orchestrator around the GAN training pipeline, with interchangeable
// generator backends (classical dense stack, simulated quantum circuits in
// two styles, and a remote QPU client).
package classifiers

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/dataio"
	"github.com/hed1ad/qanogan/pkg/gan"
	"github.com/hed1ad/qanogan/pkg/numgrad"
)

var (
	// ErrNotTrained indicates Predict or Save was called before the
	// classifier was trained or loaded.
	ErrNotTrained = errors.New("classifier not trained")

	// ErrPersist indicates a model file could not be written or read.
	ErrPersist = errors.New("model persistence failed")
)

// maxLatentDim caps the latent dimension so quantum backends stay within
// simulable qubit counts.
const maxLatentDim = 9

// LatentDim derives the latent dimension from the feature length:
// numFeatures/3 clamped to [1, 9].
func LatentDim(numFeatures int) int {
	dim := numFeatures / 3
	if dim < 1 {
		dim = 1
	}
	if dim > maxLatentDim {
		dim = maxLatentDim
	}
	return dim
}

// Backend builds the backend-specific pieces of an ansatz. Everything else
// (discriminator, samplers over the feature store, training loop) is shared.
type Backend interface {
	// Name identifies the backend; it prefixes the persisted model files.
	Name() string
	// BuildGenerator constructs the generator. Quantum backends accept
	// rotation-gate bases, choosing random ones when nil, and return the
	// bases in effect; the classical backend returns nil.
	BuildGenerator(bases []string) (gan.Generator, []string, error)
	// BuildAnoGan combines generator and discriminator into the model
	// used by the reconstruction search.
	BuildAnoGan(gen gan.Generator, disc *numgrad.Network, rng *rand.Rand) *gan.AnoGanModel
	// LatentSampler produces the generator input tuple for one batch.
	LatentSampler(rng *rand.Rand) gan.LatentSampler
	// AnoGanInputs returns the fixed auxiliary inputs of the combined
	// model, one row each.
	AnoGanInputs() []*mat.Dense
}

// errTracker is satisfied by generators that buffer an execution error
// (the remote device cannot surface one through the Generator contract).
type errTracker interface {
	Err() error
}

// Classifier orchestrates training, prediction, and persistence of one
// backend. Construct it through NewClassical, NewPQCSimulator,
// NewQNodeSimulator, or NewRemoteQPU.
type Classifier struct {
	name   string
	cfg    config.TrainingConfig
	store  *dataio.FeatureStore
	bases  []string
	ansatz *gan.Ansatz
	cost   *gan.AnoGanCost
	opt    *gan.WGANOptimization
	anoGan *gan.ThresholdWrapper
	rng    *rand.Rand
}

func newClassifier(backend Backend, cfg config.TrainingConfig,
	store *dataio.FeatureStore, bases []string) (*Classifier, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	numFeatures := store.FeatureLength()
	latentDim := LatentDim(numFeatures)
	rng := rand.New(rand.NewSource(rand.Int63()))

	gen, usedBases, err := backend.BuildGenerator(bases)
	if err != nil {
		return nil, err
	}
	disc := buildDiscriminator(numFeatures, rng)

	ansatz := &gan.Ansatz{
		Name:                backend.Name(),
		Generator:           gen,
		Discriminator:       disc,
		AnoGan:              backend.BuildAnoGan(gen, disc, rng),
		LatentSampler:       backend.LatentSampler(rng),
		TrueInputSampler:    store.NewNoLabelSampler(rng).Sample,
		TrainingDataSampler: store.NewLabelSampler(rng).Sample,
		GetTestSample:       store.NewLabelSampler(rng).Sample,
		AnoGanInputs:        backend.AnoGanInputs(),
		NumFeatures:         numFeatures,
		LatentDim:           latentDim,
	}

	cost, err := gan.NewAnoGanCost(ansatz, rng)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		name:   backend.Name(),
		cfg:    cfg,
		store:  store,
		bases:  usedBases,
		ansatz: ansatz,
		cost:   cost,
		opt:    gan.NewWGANOptimization(cfg),
		rng:    rng,
	}, nil
}

// buildDiscriminator returns the critic shared by every backend: a linear
// dense stack of widths nf, nf/2, nf/2, 1.
func buildDiscriminator(numFeatures int, rng *rand.Rand) *numgrad.Network {
	hidden := numFeatures / 2
	if hidden < 1 {
		hidden = 1
	}
	return numgrad.NewNetwork(
		numgrad.NewDense(numFeatures, numFeatures, rng),
		numgrad.NewDense(numFeatures, hidden, rng),
		numgrad.NewDense(hidden, hidden, rng),
		numgrad.NewDense(hidden, 1, rng),
	)
}

// Name returns the backend name.
func (c *Classifier) Name() string {
	return c.name
}

// Bases returns the rotation-gate bases of a quantum backend, nil for the
// classical one.
func (c *Classifier) Bases() []string {
	return c.bases
}

// History returns the training history.
func (c *Classifier) History() *gan.TrainingHistory {
	return c.opt.History()
}

// Threshold returns the calibrated anomaly threshold.
func (c *Classifier) Threshold() (float64, error) {
	if c.anoGan == nil {
		return 0, ErrNotTrained
	}
	return c.anoGan.Threshold(), nil
}

// Train runs the GAN optimization and calibrates the anomaly threshold.
func (c *Classifier) Train() error {
	log.Info().
		Str("classifier", c.name).
		Int("features", c.ansatz.NumFeatures).
		Int("latentDim", c.ansatz.LatentDim).
		Int("steps", c.cfg.Steps).
		Msg("training started")

	if err := c.opt.Run(c.cost); err != nil {
		if det := c.generatorErr(); det != nil {
			return fmt.Errorf("%s: %w", c.name, det)
		}
		return fmt.Errorf("%s: %w", c.name, err)
	}

	wrapper, err := c.cost.BuildAnoGan(c.opt.Optimizer())
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	c.anoGan = wrapper
	return nil
}

// Predict scores the given samples against the calibrated threshold.
func (c *Classifier) Predict(X *mat.Dense) ([]gan.Result, error) {
	if c.anoGan == nil {
		return nil, fmt.Errorf("%s: %w", c.name, ErrNotTrained)
	}
	results, err := c.anoGan.Predict(X)
	if err != nil {
		return nil, err
	}
	if det := c.generatorErr(); det != nil {
		return nil, fmt.Errorf("%s: %w", c.name, det)
	}
	return results, nil
}

// PredictFile loads an unlabeled CSV of query samples and scores it.
func (c *Classifier) PredictFile(path string) ([]gan.Result, error) {
	X, err := c.store.LoadPredictionSetNoLabels(path)
	if err != nil {
		return nil, err
	}
	return c.Predict(X)
}

func (c *Classifier) generatorErr() error {
	if et, ok := c.ansatz.Generator.(errTracker); ok {
		return et.Err()
	}
	return nil
}
