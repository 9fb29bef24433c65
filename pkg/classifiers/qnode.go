package classifiers

import (
	"context"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/dataio"
	"github.com/hed1ad/qanogan/pkg/gan"
	"github.com/hed1ad/qanogan/pkg/numgrad"
	"github.com/hed1ad/qanogan/pkg/qcircuit"
)

const (
	qnodeName  = "QNodeSimulator"
	remoteName = "RemoteQPU"
)

// qnodeBackend builds a generator that evaluates the identity circuit per
// call through a Device. The same backend serves the local simulator and
// the remote QPU; only the device differs.
type qnodeBackend struct {
	name        string
	numFeatures int
	latentDim   int
	cycles      int
	device      qcircuit.Device
	rng         *rand.Rand
}

// NewQNodeSimulator constructs the per-call circuit simulator classifier.
func NewQNodeSimulator(cfg config.TrainingConfig, store *dataio.FeatureStore,
	bases []string) (*Classifier, error) {

	backend := &qnodeBackend{
		name:        qnodeName,
		numFeatures: store.FeatureLength(),
		latentDim:   LatentDim(store.FeatureLength()),
		cycles:      cfg.TotalDepth,
		device:      qcircuit.NewLocalDevice(),
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
	return newClassifier(backend, cfg, store, bases)
}

// DeviceConfig carries everything needed to reach the remote execution
// service. It is built before the classifier so that a missing token fails
// fast, independent of model construction.
type DeviceConfig struct {
	BaseURL string
	Token   string
	Options []qcircuit.RemoteOption
}

// NewDeviceConfig resolves the access token from the environment. A
// missing token surfaces config.ErrMissingKey here, not at first use.
func NewDeviceConfig(baseURL string, opts ...qcircuit.RemoteOption) (DeviceConfig, error) {
	token, err := config.IBMQToken()
	if err != nil {
		return DeviceConfig{}, err
	}
	return DeviceConfig{BaseURL: baseURL, Token: token, Options: opts}, nil
}

func (d DeviceConfig) device() qcircuit.Device {
	return qcircuit.NewRemoteDevice(d.BaseURL, d.Token, d.Options...)
}

// NewRemoteQPU constructs the classifier whose circuit runs on the remote
// execution service described by dev.
func NewRemoteQPU(cfg config.TrainingConfig, store *dataio.FeatureStore,
	bases []string, dev DeviceConfig) (*Classifier, error) {

	backend := &qnodeBackend{
		name:        remoteName,
		numFeatures: store.FeatureLength(),
		latentDim:   LatentDim(store.FeatureLength()),
		cycles:      cfg.TotalDepth,
		device:      dev.device(),
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
	return newClassifier(backend, cfg, store, bases)
}

func (b *qnodeBackend) Name() string { return b.name }

func (b *qnodeBackend) BuildGenerator(bases []string) (gan.Generator, []string, error) {
	circuit, err := qcircuit.NewIdentityCircuit(b.latentDim, b.cycles, bases, b.rng)
	if err != nil {
		return nil, nil, err
	}

	initial := circuit.GenerateInitialParameters(b.rng)
	weights := &numgrad.Param{
		Value: mat.NewDense(1, circuit.NumVariables(), initial),
		Grad:  mat.NewDense(1, circuit.NumVariables(), nil),
	}
	post := numgrad.NewNetwork(
		numgrad.NewDense(circuit.NumQubits(), b.numFeatures, b.rng),
		numgrad.NewSigmoid(),
	)

	gen := &qnodeGenerator{
		circuit: circuit,
		device:  b.device,
		weights: weights,
		post:    post,
		ctx:     context.Background(),
	}
	return gen, circuit.Bases(), nil
}

func (b *qnodeBackend) BuildAnoGan(gen gan.Generator, disc *numgrad.Network,
	rng *rand.Rand) *gan.AnoGanModel {
	return gan.NewAnoGanModel(gen, disc, b.latentDim, 1, rng, nil, 0)
}

func (b *qnodeBackend) LatentSampler(rng *rand.Rand) gan.LatentSampler {
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

func (b *qnodeBackend) AnoGanInputs() []*mat.Dense {
	return []*mat.Dense{mat.NewDense(1, 1, []float64{1})}
}
