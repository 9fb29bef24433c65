package gan

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/numgrad"
)

// netGenerator adapts a plain network to the Generator contract for tests.
type netGenerator struct {
	net *numgrad.Network
}

func (g *netGenerator) Generate(inputs []*mat.Dense) *mat.Dense {
	return g.net.Forward(inputs[0])
}

func (g *netGenerator) Backward(grad *mat.Dense) []*mat.Dense {
	return []*mat.Dense{g.net.Backward(grad)}
}

func (g *netGenerator) Params() []*numgrad.Param      { return g.net.Params() }
func (g *netGenerator) SetTraining(training bool)     { g.net.SetTraining(training) }
func (g *netGenerator) ExportWeights() numgrad.Weights { return g.net.ExportWeights() }
func (g *netGenerator) ImportWeights(w numgrad.Weights) error {
	return g.net.ImportWeights(w)
}

// testAnsatz builds a small classical bundle: normal samples cluster near
// 0.2, anomalies near 0.9.
func testAnsatz(t *testing.T, numFeatures, latentDim int) (*Ansatz, *rand.Rand) {
	t.Helper()
	rng := rand.New(rand.NewSource(5))

	gen := &netGenerator{net: numgrad.NewNetwork(
		numgrad.NewDense(latentDim, 8, rng),
		numgrad.NewLeakyReLU(0.2),
		numgrad.NewDense(8, numFeatures, rng),
		numgrad.NewSigmoid(),
	)}
	disc := numgrad.NewNetwork(
		numgrad.NewDense(numFeatures, 4, rng),
		numgrad.NewDense(4, 1, rng),
	)

	normal := func(batch int) *mat.Dense {
		out := mat.NewDense(batch, numFeatures, nil)
		for i := 0; i < batch; i++ {
			for j := 0; j < numFeatures; j++ {
				out.Set(i, j, 0.2+0.05*rng.Float64())
			}
		}
		return out
	}

	a := &Ansatz{
		Name:          "test",
		Generator:     gen,
		Discriminator: disc,
		AnoGan:        NewAnoGanModel(gen, disc, latentDim, 1, rng, nil, 0),
		LatentSampler: func(batch int) []*mat.Dense {
			latent := mat.NewDense(batch, latentDim, nil)
			for i := 0; i < batch; i++ {
				for j := 0; j < latentDim; j++ {
					latent.Set(i, j, rng.Float64())
				}
			}
			return []*mat.Dense{latent}
		},
		TrueInputSampler: normal,
		TrainingDataSampler: func(batch int) (*mat.Dense, []float64) {
			return normal(batch), make([]float64, batch)
		},
		GetTestSample: func(batch int) (*mat.Dense, []float64) {
			out := mat.NewDense(batch, numFeatures, nil)
			labels := make([]float64, batch)
			for i := 0; i < batch; i++ {
				center := 0.2
				if i%2 == 1 {
					center = 0.9
					labels[i] = 1
				}
				for j := 0; j < numFeatures; j++ {
					out.Set(i, j, center+0.05*rng.Float64())
				}
			}
			return out, labels
		},
		NumFeatures: numFeatures,
		LatentDim:   latentDim,
	}
	return a, rng
}

func testConfig() config.TrainingConfig {
	return config.TrainingConfig{
		LearningRate:            0.0002,
		Beta1:                   0.5,
		Steps:                   5,
		UpdateInterval:          2,
		BatchSize:               8,
		DiscriminatorIterations: 2,
		GPWeight:                10,
		TotalDepth:              3,
	}
}

func TestAnsatzValidate(t *testing.T) {
	full, _ := testAnsatz(t, 3, 2)

	tests := []struct {
		name   string
		mutate func(a *Ansatz)
	}{
		{"missing generator", func(a *Ansatz) { a.Generator = nil }},
		{"missing discriminator", func(a *Ansatz) { a.Discriminator = nil }},
		{"missing combined model", func(a *Ansatz) { a.AnoGan = nil }},
		{"missing latent sampler", func(a *Ansatz) { a.LatentSampler = nil }},
		{"missing test sampler", func(a *Ansatz) { a.GetTestSample = nil }},
		{"zero features", func(a *Ansatz) { a.NumFeatures = 0 }},
		{"feature mismatch", func(a *Ansatz) { a.NumFeatures = 7 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			broken := *full
			tc.mutate(&broken)
			assert.ErrorIs(t, broken.Validate(), ErrAnsatz)
		})
	}

	assert.NoError(t, full.Validate())
}

func TestMCC(t *testing.T) {
	assert.InDelta(t, 1.0, MCC(5, 5, 0, 0), 1e-12)
	assert.InDelta(t, -1.0, MCC(0, 0, 5, 5), 1e-12)
	assert.Zero(t, MCC(0, 10, 0, 0))
	assert.Zero(t, MCC(0, 0, 0, 0))
}

func TestOptimalThresholdSeparatesClusters(t *testing.T) {
	scores := []float64{0.1, 0.15, 0.2, 0.9, 0.95, 1.0}
	labels := []float64{0, 0, 0, 1, 1, 1}

	threshold, mcc := OptimalThreshold(scores, labels)
	assert.InDelta(t, 1.0, mcc, 1e-12)
	assert.Greater(t, threshold, 0.2)
	assert.Less(t, threshold, 0.9)
}

func TestGradientPenaltyZeroForUnitNormCritic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	// A linear critic whose input gradient has unit norm everywhere.
	disc := numgrad.NewNetwork(
		numgrad.NewDense(2, 1, rng, numgrad.WithoutBias(),
			numgrad.WithKernel([]float64{0.6, 0.8})),
	)
	a, _ := testAnsatz(t, 2, 2)
	a.Discriminator = disc
	a.AnoGan = NewAnoGanModel(a.Generator, disc, 2, 1, rng, nil, 0)

	cost, err := NewAnoGanCost(a, rng)
	require.NoError(t, err)

	real, _ := a.TrainingDataSampler(4)
	_, penalty, err := cost.DiscriminatorStep(real, a.LatentSampler(4), 10, numgrad.NewAdam(0.0002, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, penalty, 1e-10)
}

func TestTrainingRecordsHistory(t *testing.T) {
	a, rng := testAnsatz(t, 3, 2)
	cost, err := NewAnoGanCost(a, rng)
	require.NoError(t, err)

	loop := NewWGANOptimization(testConfig())
	require.NoError(t, loop.Run(cost))

	assert.Equal(t, PhaseConverged, loop.Phase())

	// steps 2, 4 and the final step 5
	hist := loop.History()
	assert.Equal(t, 3, hist.Len())
	last, ok := hist.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last.Step)
	for _, rec := range hist.Records() {
		assert.False(t, math.IsNaN(rec.DiscriminatorLoss))
		assert.False(t, math.IsNaN(rec.GeneratorLoss))
		assert.GreaterOrEqual(t, rec.GradientPenalty, 0.0)
	}
}

func TestTrainingDivergenceFailsRun(t *testing.T) {
	a, rng := testAnsatz(t, 2, 2)
	nan := math.NaN()
	a.Generator = &netGenerator{net: numgrad.NewNetwork(
		numgrad.NewDense(2, 2, rng, numgrad.WithoutBias(),
			numgrad.WithKernel([]float64{nan, nan, nan, nan})),
	)}
	a.AnoGan = NewAnoGanModel(a.Generator, a.Discriminator, 2, 1, rng, nil, 0)

	cost, err := NewAnoGanCost(a, rng)
	require.NoError(t, err)

	loop := NewWGANOptimization(testConfig())
	err = loop.Run(cost)
	assert.ErrorIs(t, err, ErrDiverged)
	assert.Equal(t, PhaseFailed, loop.Phase())
	assert.Zero(t, loop.History().Len())
}

func TestAnoGanModelScaling(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a, _ := testAnsatz(t, 3, 2)

	const weight = 2.5
	model := NewAnoGanModel(a.Generator, a.Discriminator, 2, weight, rng, nil, 0)
	recon, score := model.Forward()

	// recon carries 1/weight of the generator output, score carries
	// weight times the critic value of that output.
	raw := mat.NewDense(1, 3, nil)
	raw.Scale(weight, recon)
	expected := a.Discriminator.Forward(raw).At(0, 0) * weight
	assert.InDelta(t, expected, score.At(0, 0), 1e-9)
}

func TestAnoWGanScoresDeterministic(t *testing.T) {
	a, _ := testAnsatz(t, 3, 2)
	wgan := NewAnoWGan(a)

	samples, _ := a.GetTestSample(4)
	first, err := wgan.Scores(samples)
	require.NoError(t, err)
	second, err := wgan.Scores(samples)
	require.NoError(t, err)

	require.Len(t, first, 4)
	for i := range first {
		assert.InDelta(t, first[i], second[i], 1e-12)
		assert.GreaterOrEqual(t, first[i], 0.0)
	}
}

func TestTrainThenPredictEndToEnd(t *testing.T) {
	a, rng := testAnsatz(t, 3, 2)
	cost, err := NewAnoGanCost(a, rng)
	require.NoError(t, err)

	loop := NewWGANOptimization(testConfig())
	require.NoError(t, loop.Run(cost))

	wrapper, err := cost.BuildAnoGan(loop.Optimizer())
	require.NoError(t, err)

	samples, _ := a.GetTestSample(6)
	results, err := wrapper.Predict(samples)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for i, res := range results {
		assert.Equal(t, res.Score > wrapper.Threshold(), res.IsAnomaly)
		assert.Len(t, res.Features, 3)
		assert.InDelta(t, samples.At(i, 0), res.Features[0], 1e-12)
	}
}

func TestThresholdWrapperAccessors(t *testing.T) {
	a, _ := testAnsatz(t, 3, 2)
	w := NewThresholdWrapper(NewAnoWGan(a))
	assert.Zero(t, w.Threshold())
	w.SetThreshold(1.5)
	assert.Equal(t, 1.5, w.Threshold())
}
