package classifiers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/dataio"
	"github.com/hed1ad/qanogan/pkg/numgrad"
)

func testStore(t *testing.T, numFeatures int) *dataio.FeatureStore {
	t.Helper()

	train := make([][]float64, 20)
	for i := range train {
		row := make([]float64, numFeatures)
		for j := range row {
			row[j] = 0.2 + 0.01*float64(i%5)
		}
		train[i] = row
	}

	test := make([][]float64, 20)
	labels := make([]float64, 20)
	for i := range test {
		row := make([]float64, numFeatures)
		center := 0.2
		if i%2 == 1 {
			center = 0.9
			labels[i] = 1
		}
		for j := range row {
			row[j] = center + 0.01*float64(i%5)
		}
		test[i] = row
	}

	store, err := dataio.NewFeatureStoreFromSlices(train, test, labels)
	require.NoError(t, err)
	return store
}

func testConfig(steps int) config.TrainingConfig {
	return config.TrainingConfig{
		LearningRate:            0.0002,
		Beta1:                   0.5,
		Steps:                   steps,
		UpdateInterval:          steps + 10,
		BatchSize:               4,
		DiscriminatorIterations: 2,
		GPWeight:                10,
		TotalDepth:              2,
	}
}

func TestLatentDimClamp(t *testing.T) {
	tests := []struct {
		numFeatures int
		want        int
	}{
		{1, 1},
		{2, 1},
		{3, 1},
		{9, 3},
		{27, 9},
		{30, 9},
		{100, 9},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, LatentDim(tc.numFeatures), "numFeatures=%d", tc.numFeatures)
	}
}

func TestDiscriminatorIdenticalAcrossBackends(t *testing.T) {
	store := testStore(t, 4)
	cfg := testConfig(1)

	classical, err := NewClassical(cfg, store)
	require.NoError(t, err)
	pqc, err := NewPQCSimulator(cfg, store, nil)
	require.NoError(t, err)
	qnode, err := NewQNodeSimulator(cfg, store, nil)
	require.NoError(t, err)

	shapes := func(c *Classifier) [][2]int {
		var out [][2]int
		for _, p := range c.ansatz.Discriminator.Params() {
			r, cols := p.Value.Dims()
			out = append(out, [2]int{r, cols})
		}
		return out
	}

	want := shapes(classical)
	assert.Equal(t, want, shapes(pqc))
	assert.Equal(t, want, shapes(qnode))

	// widths nf, nf/2, nf/2, 1 with bias rows interleaved
	assert.Equal(t, [2]int{4, 4}, want[0])
	assert.Equal(t, [2]int{4, 2}, want[2])
	assert.Equal(t, [2]int{2, 2}, want[4])
	assert.Equal(t, [2]int{2, 1}, want[6])
}

func TestGeneratorsEmitUnitInterval(t *testing.T) {
	store := testStore(t, 4)
	cfg := testConfig(1)

	build := []struct {
		name string
		make func() (*Classifier, error)
	}{
		{"classical", func() (*Classifier, error) { return NewClassical(cfg, store) }},
		{"pqc", func() (*Classifier, error) { return NewPQCSimulator(cfg, store, nil) }},
		{"qnode", func() (*Classifier, error) { return NewQNodeSimulator(cfg, store, nil) }},
	}
	for _, tc := range build {
		t.Run(tc.name, func(t *testing.T) {
			c, err := tc.make()
			require.NoError(t, err)

			out := c.ansatz.Generator.Generate(c.ansatz.LatentSampler(6))
			rows, cols := out.Dims()
			assert.Equal(t, 6, rows)
			assert.Equal(t, 4, cols)
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					v := out.At(i, j)
					assert.GreaterOrEqual(t, v, 0.0)
					assert.LessOrEqual(t, v, 1.0)
				}
			}
		})
	}
}

func TestPredictBeforeTrainFails(t *testing.T) {
	store := testStore(t, 4)
	c, err := NewClassical(testConfig(1), store)
	require.NoError(t, err)

	_, err = c.Predict(mat.NewDense(1, 4, []float64{0.1, 0.2, 0.3, 0.4}))
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = c.Threshold()
	assert.ErrorIs(t, err, ErrNotTrained)

	assert.ErrorIs(t, c.Save(t.TempDir()), ErrNotTrained)
}

func TestClassicalEndToEnd(t *testing.T) {
	store := testStore(t, 9)
	cfg := config.TrainingConfig{
		LearningRate:            0.0002,
		Beta1:                   0.5,
		Steps:                   5,
		UpdateInterval:          1,
		BatchSize:               4,
		DiscriminatorIterations: 1,
		GPWeight:                10,
		TotalDepth:              2,
	}
	c, err := NewClassical(cfg, store)
	require.NoError(t, err)

	assert.Equal(t, 3, c.ansatz.LatentDim)

	require.NoError(t, c.Train())
	require.Equal(t, 5, c.History().Len())
	last, ok := c.History().Last()
	require.True(t, ok)
	assert.Equal(t, 5, last.Step)
	assert.False(t, math.IsNaN(last.DiscriminatorLoss))
	assert.False(t, math.IsInf(last.DiscriminatorLoss, 0))

	samples, _ := c.ansatz.GetTestSample(4)
	results, err := c.Predict(samples)
	require.NoError(t, err)
	require.Len(t, results, 4)

	threshold, err := c.Threshold()
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, res.Score > threshold, res.IsAnomaly)
	}
}

func TestSaveLoadRoundTripClassical(t *testing.T) {
	store := testStore(t, 4)
	c, err := NewClassical(testConfig(2), store)
	require.NoError(t, err)
	require.NoError(t, c.Train())

	query := mat.NewDense(2, 4, []float64{
		0.2, 0.2, 0.2, 0.2,
		0.9, 0.9, 0.9, 0.9,
	})
	before, err := c.Predict(query)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, c.Save(dir))

	loaded, err := LoadClassical(dir, testConfig(2), store)
	require.NoError(t, err)

	after, err := loaded.Predict(query)
	require.NoError(t, err)

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Score, after[i].Score)
		assert.Equal(t, before[i].IsAnomaly, after[i].IsAnomaly)
	}

	gotThreshold, err := loaded.Threshold()
	require.NoError(t, err)
	wantThreshold, err := c.Threshold()
	require.NoError(t, err)
	assert.Equal(t, wantThreshold, gotThreshold)
}

func TestSaveLoadRestoresBases(t *testing.T) {
	store := testStore(t, 6)
	c, err := NewPQCSimulator(testConfig(1), store, nil)
	require.NoError(t, err)
	require.NotEmpty(t, c.Bases())
	require.NoError(t, c.Train())

	query := mat.NewDense(1, 6, []float64{0.2, 0.2, 0.2, 0.9, 0.9, 0.9})
	before, err := c.Predict(query)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, c.Save(dir))

	loaded, err := LoadPQCSimulator(dir, testConfig(1), store)
	require.NoError(t, err)
	assert.Equal(t, c.Bases(), loaded.Bases())

	after, err := loaded.Predict(query)
	require.NoError(t, err)
	assert.Equal(t, before[0].Score, after[0].Score)
}

func TestQNodeMatchesPQCWidths(t *testing.T) {
	store := testStore(t, 6)
	cfg := testConfig(1)

	bases := []string{"X", "Y", "Z", "X"}
	pqc, err := NewPQCSimulator(cfg, store, bases)
	require.NoError(t, err)
	qnode, err := NewQNodeSimulator(cfg, store, bases)
	require.NoError(t, err)

	assert.Equal(t, bases, pqc.Bases())
	assert.Equal(t, bases, qnode.Bases())
	assert.Equal(t, pqc.ansatz.LatentDim, qnode.ansatz.LatentDim)
}

func TestLoadMissingModelFails(t *testing.T) {
	store := testStore(t, 4)
	_, err := LoadClassical(t.TempDir(), testConfig(1), store)
	assert.ErrorIs(t, err, ErrPersist)
}

func TestDeviceConfigRequiresToken(t *testing.T) {
	t.Setenv(config.KeyIBMQToken, "")
	_, err := NewDeviceConfig("https://qpu.example.com")
	assert.ErrorIs(t, err, config.ErrMissingKey)

	t.Setenv(config.KeyIBMQToken, "secret")
	dev, err := NewDeviceConfig("https://qpu.example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret", dev.Token)
}

func TestImportWeightsShapeMismatch(t *testing.T) {
	store := testStore(t, 4)
	c, err := NewClassical(testConfig(1), store)
	require.NoError(t, err)

	err = c.ansatz.Generator.ImportWeights(numgrad.Weights{{Rows: 1, Cols: 1, Data: []float64{0}}})
	assert.Error(t, err)
}
