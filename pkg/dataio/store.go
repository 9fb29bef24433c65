package dataio

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrData indicates the loaded data sets are empty or shape-inconsistent.
var ErrData = errors.New("invalid data set")

// FeatureStore holds the feature vectors a classifier trains and
// calibrates on: an unlabeled training set of normal samples and a labeled
// test set whose last CSV column is the ground-truth label (1 = anomaly).
type FeatureStore struct {
	train  *mat.Dense
	test   *mat.Dense
	labels []float64
}

// NewFeatureStore loads the training and test CSV files. Both must carry
// the same feature length; the test file carries one extra label column.
func NewFeatureStore(trainPath, testPath string) (*FeatureStore, error) {
	train, err := readMatrix(trainPath)
	if err != nil {
		return nil, fmt.Errorf("training set: %w", err)
	}

	labeled, err := readMatrix(testPath)
	if err != nil {
		return nil, fmt.Errorf("test set: %w", err)
	}

	rows, cols := labeled.Dims()
	_, features := train.Dims()
	if cols != features+1 {
		return nil, fmt.Errorf("%w: test set has %d columns, expected %d features plus label",
			ErrData, cols, features)
	}

	test := mat.NewDense(rows, features, nil)
	labels := make([]float64, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < features; j++ {
			test.Set(i, j, labeled.At(i, j))
		}
		labels[i] = labeled.At(i, features)
	}

	return &FeatureStore{train: train, test: test, labels: labels}, nil
}

// NewFeatureStoreFromSlices builds a store from in-memory data, used by the
// examples and tests.
func NewFeatureStoreFromSlices(train [][]float64, test [][]float64, labels []float64) (*FeatureStore, error) {
	trainM, err := toMatrix(train)
	if err != nil {
		return nil, fmt.Errorf("training set: %w", err)
	}
	testM, err := toMatrix(test)
	if err != nil {
		return nil, fmt.Errorf("test set: %w", err)
	}
	if len(labels) != len(test) {
		return nil, fmt.Errorf("%w: %d labels for %d test samples", ErrData, len(labels), len(test))
	}

	_, trainCols := trainM.Dims()
	_, testCols := testM.Dims()
	if trainCols != testCols {
		return nil, fmt.Errorf("%w: feature length %d vs %d", ErrData, trainCols, testCols)
	}
	return &FeatureStore{train: trainM, test: testM, labels: labels}, nil
}

// FeatureLength returns the number of features per sample.
func (s *FeatureStore) FeatureLength() int {
	_, cols := s.train.Dims()
	return cols
}

// TrainingSize returns the number of unlabeled training samples.
func (s *FeatureStore) TrainingSize() int {
	rows, _ := s.train.Dims()
	return rows
}

// NewNoLabelSampler returns a sampler over the unlabeled training set.
func (s *FeatureStore) NewNoLabelSampler(rng *rand.Rand) *NoLabelSampler {
	return &NoLabelSampler{data: s.train, rng: rng}
}

// NewLabelSampler returns a sampler over the labeled test set.
func (s *FeatureStore) NewLabelSampler(rng *rand.Rand) *LabelSampler {
	return &LabelSampler{data: s.test, labels: s.labels, rng: rng}
}

// LoadPredictionSetNoLabels reads an unlabeled CSV of query samples,
// checking the feature length against the store.
func (s *FeatureStore) LoadPredictionSetNoLabels(path string) (*mat.Dense, error) {
	m, err := readMatrix(path)
	if err != nil {
		return nil, fmt.Errorf("prediction set: %w", err)
	}
	_, cols := m.Dims()
	if cols != s.FeatureLength() {
		return nil, fmt.Errorf("%w: prediction set has %d features, store has %d",
			ErrData, cols, s.FeatureLength())
	}
	return m, nil
}

func readMatrix(path string) (*mat.Dense, error) {
	reader, err := NewCSVReader(path, WithHeader(false))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	rows, err := reader.Read()
	if err != nil {
		return nil, err
	}
	return toMatrix(rows)
}

func toMatrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrData)
	}
	cols := len(rows[0])
	m := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrData, i, len(row), cols)
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m, nil
}
