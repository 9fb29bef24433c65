package classifiers

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/dataio"
	"github.com/hed1ad/qanogan/pkg/gan"
	"github.com/hed1ad/qanogan/pkg/numgrad"
)

// Persisted file suffixes, one namespace per backend name.
const (
	generatorWeightsFile     = "_generator_weights"
	discriminatorWeightsFile = "_discriminator_weights"
	anoGanWeightsFile        = "_anoGan_weights"
	otherParametersFile      = "_other_parameters"
)

// metadata is the JSON sidecar next to the weight blobs.
type metadata struct {
	Threshold float64  `json:"threshold"`
	Bases     []string `json:"bases,omitempty"`
}

// Save writes the trained model into dir: three gob weight blobs plus a
// JSON parameter sidecar. Saving an untrained classifier fails.
func (c *Classifier) Save(dir string) error {
	if c.anoGan == nil {
		return fmt.Errorf("%s: %w", c.name, ErrNotTrained)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	files := map[string]numgrad.Weights{
		generatorWeightsFile:     c.ansatz.Generator.ExportWeights(),
		discriminatorWeightsFile: c.ansatz.Discriminator.ExportWeights(),
		anoGanWeightsFile:        c.ansatz.AnoGan.ExportWeights(),
	}
	for suffix, weights := range files {
		if err := writeWeights(filepath.Join(dir, c.name+suffix), weights); err != nil {
			return err
		}
	}

	meta := metadata{Threshold: c.anoGan.Threshold(), Bases: c.bases}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	path := filepath.Join(dir, c.name+otherParametersFile)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	log.Info().
		Str("classifier", c.name).
		Str("dir", dir).
		Float64("threshold", meta.Threshold).
		Msg("model saved")
	return nil
}

// LoadClassical restores a saved classical classifier.
func LoadClassical(dir string, cfg config.TrainingConfig, store *dataio.FeatureStore) (*Classifier, error) {
	return load(dir, func(bases []string) (*Classifier, error) {
		return NewClassical(cfg, store)
	}, classicalName)
}

// LoadPQCSimulator restores a saved compiled-circuit classifier with the
// persisted gate bases.
func LoadPQCSimulator(dir string, cfg config.TrainingConfig, store *dataio.FeatureStore) (*Classifier, error) {
	return load(dir, func(bases []string) (*Classifier, error) {
		return NewPQCSimulator(cfg, store, bases)
	}, pqcName)
}

// LoadQNodeSimulator restores a saved per-call circuit classifier with the
// persisted gate bases.
func LoadQNodeSimulator(dir string, cfg config.TrainingConfig, store *dataio.FeatureStore) (*Classifier, error) {
	return load(dir, func(bases []string) (*Classifier, error) {
		return NewQNodeSimulator(cfg, store, bases)
	}, qnodeName)
}

// LoadRemoteQPU restores a saved remote classifier against the given
// device.
func LoadRemoteQPU(dir string, cfg config.TrainingConfig, store *dataio.FeatureStore,
	dev DeviceConfig) (*Classifier, error) {
	return load(dir, func(bases []string) (*Classifier, error) {
		return NewRemoteQPU(cfg, store, bases, dev)
	}, remoteName)
}

// load rebuilds the classifier with identical hyperparameters (bases
// restored from the sidecar before construction), then imports the saved
// weights and threshold.
func load(dir string, build func(bases []string) (*Classifier, error), name string) (*Classifier, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name+otherParametersFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	c, err := build(meta.Bases)
	if err != nil {
		return nil, err
	}

	genW, err := readWeights(filepath.Join(dir, name+generatorWeightsFile))
	if err != nil {
		return nil, err
	}
	if err := c.ansatz.Generator.ImportWeights(genW); err != nil {
		return nil, fmt.Errorf("%w: generator: %v", ErrPersist, err)
	}

	discW, err := readWeights(filepath.Join(dir, name+discriminatorWeightsFile))
	if err != nil {
		return nil, err
	}
	if err := c.ansatz.Discriminator.ImportWeights(discW); err != nil {
		return nil, fmt.Errorf("%w: discriminator: %v", ErrPersist, err)
	}

	anoW, err := readWeights(filepath.Join(dir, name+anoGanWeightsFile))
	if err != nil {
		return nil, err
	}
	if err := c.ansatz.AnoGan.ImportWeights(anoW); err != nil {
		return nil, fmt.Errorf("%w: combined model: %v", ErrPersist, err)
	}

	wrapper := gan.NewThresholdWrapper(gan.NewAnoWGan(c.ansatz))
	wrapper.SetThreshold(meta.Threshold)
	c.anoGan = wrapper

	log.Info().
		Str("classifier", name).
		Str("dir", dir).
		Float64("threshold", meta.Threshold).
		Msg("model loaded")
	return c, nil
}

func writeWeights(path string, w numgrad.Weights) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(w); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func readWeights(path string) (numgrad.Weights, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	defer file.Close()

	var w numgrad.Weights
	if err := gob.NewDecoder(file).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return w, nil
}
