// Package config loads training hyperparameters from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrMissingKey indicates a required configuration key is absent or invalid.
var ErrMissingKey = errors.New("missing configuration key")

// Environment variable names for the required hyperparameters.
const (
	KeyTotalDepth              = "TOTAL_DEPTH"
	KeyTrainingSteps           = "TRAINING_STEPS"
	KeyBatchSize               = "BATCH_SIZE"
	KeyDiscriminatorIterations = "DISCRIMINATOR_ITERATIONS"
	KeyGPWeight                = "GP_WEIGHT"
	KeyIBMQToken               = "IBMQX_TOKEN"
)

// TrainingConfig is the immutable hyperparameter set shared by all
// classifier backends. It is built once at classifier construction and
// passed by value; no component performs ambient environment lookups.
type TrainingConfig struct {
	// LearningRate and Beta1 parametrize the Adam optimizer.
	LearningRate float64
	Beta1        float64

	// Steps is the number of outer training iterations.
	Steps int
	// UpdateInterval controls how often a history record is written.
	// The final step is always recorded regardless of the interval.
	UpdateInterval int
	BatchSize      int
	// DiscriminatorIterations is the number of critic updates per
	// generator update.
	DiscriminatorIterations int
	// GPWeight weighs the gradient-penalty term of the critic loss.
	GPWeight float64
	// TotalDepth is the generator cycle count (dense blocks for the
	// classical backend, circuit cycles for the quantum ones).
	TotalDepth int
}

// FromEnv reads the required keys and returns a validated TrainingConfig.
// A missing or unparsable key is a fatal configuration error.
func FromEnv() (TrainingConfig, error) {
	cfg := TrainingConfig{
		LearningRate: 0.0002,
		Beta1:        0.5,
	}

	var err error
	if cfg.TotalDepth, err = intKey(KeyTotalDepth); err != nil {
		return TrainingConfig{}, err
	}
	if cfg.Steps, err = intKey(KeyTrainingSteps); err != nil {
		return TrainingConfig{}, err
	}
	if cfg.BatchSize, err = intKey(KeyBatchSize); err != nil {
		return TrainingConfig{}, err
	}
	if cfg.DiscriminatorIterations, err = intKey(KeyDiscriminatorIterations); err != nil {
		return TrainingConfig{}, err
	}
	if cfg.GPWeight, err = floatKey(KeyGPWeight); err != nil {
		return TrainingConfig{}, err
	}

	// Report only at the end of the run unless the caller tightens it.
	cfg.UpdateInterval = cfg.Steps + 10

	return cfg, cfg.Validate()
}

// Validate checks the hyperparameters are usable for a training run.
func (c TrainingConfig) Validate() error {
	if c.Steps <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrMissingKey, KeyTrainingSteps, c.Steps)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrMissingKey, KeyBatchSize, c.BatchSize)
	}
	if c.DiscriminatorIterations <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrMissingKey, KeyDiscriminatorIterations, c.DiscriminatorIterations)
	}
	if c.TotalDepth <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrMissingKey, KeyTotalDepth, c.TotalDepth)
	}
	if c.GPWeight < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %f", ErrMissingKey, KeyGPWeight, c.GPWeight)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("%w: update interval must be positive, got %d", ErrMissingKey, c.UpdateInterval)
	}
	return nil
}

// IBMQToken returns the remote-backend access credential. Only the remote
// QPU backend requires it.
func IBMQToken() (string, error) {
	tok := os.Getenv(KeyIBMQToken)
	if tok == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingKey, KeyIBMQToken)
	}
	return tok, nil
}

func intKey(key string) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrMissingKey, key, raw)
	}
	return v, nil
}

func floatKey(key string) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a float", ErrMissingKey, key, raw)
	}
	return v, nil
}
