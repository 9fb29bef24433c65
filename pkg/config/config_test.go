package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAll(t *testing.T) {
	t.Helper()
	t.Setenv(KeyTotalDepth, "3")
	t.Setenv(KeyTrainingSteps, "100")
	t.Setenv(KeyBatchSize, "16")
	t.Setenv(KeyDiscriminatorIterations, "5")
	t.Setenv(KeyGPWeight, "10.0")
}

func TestFromEnv(t *testing.T) {
	setAll(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.TotalDepth)
	assert.Equal(t, 100, cfg.Steps)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, 5, cfg.DiscriminatorIterations)
	assert.Equal(t, 10.0, cfg.GPWeight)
	assert.Equal(t, 0.0002, cfg.LearningRate)
	assert.Equal(t, 0.5, cfg.Beta1)
	// only the final step is reported by default
	assert.Equal(t, 110, cfg.UpdateInterval)
}

func TestFromEnvMissingKey(t *testing.T) {
	setAll(t)
	t.Setenv(KeyBatchSize, "")

	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.ErrorContains(t, err, KeyBatchSize)
}

func TestFromEnvBadValue(t *testing.T) {
	setAll(t)
	t.Setenv(KeyGPWeight, "lots")

	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestValidate(t *testing.T) {
	valid := TrainingConfig{
		LearningRate:            0.0002,
		Beta1:                   0.5,
		Steps:                   10,
		UpdateInterval:          20,
		BatchSize:               8,
		DiscriminatorIterations: 5,
		GPWeight:                10,
		TotalDepth:              2,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *TrainingConfig)
	}{
		{"zero steps", func(c *TrainingConfig) { c.Steps = 0 }},
		{"zero batch", func(c *TrainingConfig) { c.BatchSize = 0 }},
		{"zero critic iterations", func(c *TrainingConfig) { c.DiscriminatorIterations = 0 }},
		{"zero depth", func(c *TrainingConfig) { c.TotalDepth = 0 }},
		{"negative penalty weight", func(c *TrainingConfig) { c.GPWeight = -1 }},
		{"zero update interval", func(c *TrainingConfig) { c.UpdateInterval = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrMissingKey)
		})
	}
}

func TestIBMQToken(t *testing.T) {
	t.Setenv(KeyIBMQToken, "")
	_, err := IBMQToken()
	assert.ErrorIs(t, err, ErrMissingKey)

	t.Setenv(KeyIBMQToken, "tok")
	tok, err := IBMQToken()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}
